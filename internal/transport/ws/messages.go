package ws

import (
	"encoding/json"

	"quizroom/internal/domain"
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type organizerLoginPayload struct {
	Password string `json:"password"`
	QuizID   string `json:"quizId"`
}

type playerLoginPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type testerLoginPayload struct {
	QuizID string `json:"quizId"`
	Name   string `json:"name"`
}

type randomGameLoginPayload struct {
	Name string `json:"name"`
}

type submitAnswerPayload struct {
	Choices []int `json:"choices"`
}

type longAnswerPayload struct {
	Text string `json:"text"`
}

type evaluationPayload struct {
	Evaluations []domain.Evaluation `json:"evaluations"`
}

type toggleChatPayload struct {
	Name string `json:"name"`
}

type joinedPayload struct {
	Code string      `json:"code"`
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

type finalizeResultPayload struct {
	Accepted bool `json:"accepted"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
