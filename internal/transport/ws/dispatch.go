package ws

import (
	"encoding/json"
	"errors"

	"quizroom/internal/domain"
	"quizroom/internal/session"
)

// connState is the identity a connection earns at login; every later event
// is validated against it.
type connState struct {
	sess   *session.GameSession
	role   domain.Role
	name   string
	client *wsClient
}

type dispatchEntry struct {
	roles  map[domain.Role]bool
	handle func(c *connState, raw json.RawMessage)
}

func roleSet(roles ...domain.Role) map[domain.Role]bool {
	set := make(map[domain.Role]bool, len(roles))
	for _, r := range roles {
		set[r] = true
	}
	return set
}

// dispatchTable maps each inbound event to the roles allowed to send it.
// The check runs before any session logic, so a role violation never reaches
// the state machine.
var dispatchTable = map[string]dispatchEntry{
	"getCurrentQuestion": {
		roles: roleSet(domain.RoleOrganizer, domain.RolePlayer, domain.RoleTester, domain.RoleRandomPlayer),
		handle: func(c *connState, _ json.RawMessage) {
			view, err := c.sess.CurrentQuestion()
			if err != nil {
				c.sendError(err)
				return
			}
			c.client.Send(domain.Event{Type: "currentQuestion", Payload: view})
		},
	},
	"submitAnswer": {
		roles: roleSet(domain.RolePlayer, domain.RoleTester, domain.RoleRandomPlayer),
		handle: func(c *connState, raw json.RawMessage) {
			var payload submitAnswerPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				c.sendError(domain.ErrInvalidSubmission)
				return
			}
			if err := c.sess.SubmitChoices(c.name, payload.Choices); err != nil {
				c.sendError(err)
			}
		},
	},
	"longAnswerUpdated": {
		roles: roleSet(domain.RolePlayer, domain.RoleTester),
		handle: func(c *connState, raw json.RawMessage) {
			var payload longAnswerPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				c.sendError(domain.ErrInvalidSubmission)
				return
			}
			if err := c.sess.UpdateLongAnswer(c.name, payload.Text); err != nil {
				c.sendError(err)
			}
		},
	},
	"finalizeAnswers": {
		roles: roleSet(domain.RolePlayer, domain.RoleTester, domain.RoleRandomPlayer),
		handle: func(c *connState, _ json.RawMessage) {
			accepted, err := c.sess.Finalize(c.name)
			if err != nil {
				c.sendError(err)
				return
			}
			c.client.Send(domain.Event{Type: "finalizeResult", Payload: finalizeResultPayload{Accepted: accepted}})
		},
	},
	"goToNextQuestion": {
		roles: roleSet(domain.RoleOrganizer, domain.RoleTester, domain.RoleRandomPlayer),
		handle: func(c *connState, _ json.RawMessage) {
			if err := c.sess.NextQuestion(); err != nil {
				c.sendError(err)
			}
		},
	},
	"goToResult": {
		roles: roleSet(domain.RoleOrganizer, domain.RoleTester, domain.RoleRandomPlayer),
		handle: func(c *connState, _ json.RawMessage) {
			if err := c.sess.GoToResult(); err != nil {
				c.sendError(err)
			}
		},
	},
	"pauseTimer": {
		roles: roleSet(domain.RoleOrganizer),
		handle: func(c *connState, _ json.RawMessage) {
			if err := c.sess.PauseTimer(); err != nil {
				c.sendError(err)
			}
		},
	},
	"enterPanicMode": {
		roles: roleSet(domain.RoleOrganizer),
		handle: func(c *connState, _ json.RawMessage) {
			if err := c.sess.EnterPanic(); err != nil {
				c.sendError(err)
			}
		},
	},
	"evaluationLongResponse": {
		roles: roleSet(domain.RoleOrganizer, domain.RoleTester),
		handle: func(c *connState, raw json.RawMessage) {
			var payload evaluationPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				c.sendError(domain.ErrInvalidSubmission)
				return
			}
			if err := c.sess.EvaluateLongAnswers(payload.Evaluations); err != nil {
				c.sendError(err)
			}
		},
	},
	"toggleChat": {
		roles: roleSet(domain.RoleOrganizer),
		handle: func(c *connState, raw json.RawMessage) {
			var payload toggleChatPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				c.sendError(domain.ErrInvalidSubmission)
				return
			}
			if err := c.sess.ToggleChat(payload.Name); err != nil {
				c.sendError(err)
			}
		},
	},
}

func (c *connState) sendError(err error) {
	c.client.Send(domain.Event{Type: "error", Payload: errorPayload{
		Code:    errorCode(err),
		Message: err.Error(),
	}})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidSession):
		return "invalid-session"
	case errors.Is(err, domain.ErrNotPermitted):
		return "action-not-permitted"
	case errors.Is(err, domain.ErrNameUnavailable):
		return "name-unavailable"
	case errors.Is(err, domain.ErrGameUnderway):
		return "game-underway"
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrUpstreamUnavailable):
		return "upstream-unavailable"
	default:
		return "invalid-submission"
	}
}
