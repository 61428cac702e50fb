package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"quizroom/internal/auth"
	"quizroom/internal/domain"
	"quizroom/internal/session"
)

const defaultRandomQuestionCount = 5

// QuizSource supplies quiz content at session start.
type QuizSource interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	RandomQuiz(ctx context.Context, count int) (domain.Quiz, error)
}

// Handler upgrades HTTP requests to websockets and routes typed events
// between connections and their game sessions.
type Handler struct {
	registry    *session.Registry
	quizzes     QuizSource
	gate        *auth.Gate
	randomCount int
	upgrader    websocket.Upgrader
}

func NewHandler(registry *session.Registry, quizzes QuizSource, gate *auth.Gate, randomCount int) *Handler {
	if randomCount <= 0 {
		randomCount = defaultRandomQuestionCount
	}
	return &Handler{
		registry:    registry,
		quizzes:     quizzes,
		gate:        gate,
		randomCount: randomCount,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// wsClient adapts one websocket connection to session.Client. Send never
// blocks: a full buffer drops the oldest frame so a slow consumer cannot
// stall the session worker.
type wsClient struct {
	mu     sync.Mutex
	send   chan domain.Event
	closed bool
}

func newWSClient() *wsClient {
	return &wsClient{send: make(chan domain.Event, 32)}
}

func (c *wsClient) Send(evt domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- evt:
	default:
		select {
		case <-c.send:
		default:
		}
		c.send <- evt
	}
}

func (c *wsClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ServeWS runs one connection: a login event earns an identity, then every
// further event is routed through the role-checked dispatch table.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	client := newWSClient()
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for evt := range client.send {
			if err := conn.WriteJSON(evt); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	state, err := h.login(r.Context(), conn, client)
	if err != nil {
		client.Send(domain.Event{Type: "error", Payload: errorPayload{
			Code:    errorCode(err),
			Message: err.Error(),
		}})
		client.Close()
		<-writerDone
		return
	}

	// When the session closes this client, the writer drains and exits;
	// closing the conn then unblocks the read loop below.
	go func() {
		<-writerDone
		_ = conn.Close()
	}()

	connID := uuid.NewString()
	log.Printf("ws %s: %s %q joined session %s", connID, state.role, state.name, state.sess.Code())

	client.Send(domain.Event{Type: "joined", Payload: joinedPayload{
		Code: state.sess.Code(),
		Name: state.name,
		Role: state.role,
	}})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		entry, known := dispatchTable[inbound.Type]
		if !known {
			state.sendError(domain.ErrInvalidSubmission)
			continue
		}
		if !entry.roles[state.role] {
			state.sendError(domain.ErrNotPermitted)
			continue
		}
		entry.handle(state, inbound.Payload)
	}

	log.Printf("ws %s: disconnected", connID)
	state.sess.Disconnect(state.role, state.name)
	client.Close()
	<-writerDone
}

// login consumes the first inbound message, which must be one of the four
// login events, and attaches the connection to a session.
func (h *Handler) login(ctx context.Context, conn *websocket.Conn, client *wsClient) (*connState, error) {
	var inbound inboundMessage
	if err := conn.ReadJSON(&inbound); err != nil {
		return nil, domain.ErrInvalidSubmission
	}

	switch inbound.Type {
	case "organizerLogin":
		var payload organizerLoginPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidSubmission
		}
		if !h.gate.Validate(payload.Password) {
			return nil, domain.ErrNotPermitted
		}
		quiz, err := h.quizzes.GetQuiz(ctx, payload.QuizID)
		if err != nil {
			return nil, err
		}
		sess, err := h.registry.Create(quiz, session.ModeNormal)
		if err != nil {
			return nil, err
		}
		if err := sess.JoinOrganizer(client); err != nil {
			return nil, err
		}
		return &connState{sess: sess, role: domain.RoleOrganizer, name: "organisateur", client: client}, nil

	case "playerLogin":
		var payload playerLoginPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidSubmission
		}
		sess, ok := h.registry.Lookup(payload.Code)
		if !ok {
			return nil, domain.ErrInvalidSession
		}
		if err := sess.JoinPlayer(payload.Name, client); err != nil {
			return nil, err
		}
		return &connState{sess: sess, role: domain.RolePlayer, name: payload.Name, client: client}, nil

	case "testerLogin":
		var payload testerLoginPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidSubmission
		}
		quiz, err := h.quizzes.GetQuiz(ctx, payload.QuizID)
		if err != nil {
			return nil, err
		}
		sess, err := h.registry.Create(quiz, session.ModeTester)
		if err != nil {
			return nil, err
		}
		if err := sess.JoinSolo(payload.Name, client); err != nil {
			sess.Disconnect(domain.RoleTester, payload.Name)
			return nil, err
		}
		return &connState{sess: sess, role: domain.RoleTester, name: payload.Name, client: client}, nil

	case "randomGameLogin":
		var payload randomGameLoginPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidSubmission
		}
		quiz, err := h.quizzes.RandomQuiz(ctx, h.randomCount)
		if err != nil {
			return nil, err
		}
		sess, err := h.registry.Create(quiz, session.ModeRandom)
		if err != nil {
			return nil, err
		}
		if err := sess.JoinSolo(payload.Name, client); err != nil {
			sess.Disconnect(domain.RoleRandomPlayer, payload.Name)
			return nil, err
		}
		return &connState{sess: sess, role: domain.RoleRandomPlayer, name: payload.Name, client: client}, nil

	default:
		return nil, domain.ErrInvalidSubmission
	}
}
