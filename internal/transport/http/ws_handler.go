package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	OptionIndex *int `json:"optionIndex"`
}

type gotoPayload struct {
	Index *int `json:"index"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type startedPayload struct {
	Quiz  domain.PublicQuiz   `json:"quiz"`
	State domain.AttemptState `json:"state"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newError(err error) errorPayload {
	return errorPayload{Code: errorCode(err), Message: err.Error()}
}

// ServeWS upgrades the request and runs one attempt over the socket. Closing the socket
// before the attempt finishes abandons it.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	userID := r.URL.Query().Get("userId")
	if quizID == "" || userID == "" {
		http.Error(w, "missing quizId or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	attempt, err := h.service.StartAttempt(r.Context(), quizID, userID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: newError(err)})
		return
	}
	logger := log.With().Str("attempt_id", attempt.ID()).Str("quiz_id", quizID).Str("owner_id", userID).Logger()

	updates, unsubscribe := attempt.Subscribe()
	defer unsubscribe()
	defer func() {
		if !attempt.Snapshot().Status.Terminal() {
			_ = attempt.Abandon()
		}
	}()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer; a failed write closes the socket so the read loop ends too
	go func() {
		defer close(writerDone)
		failed := false
		for msg := range send {
			if failed {
				continue
			}
			if err := conn.WriteJSON(msg); err != nil {
				logger.Debug().Err(err).Msg("ws write failed")
				failed = true
				_ = conn.Close()
			}
		}
	}()

	initial := <-updates
	send <- outboundMessage[any]{Type: "started", Payload: startedPayload{Quiz: attempt.Quiz(), State: initial}}

	go func() {
		defer close(updatesDone)
		last := initial
		for {
			select {
			case state, ok := <-updates:
				if !ok {
					// the attempt ended; report the result once, whoever triggered it
					if last.Result != nil {
						select {
						case send <- outboundMessage[any]{Type: "result", Payload: *last.Result}:
						case <-closeSignals:
						}
					}
					return
				}
				last = state
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: state}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(r, attempt, inbound); err != nil {
			typ := "rejected"
			if errors.Is(err, domain.ErrTransientPersistence) {
				typ = "error"
			}
			send <- outboundMessage[any]{Type: typ, Payload: newError(err)}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, attempt *app.Attempt, inbound inboundMessage) error {
	switch inbound.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.OptionIndex == nil {
			return fmt.Errorf("%w: invalid select payload", domain.ErrInvalidInput)
		}
		return attempt.SelectAnswer(*payload.OptionIndex)
	case "next":
		return attempt.GoToNext()
	case "previous":
		return attempt.GoToPrevious()
	case "goto":
		var payload gotoPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Index == nil {
			return fmt.Errorf("%w: invalid goto payload", domain.ErrInvalidInput)
		}
		return attempt.GoToQuestion(*payload.Index)
	case "submit":
		wasSubmitted := attempt.Snapshot().Status == domain.StatusSubmitted
		_, err := attempt.RequestSubmit(r.Context())
		if errors.Is(err, domain.ErrAlreadySubmitted) && !wasSubmitted {
			// stored elsewhere first; the result message is sent when the attempt closes
			return nil
		}
		return err
	default:
		return fmt.Errorf("%w: unsupported message type %q", domain.ErrInvalidInput, inbound.Type)
	}
}
