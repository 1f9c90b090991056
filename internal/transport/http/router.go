package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// NewRouter mounts the REST and websocket endpoints for the quiz service.
func NewRouter(service *app.QuizService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	NewQuizHandler(service).Routes(r)
	r.Get("/ws", NewWSHandler(service).ServeWS)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// QuizHandler serves the read-only quiz endpoints.
type QuizHandler struct {
	service *app.QuizService
}

func NewQuizHandler(service *app.QuizService) *QuizHandler {
	return &QuizHandler{service: service}
}

func (h *QuizHandler) Routes(r chi.Router) {
	r.Get("/quizzes", h.handleList)
	r.Get("/quizzes/{quizID}", h.handleGet)
	r.Get("/quizzes/{quizID}/result", h.handleResult)
}

func (h *QuizHandler) handleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	quizzes, err := h.service.ListQuizzes(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quizzes)
}

func (h *QuizHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	quiz, err := h.service.GetQuiz(r.Context(), chi.URLParam(r, "quizID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (h *QuizHandler) handleResult(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	result, err := h.service.Result(r.Context(), chi.URLParam(r, "quizID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: "invalid_input", Message: "missing userId"})
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, newError(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrResultNotFound),
		errors.Is(err, domain.ErrAttemptNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadySubmitted),
		errors.Is(err, domain.ErrAttemptInProgress),
		errors.Is(err, domain.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoQuestions), errors.Is(err, domain.ErrInvalidQuiz):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTransientPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrQuizNotFound), errors.Is(err, domain.ErrResultNotFound),
		errors.Is(err, domain.ErrAttemptNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrNotRunning):
		return "not_running"
	case errors.Is(err, domain.ErrAlreadySubmitted):
		return "already_submitted"
	case errors.Is(err, domain.ErrAttemptInProgress):
		return "attempt_in_progress"
	case errors.Is(err, domain.ErrNoQuestions):
		return "no_questions"
	case errors.Is(err, domain.ErrInvalidQuiz):
		return "invalid_quiz"
	case errors.Is(err, domain.ErrTransientPersistence):
		return "unavailable"
	default:
		return "internal"
	}
}
