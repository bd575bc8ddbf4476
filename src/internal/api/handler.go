package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ce-fello/recruitment-review-service/src/internal/api/apiErrors"
	"github.com/ce-fello/recruitment-review-service/src/internal/metrics"
	"github.com/ce-fello/recruitment-review-service/src/internal/model"
	"github.com/ce-fello/recruitment-review-service/src/internal/service"

	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
)

const defaultRequestTimeout = 5 * time.Second

type Handler struct {
	svc     *service.Service
	log     *zap.Logger
	timeout time.Duration
	ident   IdentityConfig
}

func NewHandler(svc *service.Service, ident IdentityConfig, timeout time.Duration, logger *zap.Logger) *Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Handler{svc: svc, log: logger, timeout: timeout, ident: ident}
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(IdentityMiddleware(h.ident))

		r.Get("/auth/me", h.withTimeout(h.me))

		r.Post("/applications", h.withTimeout(h.submitApplication))
		r.Get("/applications/mine", h.withTimeout(h.myApplications))
		r.Get("/applications/{id}", h.withTimeout(h.getApplication))
		r.Post("/applications/{id}/notes", h.withTimeout(h.addNote))

		r.Get("/review/queue/{branch}", h.withTimeout(h.getQueue))
		r.Get("/review/queue/{branch}/summary", h.withTimeout(h.branchSummary))
		r.Post("/review/claim/{id}", h.withTimeout(h.claim))
		r.Post("/review/release/{id}", h.withTimeout(h.release))
		r.Post("/review/decision/{id}", h.withTimeout(h.decision))
		r.Get("/review/history/{id}", h.withTimeout(h.history))

		r.Get("/reports/branch-notes/{branch}", h.withTimeout(h.branchNotes))
		r.Get("/stats/reviewer", h.withTimeout(h.reviewerStats))
	})
}

func (h *Handler) withTimeout(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.Whoami(callerEmail(r.Context()))
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviewer": entry})
}

func (h *Handler) submitApplication(w http.ResponseWriter, r *http.Request) {
	var sub model.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, apiErrors.InvalidArgument, "invalid body")
		return
	}
	// the verified caller is the applicant
	sub.ApplicantEmail = callerEmail(r.Context())
	app, err := h.svc.SubmitApplication(r.Context(), sub)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"application": app})
}

func (h *Handler) myApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.svc.ListApplicantApplications(r.Context(), callerEmail(r.Context()))
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (h *Handler) getApplication(w http.ResponseWriter, r *http.Request) {
	app, err := h.svc.GetApplication(r.Context(), chi.URLParam(r, "id"), callerEmail(r.Context()))
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"application": app})
}

func (h *Handler) addNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apiErrors.InvalidArgument, "invalid body")
		return
	}
	note, err := h.svc.AddNote(r.Context(), chi.URLParam(r, "id"), callerEmail(r.Context()), req.Note)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"note": note})
}

func (h *Handler) getQueue(w http.ResponseWriter, r *http.Request) {
	branch := chi.URLParam(r, "branch")
	apps, err := h.svc.GetQueue(r.Context(), callerEmail(r.Context()), branch)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"branch": branch, "applications": apps})
}

func (h *Handler) branchSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.BranchSummary(r.Context(), callerEmail(r.Context()), chi.URLParam(r, "branch"))
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) claim(w http.ResponseWriter, r *http.Request) {
	app, err := h.svc.AcquireClaim(r.Context(), chi.URLParam(r, "id"), callerEmail(r.Context()))
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"application": app})
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	app, err := h.svc.ReleaseClaim(r.Context(), chi.URLParam(r, "id"), callerEmail(r.Context()))
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"application": app})
}

func (h *Handler) decision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision string `json:"decision"`
		Notes    string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Decision == "" {
		writeError(w, http.StatusBadRequest, apiErrors.InvalidArgument, "decision required")
		return
	}
	ev, err := h.svc.RecordDecision(r.Context(), chi.URLParam(r, "id"), callerEmail(r.Context()), req.Decision, req.Notes)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decision": ev, "status": ev.Decision.Status()})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	hist, err := h.svc.GetHistory(r.Context(), id, callerEmail(r.Context()))
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"application_id": id, "history": hist})
}

func (h *Handler) branchNotes(w http.ResponseWriter, r *http.Request) {
	branch := chi.URLParam(r, "branch")
	notes, err := h.svc.BranchNotes(r.Context(), callerEmail(r.Context()), branch)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"branch": branch, "notes_by_role": notes})
}

func (h *Handler) reviewerStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.ReviewerStats(r.Context(), callerEmail(r.Context()))
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, errCode apiErrors.ErrorCode, message string) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{"code": errCode, "message": message},
	})
}

func handleSvcError(w http.ResponseWriter, err error) {
	var e apiErrors.APIError
	switch {
	case errors.As(err, &e):
		switch e.Code {
		case apiErrors.Forbidden:
			writeError(w, http.StatusForbidden, e.Code, e.Message)
		case apiErrors.NotFound:
			writeError(w, http.StatusNotFound, e.Code, e.Message)
		case apiErrors.Conflict:
			writeError(w, http.StatusConflict, e.Code, e.Message)
		case apiErrors.InvalidArgument:
			writeError(w, http.StatusBadRequest, e.Code, e.Message)
		case apiErrors.Unavailable:
			writeError(w, http.StatusServiceUnavailable, e.Code, e.Message)
		case apiErrors.Unauthenticated:
			writeError(w, http.StatusUnauthorized, e.Code, e.Message)
		default:
			writeError(w, http.StatusInternalServerError, apiErrors.InternalError, e.Message)
		}
	default:
		writeError(w, http.StatusInternalServerError, apiErrors.InternalError, "internal error")
	}
}
