package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ce-fello/bugbash-service/src/internal/api/apiErrors"
	"github.com/ce-fello/bugbash-service/src/internal/model"
	"github.com/ce-fello/bugbash-service/src/internal/service"

	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
)

const requestTimeout = 30 * time.Second

type Handler struct {
	session *service.Session
	log     *zap.Logger
	now     func() time.Time
}

func NewHandler(session *service.Session, logger *zap.Logger) *Handler {
	return &Handler{session: session, log: logger, now: time.Now}
}

func RegisterRoutes(r *chi.Mux, h *Handler) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	r.Route("/events", func(r chi.Router) {
		r.Get("/", withTimeout(h.listEvents))
		r.Post("/", withTimeout(h.createEvent))
		r.Post("/refresh", withTimeout(h.refreshEvents))
		r.Get("/phases", withTimeout(h.eventPhases))

		r.Route("/{eventID}", func(r chi.Router) {
			r.Get("/", withTimeout(h.getEvent))
			r.Put("/", withTimeout(h.updateEvent))
			r.Delete("/", withTimeout(h.deleteEvent))
			r.Post("/detach", withTimeout(h.detachWorkItems))

			r.Get("/items", withTimeout(h.listItems))
			r.Post("/items", withTimeout(h.createItem))
			r.Delete("/items", withTimeout(h.deleteItems))
			r.Post("/items/refresh", withTimeout(h.refreshItems))
			r.Get("/items/partition", withTimeout(h.partitionItems))

			r.Route("/items/{itemID}", func(r chi.Router) {
				r.Get("/", withTimeout(h.getItem))
				r.Patch("/", withTimeout(h.updateItem))
				r.Post("/refresh", withTimeout(h.refreshItem))
				r.Post("/accept", withTimeout(h.acceptItem))
				r.Post("/complete-accept", withTimeout(h.completeAccept))
				r.Post("/reject", withTimeout(h.toggleReject))
				r.Get("/comments", withTimeout(h.listComments))
				r.Post("/comments", withTimeout(h.createComment))
			})
		})
	})

	r.Get("/errors", h.listErrors)
	r.Delete("/errors/{key}", h.dismissError)
}

func withTimeout(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	if err := h.session.EventService.InitializeAll(r.Context()); err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": h.session.Events.GetAll()})
}

func (h *Handler) refreshEvents(w http.ResponseWriter, r *http.Request) {
	if err := h.session.EventService.RefreshAll(r.Context()); err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": h.session.Events.GetAll()})
}

func (h *Handler) eventPhases(w http.ResponseWriter, r *http.Request) {
	if err := h.session.EventService.InitializeAll(r.Context()); err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Events.Partition(h.now()))
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	var e model.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, apiErrors.BadRequest, "invalid body")
		return
	}
	created, err := h.session.EventService.Create(r.Context(), e)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"event": created})
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.session.EventService.Get(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": e})
}

func (h *Handler) updateEvent(w http.ResponseWriter, r *http.Request) {
	var e model.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		writeError(w, http.StatusBadRequest, apiErrors.BadRequest, "invalid body")
		return
	}
	e.ID = chi.URLParam(r, "eventID")
	updated, err := h.session.EventService.Update(r.Context(), e)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": updated})
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.session.EventService.Delete(r.Context(), chi.URLParam(r, "eventID")); err != nil {
		handleSvcError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) detachWorkItems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkItems []model.WorkItem `json:"work_items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.WorkItems) == 0 {
		writeError(w, http.StatusBadRequest, apiErrors.BadRequest, "work_items required")
		return
	}
	patched, err := h.session.EventService.DetachWorkItems(r.Context(), chi.URLParam(r, "eventID"), req.WorkItems)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"work_items": patched})
}

func (h *Handler) listErrors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"errors": h.session.Errors.GetAll()})
}

func (h *Handler) dismissError(w http.ResponseWriter, r *http.Request) {
	h.session.DismissError(chi.URLParam(r, "key"))
	w.WriteHeader(http.StatusNoContent)
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

func writeAPIError(w http.ResponseWriter, code int, e apiErrors.APIError) {
	body := map[string]any{"code": e.Code, "message": e.Message}
	if e.WorkItemID != 0 {
		body["work_item_id"] = e.WorkItemID
	}
	writeJSON(w, code, map[string]any{"error": body})
}

// toAPIError maps the domain error taxonomy onto an error code. Partial
// accepts are checked first because they wrap the link failure.
func toAPIError(err error) apiErrors.APIError {
	var apiErr apiErrors.APIError
	var partial model.PartialAcceptError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &partial):
		return apiErrors.APIError{Code: apiErrors.PartialAccept, Message: err.Error(), WorkItemID: partial.WorkItemID}
	case errors.Is(err, model.ErrValidation):
		return apiErrors.APIError{Code: apiErrors.Validation, Message: err.Error()}
	case errors.Is(err, model.ErrPrecondition):
		return apiErrors.APIError{Code: apiErrors.Precondition, Message: err.Error()}
	case errors.Is(err, model.ErrNotFound):
		return apiErrors.APIError{Code: apiErrors.NotFound, Message: "not found"}
	case errors.Is(err, model.ErrTransport):
		return apiErrors.APIError{Code: apiErrors.Transport, Message: err.Error()}
	default:
		return apiErrors.APIError{Code: apiErrors.InternalError, Message: err.Error()}
	}
}

func statusFor(code apiErrors.ErrorCode) int {
	switch code {
	case apiErrors.BadRequest, apiErrors.Validation:
		return http.StatusBadRequest
	case apiErrors.Precondition:
		return http.StatusConflict
	case apiErrors.NotFound:
		return http.StatusNotFound
	case apiErrors.PartialAccept, apiErrors.Transport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func handleSvcError(w http.ResponseWriter, err error) {
	e := toAPIError(err)
	writeAPIError(w, statusFor(e.Code), e)
}
