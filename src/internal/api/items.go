package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ce-fello/bugbash-service/src/internal/api/apiErrors"
	"github.com/ce-fello/bugbash-service/src/internal/model"
	"github.com/ce-fello/bugbash-service/src/internal/viewmodel"

	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
)

// lookupItem loads the event's items if needed and wraps the requested one.
func (h *Handler) lookupItem(ctx context.Context, r *http.Request) (*viewmodel.Item, error) {
	eventID, itemID := chi.URLParam(r, "eventID"), chi.URLParam(r, "itemID")
	if err := h.session.Items.InitializeItems(ctx, eventID); err != nil {
		return nil, err
	}
	vm, ok := h.session.Items.GetItem(eventID, itemID)
	if !ok {
		return nil, model.ErrNotFound
	}
	return vm, nil
}

func decodeFields(r *http.Request) (map[string]any, bool) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil || len(fields) == 0 {
		return nil, false
	}
	return fields, true
}

func applyFields(vm *viewmodel.Item, fields map[string]any) error {
	for name, value := range fields {
		if err := vm.SetFieldValue(name, value, true); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if err := h.session.Items.InitializeItems(r.Context(), eventID); err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": h.session.Items.GetItems(eventID)})
}

func (h *Handler) refreshItems(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if err := h.session.Items.RefreshItems(r.Context(), eventID); err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": h.session.Items.GetItems(eventID)})
}

func (h *Handler) partitionItems(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if err := h.session.Items.InitializeItems(r.Context(), eventID); err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.Items.Partition(eventID))
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	fields, ok := decodeFields(r)
	if !ok {
		writeError(w, http.StatusBadRequest, apiErrors.BadRequest, "item fields required")
		return
	}
	if _, err := h.session.EventService.Get(r.Context(), eventID); err != nil {
		handleSvcError(w, err)
		return
	}

	vm := h.session.Items.GetNewItem(eventID)
	if err := applyFields(vm, fields); err != nil {
		handleSvcError(w, err)
		return
	}
	if err := vm.Save(r.Context(), eventID); err != nil {
		handleSvcError(w, err)
		return
	}
	h.log.Debug("createItem: saved", zap.String("event_id", eventID), zap.String("item_id", vm.ID()))
	writeJSON(w, http.StatusCreated, map[string]any{"item": vm.Original()})
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	vm, err := h.lookupItem(r.Context(), r)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	item := vm.Original()
	writeJSON(w, http.StatusOK, map[string]any{"item": item, "status": item.Status()})
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(r)
	if !ok {
		writeError(w, http.StatusBadRequest, apiErrors.BadRequest, "item fields required")
		return
	}
	vm, err := h.lookupItem(r.Context(), r)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	if err := applyFields(vm, fields); err != nil {
		handleSvcError(w, err)
		return
	}
	if !vm.IsDirty() {
		writeJSON(w, http.StatusOK, map[string]any{"item": vm.Original()})
		return
	}
	if err := vm.Save(r.Context(), vm.EventID()); err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": vm.Original()})
}

func (h *Handler) refreshItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.session.Items.RefreshItem(r.Context(), chi.URLParam(r, "eventID"), chi.URLParam(r, "itemID"))
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (h *Handler) acceptItem(w http.ResponseWriter, r *http.Request) {
	vm, err := h.lookupItem(r.Context(), r)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	if err := vm.Accept(r.Context()); err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": vm.Original()})
}

func (h *Handler) completeAccept(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WorkItemID int `json:"work_item_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WorkItemID <= 0 {
		writeError(w, http.StatusBadRequest, apiErrors.BadRequest, "work_item_id required")
		return
	}
	vm, err := h.lookupItem(r.Context(), r)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	item, err := h.session.Items.CompleteAccept(r.Context(), vm.EventID(), vm.ID(), req.WorkItemID)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

// toggleReject flips the rejection as the session user and saves it. A reason
// is recorded only when the item ends up rejected.
func (h *Handler) toggleReject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, apiErrors.BadRequest, "invalid body")
		return
	}
	vm, err := h.lookupItem(r.Context(), r)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	if err := vm.ToggleReject(h.session.Identity()); err != nil {
		handleSvcError(w, err)
		return
	}
	if req.Reason != "" && vm.Current().Rejected {
		if err := vm.SetFieldValue(model.FieldRejectReason, req.Reason, true); err != nil {
			handleSvcError(w, err)
			return
		}
	}
	if err := vm.Save(r.Context(), vm.EventID()); err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": vm.Original()})
}

func (h *Handler) deleteItems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemIDs []string `json:"item_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.ItemIDs) == 0 {
		writeError(w, http.StatusBadRequest, apiErrors.BadRequest, "item_ids required")
		return
	}
	if err := h.session.EventService.DeleteItems(r.Context(), chi.URLParam(r, "eventID"), req.ItemIDs); err != nil {
		handleSvcError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	vm, err := h.lookupItem(r.Context(), r)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	comments := h.session.Items.Comments
	if err := comments.InitializeComments(r.Context(), vm.ID()); err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments.GetComments(vm.ID())})
}

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apiErrors.BadRequest, "invalid body")
		return
	}
	vm, err := h.lookupItem(r.Context(), r)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	c, err := h.session.Items.Comments.CreateComment(r.Context(), vm.ID(), req.Text)
	if err != nil {
		handleSvcError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"comment": c})
}
