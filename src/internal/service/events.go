package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ce-fello/bugbash-service/src/internal/actions"
	"github.com/ce-fello/bugbash-service/src/internal/model"
	"github.com/ce-fello/bugbash-service/src/internal/state"
	"github.com/ce-fello/bugbash-service/src/internal/tags"
	"github.com/ce-fello/bugbash-service/src/internal/workitems"

	"go.uber.org/zap"
)

// EventDocuments is the persistence surface the event intents write through.
type EventDocuments interface {
	ListEvents(ctx context.Context, projectID string) ([]model.Event, error)
	CreateEvent(ctx context.Context, e model.Event) (model.Event, error)
	UpdateEvent(ctx context.Context, e model.Event) (model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	DeleteItems(ctx context.Context, eventID string, itemIDs []string) error
}

// WorkItemUpdater patches existing work items.
type WorkItemUpdater interface {
	UpdateBatch(ctx context.Context, updates []workitems.Update) ([]model.WorkItem, error)
}

// Events issues event directory intents. Every mutation calls persistence
// first and publishes the matching action only on success.
type Events struct {
	hub       *actions.Hub
	store     *state.EventStore
	items     *state.ItemStore
	docs      EventDocuments
	workItems WorkItemUpdater
	identity  state.IdentityProvider
	log       *zap.Logger

	// workItemType is stamped on new events that do not name one.
	workItemType string
}

func NewEvents(hub *actions.Hub, store *state.EventStore, items *state.ItemStore, docs EventDocuments,
	workItems WorkItemUpdater, identity state.IdentityProvider, workItemType string, logger *zap.Logger) *Events {
	if workItemType == "" {
		workItemType = model.DefaultWorkItemType
	}
	return &Events{
		hub:          hub,
		store:        store,
		items:        items,
		docs:         docs,
		workItems:    workItems,
		identity:     identity,
		log:          logger,
		workItemType: workItemType,
	}
}

// InitializeAll loads the event directory once per session. Concurrent
// callers share the first caller's fetch.
func (s *Events) InitializeAll(ctx context.Context) error {
	if !s.store.BeginLoad() {
		if err := s.store.AwaitLoad(ctx); err != nil {
			return model.Transport("list events", err)
		}
		return nil
	}
	s.store.Flush()
	return s.load(ctx, s.hub.InitializeAllEvents)
}

// RefreshAll reloads the event directory regardless of loaded state.
func (s *Events) RefreshAll(ctx context.Context) error {
	s.hub.EventsLoading.Publish(struct{}{})
	return s.load(ctx, s.hub.RefreshAllEvents)
}

func (s *Events) load(ctx context.Context, done *actions.Action[[]model.Event]) error {
	projectID := s.identity.Current().ProjectID
	s.log.Debug("Events.load: start", zap.String("project_id", projectID))
	events, err := s.docs.ListEvents(ctx, projectID)
	if err != nil {
		s.log.Error("Events.load: list failed", zap.String("project_id", projectID), zap.Error(err))
		s.hub.EventsLoadFailed.Publish(struct{}{})
		s.hub.Error(model.ErrorKeyEventDirectory, err.Error())
		return model.Transport("list events", err)
	}
	done.Publish(events)
	s.log.Debug("Events.load: success", zap.Int("count", len(events)))
	return nil
}

// Get returns a cached event or fetches it on demand.
func (s *Events) Get(ctx context.Context, id string) (model.Event, error) {
	return s.store.EnsureItem(ctx, id)
}

func validateEvent(e model.Event) error {
	if strings.TrimSpace(e.Title) == "" {
		return model.ValidationError{Field: "title", Message: "title is required"}
	}
	if !e.ValidWindow() {
		return model.ValidationError{Field: "end_time", Message: "end time is before start time"}
	}
	return nil
}

func (s *Events) Create(ctx context.Context, e model.Event) (model.Event, error) {
	if e.ID != "" {
		return model.Event{}, model.PreconditionError{Op: "create event", Reason: "event already has an id"}
	}
	if err := validateEvent(e); err != nil {
		return model.Event{}, err
	}
	if e.ProjectID == "" {
		e.ProjectID = s.identity.Current().ProjectID
	}
	if e.WorkItemType == "" {
		e.WorkItemType = s.workItemType
	}

	s.log.Debug("Events.Create: start", zap.String("title", e.Title))
	created, err := s.docs.CreateEvent(ctx, e)
	if err != nil {
		s.log.Error("Events.Create: create failed", zap.Error(err))
		s.hub.Error(model.ErrorKeyEventDirectory, err.Error())
		return model.Event{}, model.Transport("create event", err)
	}
	s.hub.CreateEvent.Publish(created)
	s.log.Info("Events.Create: success", zap.String("event_id", created.ID))
	return created, nil
}

func (s *Events) Update(ctx context.Context, e model.Event) (model.Event, error) {
	if e.ID == "" {
		return model.Event{}, model.PreconditionError{Op: "update event", Reason: "event has not been saved"}
	}
	if err := validateEvent(e); err != nil {
		return model.Event{}, err
	}

	s.log.Debug("Events.Update: start", zap.String("event_id", e.ID))
	updated, err := s.docs.UpdateEvent(ctx, e)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Event{}, model.ErrNotFound
		}
		s.log.Error("Events.Update: update failed", zap.String("event_id", e.ID), zap.Error(err))
		s.hub.Error(model.EventErrorKey(e.ID), err.Error())
		return model.Event{}, model.Transport("update event", err)
	}
	s.hub.UpdateEvent.Publish(updated)
	s.log.Info("Events.Update: success", zap.String("event_id", e.ID))
	return updated, nil
}

// Delete removes the event remotely; its cached items leave with it.
func (s *Events) Delete(ctx context.Context, id string) error {
	s.log.Debug("Events.Delete: start", zap.String("event_id", id))
	if err := s.docs.DeleteEvent(ctx, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		s.log.Error("Events.Delete: delete failed", zap.String("event_id", id), zap.Error(err))
		s.hub.Error(model.EventErrorKey(id), err.Error())
		return model.Transport("delete event", err)
	}
	s.hub.DeleteEvent.Publish(id)
	s.log.Info("Events.Delete: success", zap.String("event_id", id))
	return nil
}

// DeleteItems removes items remotely and then from the cache.
func (s *Events) DeleteItems(ctx context.Context, eventID string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	s.log.Debug("Events.DeleteItems: start", zap.String("event_id", eventID), zap.Int("count", len(itemIDs)))
	if err := s.docs.DeleteItems(ctx, eventID, itemIDs); err != nil {
		s.log.Error("Events.DeleteItems: delete failed", zap.String("event_id", eventID), zap.Error(err))
		s.hub.Error(model.ItemsErrorKey(eventID), err.Error())
		return model.Transport("delete items", err)
	}
	s.items.DeleteItems(eventID, itemIDs)
	s.log.Info("Events.DeleteItems: success", zap.String("event_id", eventID))
	return nil
}

// DetachWorkItems strips the bash tag of eventID from each work item in one
// batch round trip and returns the patched work items.
func (s *Events) DetachWorkItems(ctx context.Context, eventID string, items []model.WorkItem) ([]model.WorkItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	updates := make([]workitems.Update, 0, len(items))
	for _, wi := range items {
		current, _ := wi.Fields[model.WorkItemTagsField].(string)
		remaining := tags.RemoveFromBash(eventID, tags.Parse(current))
		updates = append(updates, workitems.Update{
			ID:     wi.ID,
			Fields: model.FieldBag{model.WorkItemTagsField: tags.Join(remaining)},
		})
	}

	s.log.Debug("Events.DetachWorkItems: start", zap.String("event_id", eventID), zap.Int("count", len(updates)))
	patched, err := s.workItems.UpdateBatch(ctx, updates)
	if err != nil {
		s.log.Error("Events.DetachWorkItems: batch failed", zap.String("event_id", eventID), zap.Error(err))
		s.hub.Error(model.EventErrorKey(eventID), err.Error())
		return nil, model.Transport("detach work items", err)
	}
	s.log.Info("Events.DetachWorkItems: success", zap.String("event_id", eventID), zap.Int("count", len(patched)))
	return patched, nil
}
