package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ce-fello/bugbash-service/src/internal/actions"
	"github.com/ce-fello/bugbash-service/src/internal/model"
	"github.com/ce-fello/bugbash-service/src/internal/tags"
	"github.com/ce-fello/bugbash-service/src/internal/viewmodel"

	"go.uber.org/zap"
)

// ItemDocuments is the document persistence collaborator for items.
type ItemDocuments interface {
	ListItems(ctx context.Context, eventID string) ([]model.Item, error)
	GetItem(ctx context.Context, eventID, itemID string) (model.Item, error)
	CreateItem(ctx context.Context, item model.Item) (model.Item, error)
	UpdateItem(ctx context.Context, item model.Item) (model.Item, error)
}

// WorkItemCreator creates the work item an accepted item links to.
type WorkItemCreator interface {
	CreateOne(ctx context.Context, workItemType string, fields model.FieldBag) (model.WorkItem, error)
}

type IdentityProvider interface {
	Current() model.Identity
}

type itemKey struct {
	EventID string
	ItemID  string
}

func keyOfItem(i model.Item) itemKey { return itemKey{EventID: i.EventID, ItemID: i.ID} }

// ItemStore caches items per event and runs the create, update and accept
// workflows. The cache only changes in response to actions published after
// the remote call succeeded.
type ItemStore struct {
	*Base[itemKey, model.Item]

	Comments *CommentStore

	hub       *actions.Hub
	events    *EventStore
	docs      ItemDocuments
	workItems WorkItemCreator
	identity  IdentityProvider
	log       *zap.Logger
	now       func() time.Time

	// items with an update or accept in flight
	writeMu sync.Mutex
	writing map[itemKey]bool
}

func NewItemStore(hub *actions.Hub, events *EventStore, docs ItemDocuments, comments CommentDocuments,
	workItems WorkItemCreator, identity IdentityProvider, logger *zap.Logger) *ItemStore {
	s := &ItemStore{
		Base:      newBase[itemKey, model.Item](),
		hub:       hub,
		events:    events,
		docs:      docs,
		workItems: workItems,
		identity:  identity,
		log:       logger,
		now:       func() time.Time { return time.Now().UTC() },
		writing:   map[itemKey]bool{},
	}
	s.Comments = newCommentStore(hub, comments, identity, logger, func() time.Time { return s.now() })

	hub.InitializeItems.Subscribe(s.onItems)
	hub.RefreshItems.Subscribe(s.onItems)
	hub.ItemsLoadFailed.Subscribe(func(eventID string) { s.finishLoad(eventID, false) })
	hub.RefreshItem.Subscribe(s.onItem)
	hub.CreateItem.Subscribe(s.onItem)
	hub.UpdateItem.Subscribe(s.onItem)
	hub.AcceptItem.Subscribe(s.onItem)
	hub.DeleteItems.Subscribe(s.onDeleteItems)
	hub.ClearItems.Subscribe(s.onClearItems)
	hub.DeleteEvent.Subscribe(s.onDeleteEvent)
	hub.Dispatcher.Register(s)
	return s
}

func (s *ItemStore) onItems(p actions.ItemsPayload) {
	batch := make([]model.Item, 0, len(p.Items))
	for _, it := range p.Items {
		if it.ID != "" && it.EventID == p.EventID {
			batch = append(batch, it)
		}
	}
	s.replaceWhere(func(k itemKey) bool { return k.EventID == p.EventID }, keyOfItem, batch)
	s.finishLoad(p.EventID, true)
}

func (s *ItemStore) onItem(p actions.ItemPayload) {
	if p.Item.ID == "" || p.Item.EventID != p.EventID {
		return
	}
	s.setItem(keyOfItem(p.Item), p.Item)
}

func (s *ItemStore) onDeleteItems(p actions.DeleteItemsPayload) {
	ids := make(map[string]bool, len(p.ItemIDs))
	for _, id := range p.ItemIDs {
		ids[id] = true
	}
	s.removeWhere(func(k itemKey) bool { return k.EventID == p.EventID && ids[k.ItemID] })
}

func (s *ItemStore) onClearItems(eventID string) {
	s.removeWhere(func(k itemKey) bool { return k.EventID == eventID })
}

func (s *ItemStore) onDeleteEvent(eventID string) {
	s.onClearItems(eventID)
	s.forgetScope(eventID)
}

// GetItems returns the persisted items of one event in insertion order.
func (s *ItemStore) GetItems(eventID string) []model.Item {
	return s.filter(func(k itemKey, _ model.Item) bool { return k.EventID == eventID })
}

// GetItem wraps the cached item in a fresh view-model.
func (s *ItemStore) GetItem(eventID, itemID string) (*viewmodel.Item, bool) {
	it, ok := s.Base.GetItem(itemKey{EventID: eventID, ItemID: itemID})
	if !ok {
		return nil, false
	}
	return viewmodel.New(it, s), true
}

// GetNewItem returns a new draft each call so editors never share one buffer.
func (s *ItemStore) GetNewItem(eventID string) *viewmodel.Item {
	return viewmodel.NewDraft(eventID, s)
}

type ItemPartition struct {
	Accepted []model.Item `json:"accepted"`
	Rejected []model.Item `json:"rejected"`
	Pending  []model.Item `json:"pending"`
}

func (s *ItemStore) Partition(eventID string) ItemPartition {
	var p ItemPartition
	for _, it := range s.GetItems(eventID) {
		switch it.Status() {
		case model.ItemStatusAccepted:
			p.Accepted = append(p.Accepted, it)
		case model.ItemStatusRejected:
			p.Rejected = append(p.Rejected, it)
		default:
			p.Pending = append(p.Pending, it)
		}
	}
	return p
}

// InitializeItems fetches the items of an event once per store lifetime.
// Callers arriving while that fetch is in flight wait for it to finish.
func (s *ItemStore) InitializeItems(ctx context.Context, eventID string) error {
	if !s.tryBeginLoad(eventID) {
		if err := s.awaitLoad(ctx, eventID); err != nil {
			return model.Transport("list items", err)
		}
		return nil
	}
	s.Flush()
	return s.loadItems(ctx, eventID, s.hub.InitializeItems)
}

// RefreshItems refetches the items of an event regardless of loaded state.
func (s *ItemStore) RefreshItems(ctx context.Context, eventID string) error {
	s.setLoading(eventID, true)
	s.Flush()
	return s.loadItems(ctx, eventID, s.hub.RefreshItems)
}

func (s *ItemStore) loadItems(ctx context.Context, eventID string, done *actions.Action[actions.ItemsPayload]) error {
	s.log.Debug("ItemStore.loadItems: start", zap.String("event_id", eventID))
	items, err := s.docs.ListItems(ctx, eventID)
	if err != nil {
		s.log.Error("ItemStore.loadItems: list failed", zap.String("event_id", eventID), zap.Error(err))
		s.hub.ItemsLoadFailed.Publish(eventID)
		s.hub.Error(model.ItemsErrorKey(eventID), err.Error())
		return model.Transport("list items", err)
	}
	done.Publish(actions.ItemsPayload{EventID: eventID, Items: items})
	s.log.Debug("ItemStore.loadItems: success", zap.String("event_id", eventID), zap.Int("count", len(items)))
	return nil
}

// RefreshItem reloads one item. An item that no longer exists leaves the cache.
func (s *ItemStore) RefreshItem(ctx context.Context, eventID, itemID string) (model.Item, error) {
	it, err := s.docs.GetItem(ctx, eventID, itemID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.hub.DeleteItems.Publish(actions.DeleteItemsPayload{EventID: eventID, ItemIDs: []string{itemID}})
			return model.Item{}, model.ErrNotFound
		}
		s.log.Error("ItemStore.RefreshItem: get failed", zap.String("item_id", itemID), zap.Error(err))
		s.hub.Error(model.ItemErrorKey(itemID), err.Error())
		return model.Item{}, model.Transport("get item", err)
	}
	s.hub.RefreshItem.Publish(actions.ItemPayload{EventID: eventID, Item: it})
	return it, nil
}

// SaveItem creates a draft or updates a persisted item.
func (s *ItemStore) SaveItem(ctx context.Context, eventID string, item model.Item) (model.Item, error) {
	if item.IsNew() {
		return s.CreateItem(ctx, eventID, item)
	}
	return s.UpdateItem(ctx, eventID, item)
}

// CreateItem persists a draft. When the event auto-accepts, the accept
// workflow runs on the new item; an accept failure is pushed to the error
// surface and the created item is still returned.
func (s *ItemStore) CreateItem(ctx context.Context, eventID string, item model.Item) (model.Item, error) {
	if !item.IsNew() {
		return model.Item{}, model.PreconditionError{Op: "create", Reason: "item already has an id"}
	}
	item = item.Clone()
	item.EventID = eventID
	item.WorkItemID = nil
	item.CreatedDate = s.now()
	if item.CreatedBy == "" {
		item.CreatedBy = s.identity.Current().Distinct()
	}
	if err := viewmodel.Validate(item); err != nil {
		return model.Item{}, err
	}

	s.log.Debug("ItemStore.CreateItem: start", zap.String("event_id", eventID))
	created, err := s.docs.CreateItem(ctx, item)
	if err != nil {
		s.log.Error("ItemStore.CreateItem: create failed", zap.String("event_id", eventID), zap.Error(err))
		s.hub.Error(model.ItemsErrorKey(eventID), err.Error())
		return model.Item{}, model.Transport("create item", err)
	}
	s.hub.CreateItem.Publish(actions.ItemPayload{EventID: eventID, Item: created})
	s.log.Info("ItemStore.CreateItem: success", zap.String("event_id", eventID), zap.String("item_id", created.ID))

	ev, err := s.events.EnsureItem(ctx, eventID)
	if err != nil || !ev.AutoAccept {
		return created, nil
	}
	accepted, err := s.AcceptItem(ctx, eventID, created.ID)
	if err != nil {
		s.log.Warn("ItemStore.CreateItem: auto accept failed", zap.String("item_id", created.ID), zap.Error(err))
		return created, nil
	}
	return accepted, nil
}

func (s *ItemStore) UpdateItem(ctx context.Context, eventID string, item model.Item) (model.Item, error) {
	if item.IsNew() {
		return model.Item{}, model.PreconditionError{Op: "update", Reason: "item has not been saved"}
	}
	if item.EventID != eventID {
		return model.Item{}, model.PreconditionError{Op: "update", Reason: "event id is immutable"}
	}
	if err := viewmodel.Validate(item); err != nil {
		return model.Item{}, err
	}
	key := keyOfItem(item)
	if !s.claim(key) {
		return model.Item{}, model.PreconditionError{Op: "update", Reason: "another write to the item is in progress"}
	}
	defer s.release(key)
	if cached, ok := s.Base.GetItem(key); ok {
		item.CreatedDate = cached.CreatedDate
		item.CreatedBy = cached.CreatedBy
		// Accepted is terminal. A buffer taken before the accept must not
		// unlink the work item or reject the item.
		if cached.IsAccepted() {
			if item.Rejected {
				return model.Item{}, model.PreconditionError{Op: "update", Reason: "an accepted item cannot be rejected"}
			}
			if item.WorkItemID != nil && *item.WorkItemID != *cached.WorkItemID {
				return model.Item{}, model.PreconditionError{Op: "update", Reason: "work item link cannot change"}
			}
			linked := *cached.WorkItemID
			item.WorkItemID = &linked
		}
	}

	s.log.Debug("ItemStore.UpdateItem: start", zap.String("item_id", item.ID))
	updated, err := s.docs.UpdateItem(ctx, item)
	if err != nil {
		s.log.Error("ItemStore.UpdateItem: update failed", zap.String("item_id", item.ID), zap.Error(err))
		s.hub.Error(model.ItemErrorKey(item.ID), err.Error())
		return model.Item{}, model.Transport("update item", err)
	}
	s.hub.UpdateItem.Publish(actions.ItemPayload{EventID: eventID, Item: updated})
	s.log.Info("ItemStore.UpdateItem: success", zap.String("item_id", item.ID))
	return updated, nil
}

// AcceptItem creates a work item for a persisted, not yet accepted item and
// links it. If linking fails after the work item exists, a
// model.PartialAcceptError is returned and CompleteAccept can retry the link.
func (s *ItemStore) AcceptItem(ctx context.Context, eventID, itemID string) (model.Item, error) {
	key := itemKey{EventID: eventID, ItemID: itemID}
	if !s.claim(key) {
		return model.Item{}, model.PreconditionError{Op: "accept", Reason: "another write to the item is in progress"}
	}
	defer s.release(key)
	item, err := s.acceptable(key)
	if err != nil {
		return model.Item{}, err
	}

	ev, err := s.events.EnsureItem(ctx, eventID)
	if err != nil {
		return model.Item{}, err
	}

	s.log.Debug("ItemStore.AcceptItem: create work item", zap.String("item_id", itemID), zap.String("type", ev.ItemWorkItemType()))
	wi, err := s.workItems.CreateOne(ctx, ev.ItemWorkItemType(), WorkItemFields(ev, item))
	if err != nil {
		s.log.Error("ItemStore.AcceptItem: create work item failed", zap.String("item_id", itemID), zap.Error(err))
		s.hub.Error(model.ItemErrorKey(itemID), err.Error())
		return model.Item{}, model.Transport("create work item", err)
	}
	return s.link(ctx, eventID, item, wi.ID)
}

// CompleteAccept retries only the link step of a partial accept.
func (s *ItemStore) CompleteAccept(ctx context.Context, eventID, itemID string, workItemID int) (model.Item, error) {
	key := itemKey{EventID: eventID, ItemID: itemID}
	if !s.claim(key) {
		return model.Item{}, model.PreconditionError{Op: "accept", Reason: "another write to the item is in progress"}
	}
	defer s.release(key)
	item, err := s.acceptable(key)
	if err != nil {
		return model.Item{}, err
	}
	return s.link(ctx, eventID, item, workItemID)
}

func (s *ItemStore) acceptable(key itemKey) (model.Item, error) {
	if key.ItemID == "" {
		return model.Item{}, model.PreconditionError{Op: "accept", Reason: "item has not been saved"}
	}
	item, ok := s.Base.GetItem(key)
	if !ok {
		return model.Item{}, model.PreconditionError{Op: "accept", Reason: "item is not loaded"}
	}
	if item.IsAccepted() {
		return model.Item{}, model.PreconditionError{Op: "accept", Reason: "item is already accepted"}
	}
	return item, nil
}

func (s *ItemStore) link(ctx context.Context, eventID string, item model.Item, workItemID int) (model.Item, error) {
	saved, err := s.docs.UpdateItem(ctx, item.WithWorkItem(workItemID))
	if err != nil {
		perr := model.PartialAcceptError{ItemID: item.ID, WorkItemID: workItemID, Err: err}
		s.log.Error("ItemStore.AcceptItem: link failed", zap.String("item_id", item.ID), zap.Int("work_item_id", workItemID), zap.Error(err))
		s.hub.Error(model.ItemErrorKey(item.ID), perr.Error())
		return model.Item{}, perr
	}
	s.hub.AcceptItem.Publish(actions.ItemPayload{EventID: eventID, Item: saved})
	s.log.Info("ItemStore.AcceptItem: success", zap.String("item_id", item.ID), zap.Int("work_item_id", workItemID))
	return saved, nil
}

// claim marks key as being written. It fails while another update or accept
// of the same item is in flight.
func (s *ItemStore) claim(key itemKey) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writing[key] {
		return false
	}
	s.writing[key] = true
	return true
}

func (s *ItemStore) release(key itemKey) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	delete(s.writing, key)
}

// DeleteItems drops items from the cache after the caller removed them remotely.
func (s *ItemStore) DeleteItems(eventID string, itemIDs []string) {
	s.hub.DeleteItems.Publish(actions.DeleteItemsPayload{EventID: eventID, ItemIDs: itemIDs})
}

// ClearAllItems drops every cached item of an event.
func (s *ItemStore) ClearAllItems(eventID string) {
	s.hub.ClearItems.Publish(eventID)
}

// WorkItemFields builds the field bag of the work item created on accept:
// event defaults, then the item's own fields, then title, description and the
// bash and accepted tags merged with any tags already present.
func WorkItemFields(ev model.Event, item model.Item) model.FieldBag {
	fields := model.FieldBag{}
	for k, v := range ev.Fields {
		fields[k] = v
	}
	for k, v := range item.Fields {
		fields[k] = v
	}
	fields[model.WorkItemTitleField] = item.Title
	if item.Description != "" {
		fields[model.WorkItemDescriptionField] = item.Description
	}

	existing, _ := fields[model.WorkItemTagsField].(string)
	tagList := tags.Parse(existing)
	for _, t := range tags.AcceptTags(ev.ID) {
		if !tags.Contains(tagList, t) {
			tagList = append(tagList, t)
		}
	}
	fields[model.WorkItemTagsField] = tags.Join(tagList)
	return fields
}
