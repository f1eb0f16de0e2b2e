package api

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/ce-fello/bugbash-service/src/internal/model"
	"github.com/ce-fello/bugbash-service/src/internal/workitems"
)

// memDocuments is an in-memory document store with the same not-found
// semantics as the Postgres repositories.
type memDocuments struct {
	mu       sync.Mutex
	seq      int
	events   []model.Event
	items    []model.Item
	comments []model.Comment

	// failUpdates makes the next n UpdateItem calls fail.
	failUpdates int
}

func (m *memDocuments) nextID(prefix string) string {
	m.seq++
	return prefix + strconv.Itoa(m.seq)
}

func (m *memDocuments) ListEvents(_ context.Context, projectID string) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Event
	for _, e := range m.events {
		if e.ProjectID == projectID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

func (m *memDocuments) GetEvent(_ context.Context, id string) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			return e.Clone(), nil
		}
	}
	return model.Event{}, model.ErrNotFound
}

func (m *memDocuments) CreateEvent(_ context.Context, e model.Event) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID("e")
	m.events = append(m.events, e.Clone())
	return e, nil
}

func (m *memDocuments) UpdateEvent(_ context.Context, e model.Event) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].ID == e.ID {
			m.events[i] = e.Clone()
			return e, nil
		}
	}
	return model.Event{}, model.ErrNotFound
}

func (m *memDocuments) DeleteEvent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.events {
		if m.events[i].ID == id {
			m.events = append(m.events[:i], m.events[i+1:]...)
			kept := m.items[:0]
			for _, it := range m.items {
				if it.EventID != id {
					kept = append(kept, it)
				}
			}
			m.items = kept
			return nil
		}
	}
	return model.ErrNotFound
}

func (m *memDocuments) ListItems(_ context.Context, eventID string) ([]model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Item
	for _, it := range m.items {
		if it.EventID == eventID {
			out = append(out, it.Clone())
		}
	}
	return out, nil
}

func (m *memDocuments) GetItem(_ context.Context, eventID, itemID string) (model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.EventID == eventID && it.ID == itemID {
			return it.Clone(), nil
		}
	}
	return model.Item{}, model.ErrNotFound
}

func (m *memDocuments) CreateItem(_ context.Context, item model.Item) (model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = m.nextID("i")
	m.items = append(m.items, item.Clone())
	return item, nil
}

func (m *memDocuments) UpdateItem(_ context.Context, item model.Item) (model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdates > 0 {
		m.failUpdates--
		return model.Item{}, errors.New("document store unavailable")
	}
	for i := range m.items {
		if m.items[i].ID == item.ID && m.items[i].EventID == item.EventID {
			m.items[i] = item.Clone()
			return item, nil
		}
	}
	return model.Item{}, model.ErrNotFound
}

func (m *memDocuments) DeleteItems(_ context.Context, eventID string, itemIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := map[string]bool{}
	for _, id := range itemIDs {
		drop[id] = true
	}
	kept := m.items[:0]
	for _, it := range m.items {
		if it.EventID != eventID || !drop[it.ID] {
			kept = append(kept, it)
		}
	}
	m.items = kept
	return nil
}

func (m *memDocuments) ListComments(_ context.Context, itemID string) ([]model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Comment
	for _, c := range m.comments {
		if c.ItemID == itemID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memDocuments) CreateComment(_ context.Context, c model.Comment) (model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID("c")
	m.comments = append(m.comments, c)
	return c, nil
}

type recordingWorkItems struct {
	mu      sync.Mutex
	nextID  int
	created []model.FieldBag
	batches [][]workitems.Update
}

func (r *recordingWorkItems) CreateOne(_ context.Context, _ string, fields model.FieldBag) (model.WorkItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.created = append(r.created, fields)
	return model.WorkItem{ID: r.nextID, Fields: fields}, nil
}

func (r *recordingWorkItems) UpdateBatch(_ context.Context, updates []workitems.Update) ([]model.WorkItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, updates)
	out := make([]model.WorkItem, 0, len(updates))
	for _, u := range updates {
		out = append(out, model.WorkItem{ID: u.ID, Fields: u.Fields})
	}
	return out, nil
}

func (m *memDocuments) failNextUpdates(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failUpdates = n
}

func (m *memDocuments) itemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (r *recordingWorkItems) createdFields() []model.FieldBag {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.FieldBag(nil), r.created...)
}

func (r *recordingWorkItems) batchCalls() [][]workitems.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]workitems.Update(nil), r.batches...)
}
