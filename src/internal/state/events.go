package state

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ce-fello/bugbash-service/src/internal/actions"
	"github.com/ce-fello/bugbash-service/src/internal/model"

	"go.uber.org/zap"
)

// EventReader fetches one event definition from persistence.
type EventReader interface {
	GetEvent(ctx context.Context, id string) (model.Event, error)
}

const allEvents = ""

// EventStore caches bug bash event definitions. Writes arrive as actions
// published after the remote call succeeded; the only remote call made here is
// the lazy fetch in EnsureItem.
type EventStore struct {
	*Base[string, model.Event]

	hub  *actions.Hub
	docs EventReader
	log  *zap.Logger
}

func NewEventStore(hub *actions.Hub, docs EventReader, logger *zap.Logger) *EventStore {
	s := &EventStore{
		Base: newBase[string, model.Event](),
		hub:  hub,
		docs: docs,
		log:  logger,
	}
	hub.InitializeAllEvents.Subscribe(s.onAllEvents)
	hub.RefreshAllEvents.Subscribe(s.onAllEvents)
	hub.EventsLoading.Subscribe(func(struct{}) { s.setLoading(allEvents, true) })
	hub.EventsLoadFailed.Subscribe(func(struct{}) { s.finishLoad(allEvents, false) })
	hub.InitializeEvent.Subscribe(s.onEvent)
	hub.RefreshEvent.Subscribe(s.onEvent)
	hub.CreateEvent.Subscribe(s.onEvent)
	hub.UpdateEvent.Subscribe(s.onEvent)
	hub.DeleteEvent.Subscribe(s.onDelete)
	hub.Dispatcher.Register(s)
	return s
}

func eventKey(e model.Event) string { return e.ID }

func (s *EventStore) onAllEvents(events []model.Event) {
	s.replaceWhere(func(string) bool { return true }, eventKey, events)
	s.finishLoad(allEvents, true)
}

func (s *EventStore) onEvent(e model.Event) {
	s.setItem(e.ID, e)
}

func (s *EventStore) onDelete(id string) {
	s.removeItem(id)
}

// IsLoading reports whether the event directory is being fetched.
func (s *EventStore) IsLoading() bool { return s.Base.IsLoading(allEvents) }

func (s *EventStore) IsLoaded() bool { return s.Base.IsLoaded(allEvents) }

// BeginLoad marks the directory as loading unless it is already loading or
// loaded. It reports whether the caller should fetch.
func (s *EventStore) BeginLoad() bool { return s.tryBeginLoad(allEvents) }

// AwaitLoad blocks while the directory load is in flight. It fails when that
// load did not complete.
func (s *EventStore) AwaitLoad(ctx context.Context) error { return s.awaitLoad(ctx, allEvents) }

// EnsureItem returns the cached event or fetches it. Lookup misses and
// transport failures both yield model.ErrNotFound; failures are also pushed to
// the error surface.
func (s *EventStore) EnsureItem(ctx context.Context, id string) (model.Event, error) {
	if e, ok := s.GetItem(id); ok {
		return e, nil
	}
	s.log.Debug("EventStore.EnsureItem: fetch", zap.String("event_id", id))
	e, err := s.docs.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.log.Debug("EventStore.EnsureItem: not found", zap.String("event_id", id))
			return model.Event{}, model.ErrNotFound
		}
		s.log.Error("EventStore.EnsureItem: fetch failed", zap.String("event_id", id), zap.Error(err))
		s.hub.Error(model.EventErrorKey(id), err.Error())
		return model.Event{}, model.ErrNotFound
	}
	s.hub.InitializeEvent.Publish(e)
	return e, nil
}

type EventPhases struct {
	Past     []model.Event `json:"past"`
	Current  []model.Event `json:"current"`
	Upcoming []model.Event `json:"upcoming"`
}

// Partition groups cached events by phase. Past events sort by end time,
// current and upcoming by start time; unset times sort first.
func (s *EventStore) Partition(now time.Time) EventPhases {
	var p EventPhases
	for _, e := range s.GetAll() {
		switch e.Phase(now) {
		case model.PhasePast:
			p.Past = append(p.Past, e)
		case model.PhaseUpcoming:
			p.Upcoming = append(p.Upcoming, e)
		default:
			p.Current = append(p.Current, e)
		}
	}
	sortByTime(p.Past, func(e model.Event) *time.Time { return e.EndTime })
	sortByTime(p.Current, func(e model.Event) *time.Time { return e.StartTime })
	sortByTime(p.Upcoming, func(e model.Event) *time.Time { return e.StartTime })
	return p
}

func sortByTime(events []model.Event, at func(model.Event) *time.Time) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := at(events[i]), at(events[j])
		switch {
		case a == nil:
			return b != nil
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
}
