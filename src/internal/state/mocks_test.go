package state

import (
	"context"
	"time"

	"github.com/ce-fello/bugbash-service/src/internal/actions"
	"github.com/ce-fello/bugbash-service/src/internal/model"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type MockDocuments struct {
	mock.Mock
}

func (m *MockDocuments) GetEvent(ctx context.Context, id string) (model.Event, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Event), args.Error(1)
}

func (m *MockDocuments) ListItems(ctx context.Context, eventID string) ([]model.Item, error) {
	args := m.Called(ctx, eventID)
	return args.Get(0).([]model.Item), args.Error(1)
}

func (m *MockDocuments) GetItem(ctx context.Context, eventID, itemID string) (model.Item, error) {
	args := m.Called(ctx, eventID, itemID)
	return args.Get(0).(model.Item), args.Error(1)
}

func (m *MockDocuments) CreateItem(ctx context.Context, item model.Item) (model.Item, error) {
	args := m.Called(ctx, item)
	return args.Get(0).(model.Item), args.Error(1)
}

func (m *MockDocuments) UpdateItem(ctx context.Context, item model.Item) (model.Item, error) {
	args := m.Called(ctx, item)
	return args.Get(0).(model.Item), args.Error(1)
}

func (m *MockDocuments) ListComments(ctx context.Context, itemID string) ([]model.Comment, error) {
	args := m.Called(ctx, itemID)
	return args.Get(0).([]model.Comment), args.Error(1)
}

func (m *MockDocuments) CreateComment(ctx context.Context, c model.Comment) (model.Comment, error) {
	args := m.Called(ctx, c)
	return args.Get(0).(model.Comment), args.Error(1)
}

type MockWorkItems struct {
	mock.Mock
}

func (m *MockWorkItems) CreateOne(ctx context.Context, workItemType string, fields model.FieldBag) (model.WorkItem, error) {
	args := m.Called(ctx, workItemType, fields)
	return args.Get(0).(model.WorkItem), args.Error(1)
}

type staticIdentity model.Identity

func (s staticIdentity) Current() model.Identity { return model.Identity(s) }

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type fixture struct {
	hub    *actions.Hub
	docs   *MockDocuments
	wit    *MockWorkItems
	events *EventStore
	items  *ItemStore
	errors *ErrorStore
}

func newFixture() *fixture {
	logger := zap.NewNop()
	hub := actions.NewHub()
	docs := new(MockDocuments)
	wit := new(MockWorkItems)
	identity := staticIdentity{DisplayName: "Alice", UniqueName: "alice@example.com", ProjectID: "p1"}

	events := NewEventStore(hub, docs, logger)
	items := NewItemStore(hub, events, docs, docs, wit, identity, logger)
	items.now = func() time.Time { return testNow }

	return &fixture{
		hub:    hub,
		docs:   docs,
		wit:    wit,
		events: events,
		items:  items,
		errors: NewErrorStore(hub),
	}
}
