package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ce-fello/bugbash-service/src/internal/model"
	"github.com/ce-fello/bugbash-service/src/internal/workitems"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockDocuments struct {
	mock.Mock
}

func (m *MockDocuments) ListEvents(ctx context.Context, projectID string) ([]model.Event, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).([]model.Event), args.Error(1)
}

func (m *MockDocuments) GetEvent(ctx context.Context, id string) (model.Event, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Event), args.Error(1)
}

func (m *MockDocuments) CreateEvent(ctx context.Context, e model.Event) (model.Event, error) {
	args := m.Called(ctx, e)
	return args.Get(0).(model.Event), args.Error(1)
}

func (m *MockDocuments) UpdateEvent(ctx context.Context, e model.Event) (model.Event, error) {
	args := m.Called(ctx, e)
	return args.Get(0).(model.Event), args.Error(1)
}

func (m *MockDocuments) DeleteEvent(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
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

func (m *MockDocuments) DeleteItems(ctx context.Context, eventID string, itemIDs []string) error {
	args := m.Called(ctx, eventID, itemIDs)
	return args.Error(0)
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

func (m *MockWorkItems) UpdateBatch(ctx context.Context, updates []workitems.Update) ([]model.WorkItem, error) {
	args := m.Called(ctx, updates)
	return args.Get(0).([]model.WorkItem), args.Error(1)
}

var testIdentity = StaticIdentity{DisplayName: "Ada", UniqueName: "ada@example.com", ProjectID: "p1"}

func createTestSession() (*Session, *MockDocuments, *MockWorkItems) {
	docs := new(MockDocuments)
	wit := new(MockWorkItems)
	return NewSession(docs, wit, testIdentity, "Bug", zap.NewNop()), docs, wit
}

func TestInitializeAll_LoadsOnce(t *testing.T) {
	s, docs, _ := createTestSession()
	ctx := context.Background()
	docs.On("ListEvents", mock.Anything, "p1").Return([]model.Event{{ID: "e1", Title: "Fall bash"}}, nil).Once()

	require.NoError(t, s.EventService.InitializeAll(ctx))
	require.NoError(t, s.EventService.InitializeAll(ctx))

	assert.True(t, s.Events.IsLoaded())
	assert.False(t, s.Events.IsLoading())
	assert.Len(t, s.Events.GetAll(), 1)
	docs.AssertNumberOfCalls(t, "ListEvents", 1)
}

func TestInitializeAll_ConcurrentCallerSharesFetch(t *testing.T) {
	s, docs, _ := createTestSession()
	ctx := context.Background()
	release := make(chan struct{})
	listing := make(chan struct{})
	docs.On("ListEvents", mock.Anything, "p1").Run(func(mock.Arguments) {
		close(listing)
		<-release
	}).Return([]model.Event{{ID: "e1", Title: "Fall bash"}}, nil).Once()

	first := make(chan error, 1)
	go func() { first <- s.EventService.InitializeAll(ctx) }()
	<-listing

	second := make(chan error, 1)
	go func() { second <- s.EventService.InitializeAll(ctx) }()
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.NoError(t, <-first)
	require.NoError(t, <-second)
	assert.Len(t, s.Events.GetAll(), 1)
	docs.AssertNumberOfCalls(t, "ListEvents", 1)
}

func TestInitializeAll_FailureSurfacesAndAllowsRetry(t *testing.T) {
	s, docs, _ := createTestSession()
	ctx := context.Background()
	docs.On("ListEvents", mock.Anything, "p1").Return([]model.Event(nil), errors.New("connection refused")).Once()
	docs.On("ListEvents", mock.Anything, "p1").Return([]model.Event{{ID: "e1", Title: "Fall bash"}}, nil).Once()

	err := s.EventService.InitializeAll(ctx)

	assert.ErrorIs(t, err, model.ErrTransport)
	assert.False(t, s.Events.IsLoading())
	assert.False(t, s.Events.IsLoaded())
	msg, ok := s.Errors.Message(model.ErrorKeyEventDirectory)
	assert.True(t, ok)
	assert.Equal(t, "connection refused", msg)

	require.NoError(t, s.EventService.InitializeAll(ctx))
	assert.True(t, s.Events.IsLoaded())
}

func TestRefreshAll_ReplacesDirectory(t *testing.T) {
	s, docs, _ := createTestSession()
	ctx := context.Background()
	docs.On("ListEvents", mock.Anything, "p1").Return([]model.Event{{ID: "e1", Title: "A"}, {ID: "e2", Title: "B"}}, nil).Once()
	docs.On("ListEvents", mock.Anything, "p1").Return([]model.Event{{ID: "e2", Title: "B2"}}, nil).Once()

	require.NoError(t, s.EventService.InitializeAll(ctx))
	require.NoError(t, s.EventService.RefreshAll(ctx))

	all := s.Events.GetAll()
	require.Len(t, all, 1)
	assert.Equal(t, "B2", all[0].Title)
}

func TestCreateEvent_Validation(t *testing.T) {
	s, docs, _ := createTestSession()
	start := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	_, err := s.EventService.Create(context.Background(), model.Event{Title: "  "})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = s.EventService.Create(context.Background(), model.Event{Title: "Bash", StartTime: &start, EndTime: &end})
	assert.ErrorIs(t, err, model.ErrValidation)

	docs.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything)
}

func TestCreateEvent_PublishesAfterPersist(t *testing.T) {
	s, docs, _ := createTestSession()
	docs.On("CreateEvent", mock.Anything, model.Event{Title: "Bash", ProjectID: "p1", WorkItemType: "Bug"}).
		Return(model.Event{ID: "e9", Title: "Bash", ProjectID: "p1", WorkItemType: "Bug"}, nil)

	created, err := s.EventService.Create(context.Background(), model.Event{Title: "Bash"})

	require.NoError(t, err)
	assert.Equal(t, "e9", created.ID)
	cached, ok := s.Events.GetItem("e9")
	assert.True(t, ok)
	assert.Equal(t, "Bash", cached.Title)
}

func TestCreateEvent_FailureLeavesCacheUntouched(t *testing.T) {
	s, docs, _ := createTestSession()
	docs.On("CreateEvent", mock.Anything, mock.Anything).Return(model.Event{}, errors.New("timeout"))

	_, err := s.EventService.Create(context.Background(), model.Event{Title: "Bash"})

	assert.ErrorIs(t, err, model.ErrTransport)
	assert.Empty(t, s.Events.GetAll())
}

func TestUpdateEvent_NotFound(t *testing.T) {
	s, docs, _ := createTestSession()
	docs.On("UpdateEvent", mock.Anything, mock.Anything).Return(model.Event{}, model.ErrNotFound)

	_, err := s.EventService.Update(context.Background(), model.Event{ID: "gone", Title: "X"})

	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestUpdateEvent_UnsavedIsPrecondition(t *testing.T) {
	s, _, _ := createTestSession()

	_, err := s.EventService.Update(context.Background(), model.Event{Title: "X"})

	assert.ErrorIs(t, err, model.ErrPrecondition)
}

func TestDeleteEvent_DropsItems(t *testing.T) {
	s, docs, _ := createTestSession()
	ctx := context.Background()
	docs.On("GetEvent", mock.Anything, "e1").Return(model.Event{ID: "e1", Title: "Bash"}, nil)
	docs.On("ListItems", mock.Anything, "e1").Return([]model.Item{{ID: "i1", EventID: "e1", Title: "Crash"}}, nil)
	docs.On("DeleteEvent", mock.Anything, "e1").Return(nil)

	_, err := s.EventService.Get(ctx, "e1")
	require.NoError(t, err)
	require.NoError(t, s.Items.InitializeItems(ctx, "e1"))
	require.Len(t, s.Items.GetItems("e1"), 1)

	require.NoError(t, s.EventService.Delete(ctx, "e1"))

	_, ok := s.Events.GetItem("e1")
	assert.False(t, ok)
	assert.Empty(t, s.Items.GetItems("e1"))
}

func TestDeleteItems_RemoteFailureKeepsCache(t *testing.T) {
	s, docs, _ := createTestSession()
	ctx := context.Background()
	docs.On("ListItems", mock.Anything, "e1").Return([]model.Item{{ID: "i1", EventID: "e1", Title: "Crash"}}, nil)
	docs.On("DeleteItems", mock.Anything, "e1", []string{"i1"}).Return(errors.New("boom")).Once()
	docs.On("DeleteItems", mock.Anything, "e1", []string{"i1"}).Return(nil).Once()
	require.NoError(t, s.Items.InitializeItems(ctx, "e1"))

	err := s.EventService.DeleteItems(ctx, "e1", []string{"i1"})
	assert.ErrorIs(t, err, model.ErrTransport)
	assert.Len(t, s.Items.GetItems("e1"), 1)

	require.NoError(t, s.EventService.DeleteItems(ctx, "e1", []string{"i1"}))
	assert.Empty(t, s.Items.GetItems("e1"))
}

func TestDetachWorkItems_StripsBashTags(t *testing.T) {
	s, _, wit := createTestSession()
	in := []model.WorkItem{
		{ID: 7, Fields: map[string]any{"System.Tags": "ui; BugBash_e1; accepted"}},
		{ID: 8, Fields: map[string]any{}},
	}
	want := []workitems.Update{
		{ID: 7, Fields: model.FieldBag{"System.Tags": "ui"}},
		{ID: 8, Fields: model.FieldBag{"System.Tags": ""}},
	}
	wit.On("UpdateBatch", mock.Anything, want).Return([]model.WorkItem{{ID: 7}, {ID: 8}}, nil)

	out, err := s.EventService.DetachWorkItems(context.Background(), "e1", in)

	require.NoError(t, err)
	assert.Len(t, out, 2)
	wit.AssertExpectations(t)
}

func TestDetachWorkItems_BatchFailure(t *testing.T) {
	s, _, wit := createTestSession()
	wit.On("UpdateBatch", mock.Anything, mock.Anything).Return([]model.WorkItem(nil), errors.New("503"))

	_, err := s.EventService.DetachWorkItems(context.Background(), "e1", []model.WorkItem{{ID: 1}})

	assert.ErrorIs(t, err, model.ErrTransport)
	_, ok := s.Errors.Message(model.EventErrorKey("e1"))
	assert.True(t, ok)
}

func TestDismissError(t *testing.T) {
	s, _, _ := createTestSession()
	s.Hub.Error("k", "boom")

	s.DismissError("k")

	_, ok := s.Errors.Message("k")
	assert.False(t, ok)
}
