package actions

import "github.com/ce-fello/bugbash-service/src/internal/model"

type ItemsPayload struct {
	EventID string
	Items   []model.Item
}

type ItemPayload struct {
	EventID string
	Item    model.Item
}

type DeleteItemsPayload struct {
	EventID string
	ItemIDs []string
}

type CommentsPayload struct {
	ItemID   string
	Comments []model.Comment
}

type CommentPayload struct {
	ItemID  string
	Comment model.Comment
}

// Hub holds one channel per semantic event. It is built once per session.
type Hub struct {
	Dispatcher *Dispatcher

	InitializeAllEvents *Action[[]model.Event]
	RefreshAllEvents    *Action[[]model.Event]
	EventsLoading       *Action[struct{}]
	EventsLoadFailed    *Action[struct{}]
	InitializeEvent     *Action[model.Event]
	RefreshEvent        *Action[model.Event]
	CreateEvent         *Action[model.Event]
	UpdateEvent         *Action[model.Event]
	DeleteEvent         *Action[string]

	InitializeItems *Action[ItemsPayload]
	RefreshItems    *Action[ItemsPayload]
	ItemsLoadFailed *Action[string]
	RefreshItem     *Action[ItemPayload]
	CreateItem      *Action[ItemPayload]
	UpdateItem      *Action[ItemPayload]
	AcceptItem      *Action[ItemPayload]
	DeleteItems     *Action[DeleteItemsPayload]
	ClearItems      *Action[string]

	InitializeComments *Action[CommentsPayload]
	RefreshComments    *Action[CommentsPayload]
	CommentsLoadFailed *Action[string]
	CreateComment      *Action[CommentPayload]
	ClearComments      *Action[struct{}]

	PushError    *Action[model.ErrorMessage]
	DismissError *Action[string]
}

func NewHub() *Hub {
	d := NewDispatcher()
	return &Hub{
		Dispatcher: d,

		InitializeAllEvents: NewAction[[]model.Event](d),
		RefreshAllEvents:    NewAction[[]model.Event](d),
		EventsLoading:       NewAction[struct{}](d),
		EventsLoadFailed:    NewAction[struct{}](d),
		InitializeEvent:     NewAction[model.Event](d),
		RefreshEvent:        NewAction[model.Event](d),
		CreateEvent:         NewAction[model.Event](d),
		UpdateEvent:         NewAction[model.Event](d),
		DeleteEvent:         NewAction[string](d),

		InitializeItems: NewAction[ItemsPayload](d),
		RefreshItems:    NewAction[ItemsPayload](d),
		ItemsLoadFailed: NewAction[string](d),
		RefreshItem:     NewAction[ItemPayload](d),
		CreateItem:      NewAction[ItemPayload](d),
		UpdateItem:      NewAction[ItemPayload](d),
		AcceptItem:      NewAction[ItemPayload](d),
		DeleteItems:     NewAction[DeleteItemsPayload](d),
		ClearItems:      NewAction[string](d),

		InitializeComments: NewAction[CommentsPayload](d),
		RefreshComments:    NewAction[CommentsPayload](d),
		CommentsLoadFailed: NewAction[string](d),
		CreateComment:      NewAction[CommentPayload](d),
		ClearComments:      NewAction[struct{}](d),

		PushError:    NewAction[model.ErrorMessage](d),
		DismissError: NewAction[string](d),
	}
}

// Error publishes a keyed error message.
func (h *Hub) Error(key, message string) {
	h.PushError.Publish(model.ErrorMessage{Key: key, Message: message})
}
