package state

import (
	"context"
	"strings"
	"time"

	"github.com/ce-fello/bugbash-service/src/internal/actions"
	"github.com/ce-fello/bugbash-service/src/internal/model"

	"go.uber.org/zap"
)

type CommentDocuments interface {
	ListComments(ctx context.Context, itemID string) ([]model.Comment, error)
	CreateComment(ctx context.Context, c model.Comment) (model.Comment, error)
}

// CommentStore is the append-only comment cache keyed by item id.
type CommentStore struct {
	*Base[string, []model.Comment]

	hub      *actions.Hub
	docs     CommentDocuments
	identity IdentityProvider
	log      *zap.Logger
	now      func() time.Time
}

func newCommentStore(hub *actions.Hub, docs CommentDocuments, identity IdentityProvider, logger *zap.Logger, now func() time.Time) *CommentStore {
	s := &CommentStore{
		Base:     newBase[string, []model.Comment](),
		hub:      hub,
		docs:     docs,
		identity: identity,
		log:      logger,
		now:      now,
	}
	hub.InitializeComments.Subscribe(s.onComments)
	hub.RefreshComments.Subscribe(s.onComments)
	hub.CommentsLoadFailed.Subscribe(func(itemID string) { s.finishLoad(itemID, false) })
	hub.CreateComment.Subscribe(s.onCreate)
	hub.ClearComments.Subscribe(s.onClear)
	hub.Dispatcher.Register(s)
	return s
}

func (s *CommentStore) onComments(p actions.CommentsPayload) {
	s.setItem(p.ItemID, append([]model.Comment(nil), p.Comments...))
	s.finishLoad(p.ItemID, true)
}

func (s *CommentStore) onCreate(p actions.CommentPayload) {
	existing, _ := s.GetItem(p.ItemID)
	next := make([]model.Comment, 0, len(existing)+1)
	next = append(next, existing...)
	s.setItem(p.ItemID, append(next, p.Comment))
}

func (s *CommentStore) onClear(struct{}) {
	s.resetScopes()
	s.removeWhere(func(string) bool { return true })
}

func (s *CommentStore) GetComments(itemID string) []model.Comment {
	c, _ := s.GetItem(itemID)
	return append([]model.Comment(nil), c...)
}

// InitializeComments fetches the comments of an item once.
func (s *CommentStore) InitializeComments(ctx context.Context, itemID string) error {
	if !s.tryBeginLoad(itemID) {
		if err := s.awaitLoad(ctx, itemID); err != nil {
			return model.Transport("list comments", err)
		}
		return nil
	}
	s.Flush()
	return s.load(ctx, itemID, s.hub.InitializeComments)
}

func (s *CommentStore) RefreshComments(ctx context.Context, itemID string) error {
	s.setLoading(itemID, true)
	s.Flush()
	return s.load(ctx, itemID, s.hub.RefreshComments)
}

func (s *CommentStore) load(ctx context.Context, itemID string, done *actions.Action[actions.CommentsPayload]) error {
	comments, err := s.docs.ListComments(ctx, itemID)
	if err != nil {
		s.log.Error("CommentStore.load: list failed", zap.String("item_id", itemID), zap.Error(err))
		s.hub.CommentsLoadFailed.Publish(itemID)
		s.hub.Error(model.CommentsErrorKey(itemID), err.Error())
		return model.Transport("list comments", err)
	}
	done.Publish(actions.CommentsPayload{ItemID: itemID, Comments: comments})
	return nil
}

// CreateComment persists a comment by the current user and appends it.
func (s *CommentStore) CreateComment(ctx context.Context, itemID, text string) (model.Comment, error) {
	if itemID == "" {
		return model.Comment{}, model.PreconditionError{Op: "comment", Reason: "item has not been saved"}
	}
	if strings.TrimSpace(text) == "" {
		return model.Comment{}, model.ValidationError{Field: "text", Message: "comment text is required"}
	}
	c := model.Comment{
		ItemID:      itemID,
		Author:      s.identity.Current().Distinct(),
		Text:        text,
		CreatedDate: s.now(),
	}
	created, err := s.docs.CreateComment(ctx, c)
	if err != nil {
		s.log.Error("CommentStore.CreateComment: create failed", zap.String("item_id", itemID), zap.Error(err))
		s.hub.Error(model.CommentsErrorKey(itemID), err.Error())
		return model.Comment{}, model.Transport("create comment", err)
	}
	s.hub.CreateComment.Publish(actions.CommentPayload{ItemID: itemID, Comment: created})
	return created, nil
}
