package service

import (
	"github.com/ce-fello/bugbash-service/src/internal/actions"
	"github.com/ce-fello/bugbash-service/src/internal/model"
	"github.com/ce-fello/bugbash-service/src/internal/state"
	"github.com/ce-fello/bugbash-service/src/internal/workitems"

	"go.uber.org/zap"
)

// Documents is everything the session persists through.
type Documents interface {
	EventDocuments
	state.EventReader
	state.ItemDocuments
	state.CommentDocuments
}

// StaticIdentity is an identity provider fixed at startup.
type StaticIdentity model.Identity

func (s StaticIdentity) Current() model.Identity { return model.Identity(s) }

// Session owns one hub and the stores subscribed to it. Nothing is shared
// between sessions.
type Session struct {
	Hub    *actions.Hub
	Events *state.EventStore
	Items  *state.ItemStore
	Errors *state.ErrorStore

	EventService *Events

	identity state.IdentityProvider
}

// NewSession wires a fresh hub and its stores. workItemType is the default
// work item type for new events.
func NewSession(docs Documents, wit workitems.Client, identity state.IdentityProvider, workItemType string, logger *zap.Logger) *Session {
	hub := actions.NewHub()
	events := state.NewEventStore(hub, docs, logger)
	items := state.NewItemStore(hub, events, docs, docs, wit, identity, logger)
	return &Session{
		Hub:          hub,
		Events:       events,
		Items:        items,
		Errors:       state.NewErrorStore(hub),
		EventService: NewEvents(hub, events, items, docs, wit, identity, workItemType, logger),
		identity:     identity,
	}
}

func (s *Session) Identity() model.Identity { return s.identity.Current() }

// DismissError clears one message from the error surface.
func (s *Session) DismissError(key string) {
	s.Hub.DismissError.Publish(key)
}
