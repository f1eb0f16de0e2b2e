package state

import (
	"github.com/ce-fello/bugbash-service/src/internal/actions"
	"github.com/ce-fello/bugbash-service/src/internal/model"
)

// ErrorStore is the error surface: keyed, dismissible messages. A dismissed
// key stays cleared until the same failure is pushed again.
type ErrorStore struct {
	*Base[string, model.ErrorMessage]
}

func NewErrorStore(hub *actions.Hub) *ErrorStore {
	s := &ErrorStore{Base: newBase[string, model.ErrorMessage]()}
	hub.PushError.Subscribe(func(m model.ErrorMessage) { s.setItem(m.Key, m) })
	hub.DismissError.Subscribe(func(key string) { s.removeItem(key) })
	hub.Dispatcher.Register(s)
	return s
}

func (s *ErrorStore) Message(key string) (string, bool) {
	m, ok := s.GetItem(key)
	return m.Message, ok
}
