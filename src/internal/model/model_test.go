package model

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(h int) *time.Time {
	t := time.Date(2026, 10, 14, h, 0, 0, 0, time.UTC)
	return &t
}

func TestEventPhase(t *testing.T) {
	now := *at(12)
	tests := []struct {
		name  string
		event Event
		want  EventPhase
	}{
		{"no window", Event{}, PhaseCurrent},
		{"open end", Event{StartTime: at(8)}, PhaseCurrent},
		{"open start", Event{EndTime: at(18)}, PhaseCurrent},
		{"ended", Event{StartTime: at(8), EndTime: at(10)}, PhasePast},
		{"not started", Event{StartTime: at(14)}, PhaseUpcoming},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.event.Phase(now))
		})
	}
}

func TestEventValidWindow(t *testing.T) {
	assert.True(t, Event{StartTime: at(8), EndTime: at(8)}.ValidWindow())
	assert.False(t, Event{StartTime: at(9), EndTime: at(8)}.ValidWindow())
	assert.True(t, Event{EndTime: at(8)}.ValidWindow())
}

func TestItemStatus(t *testing.T) {
	id := 4
	assert.Equal(t, ItemStatusDraft, Item{}.Status())
	assert.Equal(t, ItemStatusPending, Item{ID: "i1"}.Status())
	assert.Equal(t, ItemStatusRejected, Item{ID: "i1", Rejected: true}.Status())
	assert.Equal(t, ItemStatusAccepted, Item{ID: "i1", WorkItemID: &id}.Status())
}

func TestWithWorkItem_ClearsRejection(t *testing.T) {
	it := Item{ID: "i1", Rejected: true, RejectedBy: "Ada", RejectReason: "dup"}

	out := it.WithWorkItem(9)

	assert.Equal(t, 9, *out.WorkItemID)
	assert.False(t, out.Rejected)
	assert.Empty(t, out.RejectedBy)
	assert.Empty(t, out.RejectReason)
	assert.Nil(t, it.WorkItemID)
}

func TestTransport(t *testing.T) {
	err := Transport("list items", errors.New("dial tcp: refused"))
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, "list items: dial tcp: refused", err.Error())

	notFound := fmt.Errorf("wrapped: %w", ErrNotFound)
	assert.Equal(t, notFound, Transport("get", notFound))
	assert.NotErrorIs(t, Transport("get", notFound), ErrTransport)
	assert.Nil(t, Transport("noop", nil))
}

func TestPartialAcceptError(t *testing.T) {
	cause := errors.New("conflict")
	err := error(PartialAcceptError{ItemID: "i1", WorkItemID: 3, Err: cause})

	assert.ErrorIs(t, err, ErrPartialAccept)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTransport)
}

func TestIdentityDistinct(t *testing.T) {
	assert.Equal(t, "Ada <ada@example.com>", Identity{DisplayName: "Ada", UniqueName: "ada@example.com"}.Distinct())
	assert.Equal(t, "Ada", Identity{DisplayName: "Ada"}.Distinct())
}
