// Package viewmodel holds the mutable edit buffer for a single bug bash item.
//
// An Item wraps the last persisted snapshot and a working copy. Edits touch the
// working copy only and reach the stores through Save, Accept or Refresh.
package viewmodel

import (
	"context"
	"sync"

	"github.com/ce-fello/bugbash-service/src/internal/model"
)

// Committer persists view-model changes. The item store implements it.
type Committer interface {
	SaveItem(ctx context.Context, eventID string, item model.Item) (model.Item, error)
	RefreshItem(ctx context.Context, eventID, itemID string) (model.Item, error)
	AcceptItem(ctx context.Context, eventID, itemID string) (model.Item, error)
}

type Item struct {
	committer Committer

	mu       sync.Mutex
	original model.Item
	working  model.Item
	// quiet holds fields last written by the system; they change persisted
	// content but do not count as user edits.
	quiet map[string]bool
}

func New(item model.Item, c Committer) *Item {
	return &Item{
		committer: c,
		original:  item.Clone(),
		working:   item.Clone(),
		quiet:     map[string]bool{},
	}
}

// NewDraft returns an unsaved item bound to eventID.
func NewDraft(eventID string, c Committer) *Item {
	return New(model.Item{EventID: eventID}, c)
}

func (vm *Item) ID() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.original.ID
}

func (vm *Item) EventID() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.original.EventID
}

// Original returns the last persisted values.
func (vm *Item) Original() model.Item {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.original.Clone()
}

// Current returns the working copy.
func (vm *Item) Current() model.Item {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.working.Clone()
}

func (vm *Item) SetFieldValue(name string, value any, markDirty bool) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if err := setField(&vm.working, name, value); err != nil {
		return err
	}
	if markDirty {
		delete(vm.quiet, name)
	} else {
		vm.quiet[name] = true
	}
	return nil
}

func (vm *Item) GetFieldValue(name string, useOriginal bool) any {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if useOriginal {
		return getField(vm.original, name)
	}
	return getField(vm.working, name)
}

func (vm *Item) IsNew() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.original.IsNew()
}

// IsAccepted reports the persisted status.
func (vm *Item) IsAccepted() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.original.IsAccepted()
}

// IsDirty reports user edits not yet saved.
func (vm *Item) IsDirty() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	for _, f := range changedFields(vm.original, vm.working) {
		if !vm.quiet[f] {
			return true
		}
	}
	return false
}

// HasChanges also counts system writes.
func (vm *Item) HasChanges() bool {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return len(changedFields(vm.original, vm.working)) > 0
}

func (vm *Item) IsValid() bool {
	return vm.Validate() == nil
}

func (vm *Item) Validate() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return Validate(vm.working)
}

// Validate checks the required fields of an item.
func Validate(item model.Item) error {
	if trimmed(item.Title) == "" {
		return model.ValidationError{Field: model.FieldTitle, Message: "title is required"}
	}
	if item.IsAccepted() && item.Rejected {
		return model.PreconditionError{Op: "save", Reason: "an accepted item cannot be rejected"}
	}
	return nil
}

// Save persists the working copy. A draft is created and receives its id.
func (vm *Item) Save(ctx context.Context, eventID string) error {
	vm.mu.Lock()
	if err := Validate(vm.working); err != nil {
		vm.mu.Unlock()
		return err
	}
	if !vm.original.IsNew() && vm.original.EventID != eventID {
		vm.mu.Unlock()
		return model.PreconditionError{Op: "save", Reason: "item belongs to event " + vm.original.EventID}
	}
	pending := vm.working.Clone()
	pending.EventID = eventID
	vm.mu.Unlock()

	saved, err := vm.committer.SaveItem(ctx, eventID, pending)
	if err != nil {
		return err
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.replace(saved)
	return nil
}

// Refresh drops unsaved edits and reloads the persisted document.
func (vm *Item) Refresh(ctx context.Context) error {
	vm.mu.Lock()
	if vm.original.IsNew() {
		vm.mu.Unlock()
		return model.PreconditionError{Op: "refresh", Reason: "item has not been saved"}
	}
	eventID, id := vm.original.EventID, vm.original.ID
	vm.mu.Unlock()

	latest, err := vm.committer.RefreshItem(ctx, eventID, id)
	if err != nil {
		return err
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.replace(latest)
	return nil
}

// Reset restores the working copy to the snapshot.
func (vm *Item) Reset() {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.working = vm.original.Clone()
	vm.quiet = map[string]bool{}
}

// Accept promotes the persisted item to a work item. Unsaved edits stay in
// the working copy.
func (vm *Item) Accept(ctx context.Context) error {
	vm.mu.Lock()
	if vm.original.IsNew() {
		vm.mu.Unlock()
		return model.PreconditionError{Op: "accept", Reason: "item has not been saved"}
	}
	if vm.original.IsAccepted() {
		vm.mu.Unlock()
		return model.PreconditionError{Op: "accept", Reason: "item is already accepted"}
	}
	eventID, id := vm.original.EventID, vm.original.ID
	vm.mu.Unlock()

	accepted, err := vm.committer.AcceptItem(ctx, eventID, id)
	if err != nil {
		return err
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.original = accepted.Clone()
	vm.working = vm.working.WithWorkItem(*accepted.WorkItemID)
	for _, f := range []string{model.FieldRejected, model.FieldRejectedBy, model.FieldRejectReason} {
		delete(vm.quiet, f)
	}
	return nil
}

// ToggleReject flips the rejected flag in the working copy and stamps or
// clears the reject metadata. The change is persisted by the next Save.
func (vm *Item) ToggleReject(actor model.Identity) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.original.IsNew() {
		return model.PreconditionError{Op: "reject", Reason: "item has not been saved"}
	}
	if vm.original.IsAccepted() || vm.working.IsAccepted() {
		return model.PreconditionError{Op: "reject", Reason: "an accepted item cannot be rejected"}
	}

	rejecting := !vm.working.Rejected
	vm.working.Rejected = rejecting
	vm.quiet[model.FieldRejected] = true
	if rejecting {
		vm.working.RejectedBy = actor.Distinct()
	} else {
		vm.working.RejectedBy = ""
	}
	vm.quiet[model.FieldRejectedBy] = true
	vm.working.RejectReason = ""
	delete(vm.quiet, model.FieldRejectReason)
	return nil
}

func (vm *Item) replace(item model.Item) {
	vm.original = item.Clone()
	vm.working = item.Clone()
	vm.quiet = map[string]bool{}
}
