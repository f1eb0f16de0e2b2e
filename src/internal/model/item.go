package model

type ItemStatus string

const (
	ItemStatusDraft    ItemStatus = "draft"
	ItemStatusPending  ItemStatus = "pending"
	ItemStatusRejected ItemStatus = "rejected"
	ItemStatusAccepted ItemStatus = "accepted"
)

// Field names addressable through the item view-model.
const (
	FieldTitle        = "title"
	FieldDescription  = "description"
	FieldTeamID       = "team_id"
	FieldCreatedBy    = "created_by"
	FieldRejected     = "rejected"
	FieldRejectedBy   = "rejected_by"
	FieldRejectReason = "reject_reason"
)

func (i Item) IsNew() bool { return i.ID == "" }

func (i Item) IsAccepted() bool { return i.WorkItemID != nil }

func (i Item) IsPending() bool { return !i.IsAccepted() && !i.Rejected }

func (i Item) Status() ItemStatus {
	switch {
	case i.IsNew():
		return ItemStatusDraft
	case i.IsAccepted():
		return ItemStatusAccepted
	case i.Rejected:
		return ItemStatusRejected
	default:
		return ItemStatusPending
	}
}

// Clone returns a copy that shares no mutable state with i.
func (i Item) Clone() Item {
	out := i
	if i.WorkItemID != nil {
		id := *i.WorkItemID
		out.WorkItemID = &id
	}
	if i.Fields != nil {
		out.Fields = make(map[string]string, len(i.Fields))
		for k, v := range i.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// WithWorkItem links the item to a work item and clears any rejection, keeping
// accepted and rejected mutually exclusive.
func (i Item) WithWorkItem(workItemID int) Item {
	out := i.Clone()
	out.WorkItemID = &workItemID
	out.Rejected = false
	out.RejectedBy = ""
	out.RejectReason = ""
	return out
}
