package model

import "time"

type Identity struct {
	DisplayName string `json:"display_name"`
	UniqueName  string `json:"unique_name"`
	ProjectID   string `json:"project_id"`
}

// Distinct renders the identity the way reject stamps and comment authors store it.
func (id Identity) Distinct() string {
	if id.UniqueName == "" {
		return id.DisplayName
	}
	return id.DisplayName + " <" + id.UniqueName + ">"
}

type Event struct {
	ID           string            `json:"id"`
	ProjectID    string            `json:"project_id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	StartTime    *time.Time        `json:"start_time,omitempty"`
	EndTime      *time.Time        `json:"end_time,omitempty"`
	AutoAccept   bool              `json:"auto_accept"`
	WorkItemType string            `json:"work_item_type,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
}

type Item struct {
	ID           string            `json:"id,omitempty"`
	EventID      string            `json:"event_id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	TeamID       string            `json:"team_id,omitempty"`
	CreatedBy    string            `json:"created_by,omitempty"`
	CreatedDate  time.Time         `json:"created_date"`
	Rejected     bool              `json:"rejected"`
	RejectedBy   string            `json:"rejected_by,omitempty"`
	RejectReason string            `json:"reject_reason,omitempty"`
	WorkItemID   *int              `json:"work_item_id,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
}

type Comment struct {
	ID          string    `json:"id"`
	ItemID      string    `json:"item_id"`
	Author      string    `json:"author"`
	Text        string    `json:"text"`
	CreatedDate time.Time `json:"created_date"`
}

// WorkItem is the durable tracked entity an accepted item points at.
// Field keys are dotted reference names such as System.Tags.
type WorkItem struct {
	ID     int            `json:"id"`
	Rev    int            `json:"rev,omitempty"`
	Fields map[string]any `json:"fields"`
}

// FieldBag carries work item field values keyed by reference name.
type FieldBag map[string]any

const (
	WorkItemTitleField       = "System.Title"
	WorkItemDescriptionField = "System.Description"
	WorkItemTagsField        = "System.Tags"

	DefaultWorkItemType = "Bug"
)
