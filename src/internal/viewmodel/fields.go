package viewmodel

import (
	"strings"

	"github.com/ce-fello/bugbash-service/src/internal/model"
)

const (
	fieldID          = "id"
	fieldEventID     = "event_id"
	fieldCreatedDate = "created_date"
	fieldWorkItemID  = "work_item_id"
)

var editableFields = []string{
	model.FieldTitle,
	model.FieldDescription,
	model.FieldTeamID,
	model.FieldRejected,
	model.FieldRejectedBy,
	model.FieldRejectReason,
}

func trimmed(s string) string { return strings.TrimSpace(s) }

func getField(item model.Item, name string) any {
	switch name {
	case fieldID:
		return item.ID
	case fieldEventID:
		return item.EventID
	case fieldCreatedDate:
		return item.CreatedDate
	case fieldWorkItemID:
		if item.WorkItemID == nil {
			return nil
		}
		return *item.WorkItemID
	case model.FieldCreatedBy:
		return item.CreatedBy
	case model.FieldTitle:
		return item.Title
	case model.FieldDescription:
		return item.Description
	case model.FieldTeamID:
		return item.TeamID
	case model.FieldRejected:
		return item.Rejected
	case model.FieldRejectedBy:
		return item.RejectedBy
	case model.FieldRejectReason:
		return item.RejectReason
	default:
		return item.Fields[name]
	}
}

func setField(item *model.Item, name string, value any) error {
	switch name {
	case fieldID, fieldEventID, fieldCreatedDate, fieldWorkItemID, model.FieldCreatedBy:
		return model.ValidationError{Field: name, Message: "field is read-only"}
	case model.FieldRejected:
		b, ok := value.(bool)
		if !ok {
			return model.ValidationError{Field: name, Message: "expected a boolean"}
		}
		item.Rejected = b
		return nil
	}

	s, ok := value.(string)
	if !ok {
		return model.ValidationError{Field: name, Message: "expected a string"}
	}
	switch name {
	case model.FieldTitle:
		item.Title = s
	case model.FieldDescription:
		item.Description = s
	case model.FieldTeamID:
		item.TeamID = s
	case model.FieldRejectedBy:
		item.RejectedBy = s
	case model.FieldRejectReason:
		item.RejectReason = s
	default:
		if item.Fields == nil {
			item.Fields = map[string]string{}
		}
		item.Fields[name] = s
	}
	return nil
}

// changedFields lists every writable field whose working value differs from
// the snapshot. A missing extra field equals an empty one.
func changedFields(original, working model.Item) []string {
	var out []string
	for _, f := range editableFields {
		if getField(original, f) != getField(working, f) {
			out = append(out, f)
		}
	}
	seen := map[string]bool{}
	for _, fields := range []map[string]string{original.Fields, working.Fields} {
		for k := range fields {
			if seen[k] {
				continue
			}
			seen[k] = true
			if original.Fields[k] != working.Fields[k] {
				out = append(out, k)
			}
		}
	}
	return out
}
