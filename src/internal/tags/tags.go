// Package tags maps work item tag lists to bug bash status flags.
package tags

import (
	"strings"

	"github.com/ce-fello/bugbash-service/src/internal/model"
)

const (
	Separator   = ";"
	AcceptedTag = "Accepted"
	RejectedTag = "Rejected"
	bashPrefix  = "BugBash_"
)

func BashTag(eventID string) string {
	return bashPrefix + eventID
}

// Parse splits a tag string and trims each entry. Empty entries are dropped.
func Parse(tags string) []string {
	if strings.TrimSpace(tags) == "" {
		return nil
	}
	var out []string
	for _, t := range strings.Split(tags, Separator) {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func Join(tags []string) string {
	return strings.Join(tags, Separator)
}

func Contains(tags []string, tag string) bool {
	tag = strings.TrimSpace(tag)
	for _, t := range tags {
		if strings.EqualFold(strings.TrimSpace(t), tag) {
			return true
		}
	}
	return false
}

func IsAccepted(wi model.WorkItem) bool {
	return Contains(Parse(tagField(wi)), AcceptedTag)
}

func IsRejected(wi model.WorkItem) bool {
	return Contains(Parse(tagField(wi)), RejectedTag)
}

// RemoveFromBash drops the event marker and the status tags, ignoring case
// and surrounding whitespace. Every other tag is kept trimmed, in its original
// order.
func RemoveFromBash(eventID string, tags []string) []string {
	drop := []string{BashTag(eventID), AcceptedTag, RejectedTag}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" && !Contains(drop, t) {
			out = append(out, t)
		}
	}
	return out
}

// AcceptTags returns the tags a freshly accepted work item carries.
func AcceptTags(eventID string) []string {
	return []string{BashTag(eventID), AcceptedTag}
}

func tagField(wi model.WorkItem) string {
	if wi.Fields == nil {
		return ""
	}
	s, _ := wi.Fields[model.WorkItemTagsField].(string)
	return s
}
