package models

import "time"

// Entry kinds.
const (
	EntryKindProgress = "progress"
	EntryKindHearing  = "hearing"
)

// CaseEntry is one dated line of a case timeline: either a docket progress
// item or a scheduled hearing. ContentHash is the SHA-256 of the entry's
// identifying fields; the (case, hash) pair is unique so re-syncing the
// same entry is a no-op.
type CaseEntry struct {
	ID          int64
	CaseID      string
	Kind        string
	ContentHash string
	Date        string
	Time        string
	Type        string
	Content     string
	Result      string
	Location    string
	CreatedAt   time.Time
}
