package models

import "time"

// ChangeNotification records that a previously unseen entry appeared for a
// case. Notifications stay until explicitly marked read.
type ChangeNotification struct {
	ID        string
	CaseID    string
	EntryHash string
	Summary   string
	Read      bool
	CreatedAt time.Time
}
