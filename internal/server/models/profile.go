package models

import "time"

// Profile statuses. A profile is never deleted, only retired out of rotation.
const (
	ProfileStatusActive    = "active"
	ProfileStatusFull      = "full"
	ProfileStatusCorrupted = "corrupted"
)

// Profile is a persistent browser identity bound to a Chrome user-data
// directory. The portal remembers searched cases per browser identity, so a
// profile carries a hard quota of cases it may accumulate.
type Profile struct {
	ID          string
	Name        string
	UserDataDir string
	CaseCount   int
	Reserved    int
	MaxCases    int
	Status      string
	CreatedAt   time.Time
}
