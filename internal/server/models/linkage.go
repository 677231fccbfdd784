package models

import "time"

// CaseLinkage ties an internal case to its portal coordinates and to the
// profile that first stored it. EncCaseToken is the portal-issued encrypted
// case reference; it is bound to SessionToken (the long-lived affinity
// cookie) and both must be presented together on the structured endpoint.
type CaseLinkage struct {
	CaseID       string
	CourtCode    string
	CaseYear     string
	CaseType     string
	Serial       string
	PartyName    string
	EncCaseToken string
	SessionToken string
	ProfileID    string
	CreatedAt    time.Time
}
