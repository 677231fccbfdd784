package models

import "time"

// DocumentRef is one filed-document row of a case detail view.
type DocumentRef struct {
	Date    string `json:"date"`
	Content string `json:"content"`
}

// RelatedCaseRef points at another case the portal lists as linked to this
// one (an appeal instance, a provisional measure, an execution case).
type RelatedCaseRef struct {
	CaseNumber string `json:"case_number"`
	CaseName   string `json:"case_name,omitempty"`
	Relation   string `json:"relation,omitempty"`
}

// CaseSnapshot is the latest merged view of a case's basic information,
// keyed by the portal's field labels, plus its document and related-case
// references. ScrapedAt moves forward on every successful sync even when
// nothing else changed.
type CaseSnapshot struct {
	CaseID       string
	BasicInfo    map[string]string
	Documents    []DocumentRef
	RelatedCases []RelatedCaseRef
	ScrapedAt    time.Time
}
