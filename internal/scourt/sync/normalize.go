package sync

import (
	"github.com/dmitrijs2005/courtsync/internal/common"
	"github.com/dmitrijs2005/courtsync/internal/scourt/portal"
	"github.com/dmitrijs2005/courtsync/internal/scourt/taxonomy"
	"github.com/dmitrijs2005/courtsync/internal/server/models"
)

// normalized is a payload reduced to canonical timeline entries. Misses
// records rows whose raw values had no mapping; they keep their raw text in
// the entry and are surfaced for review instead of being dropped.
type normalized struct {
	Entries []*models.CaseEntry
	Misses  []string
}

// normalizeEntries converts raw portal rows into canonical entries. Hearing
// identity is (date, time, type); progress identity is (date, content,
// result). The hash over those fields is what makes re-syncs idempotent.
func normalizeEntries(caseID string, payload *portal.RawPayload) *normalized {
	out := &normalized{}

	for _, row := range payload.Hearings {
		date := row[portal.RowDate]
		if date == "" {
			continue
		}
		hearingType := string(taxonomy.MapHearingType(row[portal.RowType]))

		result := row[portal.RowResult]
		if result != "" {
			if mapped, ok := taxonomy.MapHearingResult(result); ok {
				result = string(mapped)
			} else {
				out.Misses = append(out.Misses, result)
			}
		}

		out.Entries = append(out.Entries, &models.CaseEntry{
			CaseID:      caseID,
			Kind:        models.EntryKindHearing,
			ContentHash: common.ContentHash(date, row[portal.RowTime], hearingType),
			Date:        date,
			Time:        row[portal.RowTime],
			Type:        hearingType,
			Result:      result,
			Location:    row[portal.RowLocation],
		})
	}

	for _, row := range payload.Progress {
		date := row[portal.RowDate]
		content := row[portal.RowContent]
		if date == "" && content == "" {
			continue
		}
		result := row[portal.RowResult]
		out.Entries = append(out.Entries, &models.CaseEntry{
			CaseID:      caseID,
			Kind:        models.EntryKindProgress,
			ContentHash: common.ContentHash(date, content, result),
			Date:        date,
			Content:     content,
			Result:      result,
		})
	}

	return out
}

// snapshotDocuments converts raw filed-document rows into snapshot
// references, dropping rows without a date.
func snapshotDocuments(payload *portal.RawPayload) []models.DocumentRef {
	var out []models.DocumentRef
	for _, row := range payload.Documents {
		if row[portal.RowDate] == "" {
			continue
		}
		out = append(out, models.DocumentRef{
			Date:    row[portal.RowDate],
			Content: row[portal.RowContent],
		})
	}
	return out
}

// snapshotRelations converts raw related-case rows into snapshot references.
// Case numbers keep the portal's display form; normalization happens at
// match time.
func snapshotRelations(payload *portal.RawPayload) []models.RelatedCaseRef {
	var out []models.RelatedCaseRef
	for _, row := range payload.RelatedCases {
		if row[portal.RowCaseNumber] == "" {
			continue
		}
		out = append(out, models.RelatedCaseRef{
			CaseNumber: row[portal.RowCaseNumber],
			CaseName:   row[portal.RowCaseName],
			Relation:   row[portal.RowRelation],
		})
	}
	return out
}

// mergeBasicInfo folds freshly scraped fields over the stored snapshot.
// A field never regresses to empty: the portal blanks fields while a tab is
// mid-render, and losing a filed date to that would look like a change.
func mergeBasicInfo(existing, fresh map[string]string) map[string]string {
	merged := make(map[string]string, len(existing)+len(fresh))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range fresh {
		if v != "" {
			merged[k] = v
		}
	}
	return merged
}

// entrySummary renders a one-line human summary for a change notification.
func entrySummary(e *models.CaseEntry) string {
	switch e.Kind {
	case models.EntryKindHearing:
		s := e.Date + " " + e.Time + " " + e.Type
		if e.Result != "" {
			s += " (" + e.Result + ")"
		}
		return s
	default:
		s := e.Date + " " + e.Content
		if e.Result != "" {
			s += " (" + e.Result + ")"
		}
		return s
	}
}
