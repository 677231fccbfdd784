// Package portal holds the data vocabulary of the court "my case search"
// portal (coordinates, challenges, raw payloads) plus a direct client for
// its structured JSON endpoint. The structured endpoint only works for
// cases that already carry a portal-issued encrypted case token bound to a
// session affinity cookie; fresh cases must go through the browser driver.
package portal

import (
	"fmt"
	"regexp"
	"strings"
)

// Coordinates identify one case on the portal's search form.
type Coordinates struct {
	CourtCode string
	Year      string
	CaseType  string
	Serial    string
}

// Challenge is the CAPTCHA gate raised before a fresh search is accepted.
type Challenge struct {
	Image []byte
}

// RawPayload is the untyped extraction result, keyed by the portal's own
// labels. Normalization into canonical entries happens downstream. Documents
// and RelatedCases only come from the browser path; the structured endpoint
// does not serve those tabs.
type RawPayload struct {
	BasicInfo    map[string]string
	Hearings     []map[string]string
	Progress     []map[string]string
	Documents    []map[string]string
	RelatedCases []map[string]string
}

var (
	courtWithSpaceRe = regexp.MustCompile(`^[가-힣]+(법원|지원)\s+`)
	courtNoSpaceRe   = regexp.MustCompile(`^[가-힣]+(법원|지원)(\d{4})`)
	generalCourtRe   = regexp.MustCompile(`^[가-힣]+(\d{4}[가-힣]+\d+)$`)
	caseNumberRe     = regexp.MustCompile(`^(\d{4})([가-힣]+)(\d+)$`)
)

// StripCourtPrefix removes a leading court name from a case number string
// ("서울가정법원 2024드합12345" → "2024드합12345"). Handles the no-space form
// ("평택지원2023타경864") and bare Hangul prefixes ("평택가정2024드단25547").
func StripCourtPrefix(caseNumber string) string {
	result := strings.TrimSpace(caseNumber)

	// court name followed by a space, possibly stacked ("...법원 ...지원 ")
	for i := 0; i < 3; i++ {
		next := strings.TrimSpace(courtWithSpaceRe.ReplaceAllString(result, ""))
		if next == result {
			break
		}
		result = next
	}

	// court name glued to the year
	result = courtNoSpaceRe.ReplaceAllString(result, "$2")

	// generic Hangul prefix, only when a full case number pattern follows
	if m := generalCourtRe.FindStringSubmatch(result); m != nil {
		result = m[1]
	}

	return strings.TrimSpace(result)
}

// fullwidth digit range U+FF10..U+FF19
func toHalfWidthDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '０' && r <= '９' {
			return '0' + (r - '０')
		}
		return r
	}, s)
}

// NormalizeCaseNumber standardizes a case number: strips the court prefix,
// drops spaces, hyphens and brackets, and converts fullwidth digits.
func NormalizeCaseNumber(caseNumber string) string {
	s := StripCourtPrefix(caseNumber)
	s = toHalfWidthDigits(s)
	s = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "[", "", "]", "").Replace(s)
	return strings.TrimSpace(s)
}

// ParseCaseNumber splits a normalized case number into year, case type, and
// serial. The serial keeps no leading zeros.
func ParseCaseNumber(caseNumber string) (year, caseType, serial string, err error) {
	normalized := NormalizeCaseNumber(caseNumber)
	m := caseNumberRe.FindStringSubmatch(normalized)
	if m == nil {
		return "", "", "", fmt.Errorf("unparsable case number: %q", caseNumber)
	}
	serial = strings.TrimLeft(m[3], "0")
	if serial == "" {
		serial = "0"
	}
	return m[1], m[2], serial, nil
}

// FormatCaseNumber renders coordinates back into the canonical display form.
func FormatCaseNumber(c Coordinates) string {
	return c.Year + c.CaseType + c.Serial
}

// PadSerial zero-pads a serial to the given width, as some portal endpoints
// expect fixed-width serials.
func PadSerial(serial string, width int) string {
	if len(serial) >= width {
		return serial
	}
	return strings.Repeat("0", width-len(serial)) + serial
}
