// Package taxonomy normalizes the court portal's raw vocabulary: case-type
// codes to party role labels, hearing names to canonical hearing types, and
// hearing results to canonical outcomes. Normalization never fails; unmapped
// input degrades through family-level heuristics to a generic default.
package taxonomy

import "strings"

// Labels are the role names shown for the two sides of a case. Criminal
// cases have no plaintiff-side label; multi-role labels are comma-joined
// ("원고,항소인").
type Labels struct {
	Plaintiff string
	Defendant string
}

// Exact case-type code table. Codes group into families: civil (가단/나/다...),
// demand note (자/차), family (드단/느합/즈기...), protection (동버/푸),
// administrative (구합/누/두), registry (호파), criminal (고단/노/도),
// provisional remedy (카*), enforcement (타*), insolvency (개*/하*/회*).
var casePartyLabels = map[string]Labels{
	// civil first instance
	"가단": {"원고", "피고"},
	"가소": {"원고", "피고"},
	"가합": {"원고", "피고"},
	"가기": {"원고", "피고"},

	// civil appeal / final appeal
	"나": {"원고,항소인", "피고,피항소인"},
	"다": {"원고,상고인", "피고,피상고인"},
	"라": {"재심원고", "재심피고"},

	// civil complaint / re-complaint
	"그": {"항고인", ""},
	"마": {"항고인", "상대방"},

	// civil mediation
	"머": {"원고,신청인", "피고,상대방"},

	// demand note / payment order
	"자":  {"원고,채권자", "피고,채무자"},
	"차":  {"채권자", "채무자"},
	"차전": {"채권자", "채무자"},

	// family litigation
	"드단": {"원고", "피고"},
	"드합": {"원고", "피고"},
	"르":  {"원고,항소인", "피고,피항소인"},
	"므":  {"원고,상고인", "피고,피상고인"},

	// family non-contentious
	"느단": {"청구인", "상대방"},
	"느합": {"청구인", "상대방"},
	"너":  {"신청인", "피신청인"},

	// family preservation / petition
	"즈단": {"채권자(신청자)", "채무자(피신청자)"},
	"즈합": {"채권자(신청자)", "채무자(피신청자)"},
	"즈기": {"신청인", "피신청인"},

	// guardianship
	"브":  {"항고인,청구인", "상대방"},
	"후기": {"청구인", "상대방"},
	"후개": {"청구인", "상대방"},
	"후단": {"청구인", "상대방"},

	// family correction
	"정드": {"채권자", "채무자"},

	// protection cases
	"동버": {"조사관명", "행위자명"},
	"푸":  {"조사관명", "보호소년명"},

	// administrative
	"구합": {"원고", "피고"},
	"구단": {"원고", "피고"},
	"누":  {"원고,항소인", "피고,피항소인"},
	"두":  {"원고,상고인", "피고,피상고인"},
	"루":  {"원고", "피고"},

	// registry
	"호파": {"항고인", "상대방"},

	// criminal
	"고단": {"", "피고인명"},
	"고합": {"", "피고인명"},
	"고약": {"", "피고인명"},
	"고정": {"", "피고인명"},
	"노":  {"", "피고인명"},
	"도":  {"", "피고인명"},
	"초재": {"", "피고인명,대표피고인"},

	// provisional remedy / petition
	"카공":  {"신청인", "피신청인"},
	"카기":  {"신청인", "피신청인"},
	"카기전": {"신청인", "피신청인"},
	"카단":  {"신청인,채권자", "피신청인,채무자"},
	"카합":  {"채권자", "채무자"},
	"카담":  {"채권자", "채무자"},
	"카명":  {"신청인", "피신청인"},
	"카불":  {"채권자", "채무자"},
	"카조":  {"신청인", "피신청인"},
	"카확":  {"신청인", "피신청인"},
	"카정":  {"신청인", "피신청인"},
	"카소":  {"신청인", "피신청인"},
	"카임":  {"신청인", "피신청인"},
	"카경":  {"신청인", "피신청인"},

	// enforcement
	"타기": {"채권자,신청인", "채무자,피신청인"},
	"타배": {"신청인", "피신청인"},
	"타채": {"채권자", "채무자"},
	"타경": {"신청인", "피신청인"},

	// personal rehabilitation
	"개회": {"신청인", "상대방"},
	"개확": {"신청인", "상대방"},
	"개보": {"신청인", "상대방"},
	"개기": {"신청인", "상대방"},

	// bankruptcy / discharge
	"하단": {"신청인", "채무자"},
	"하합": {"신청인", "채무자"},
	"하면": {"신청인", "채무자"},
	"하기": {"회생위원,신청인", "채무자,채권자"},
	"하확": {"신청인", "채무자"},

	// corporate rehabilitation
	"회단":  {"신청인", "상대방,채권자"},
	"회합":  {"신청인", "상대방,채권자"},
	"회확":  {"신청인", "상대방"},
	"간회단": {"신청인", "상대방"},
	"간회합": {"신청인", "상대방"},
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func runeIn(r rune, set string) bool {
	return strings.ContainsRune(set, r)
}

// PartyLabels returns the party role labels for a case-type code. Lookup is
// tiered: exact code, then the code's first character decides the case
// family, then the generic civil default. It never fails.
func PartyLabels(caseType string) Labels {
	if l, ok := casePartyLabels[caseType]; ok {
		return l
	}

	first := firstRune(caseType)

	// criminal family
	if runeIn(first, "고노도초") {
		return Labels{"", "피고인명"}
	}

	// family-court family
	if runeIn(first, "드르므느너즈브후") {
		if runeIn(first, "느브후") {
			return Labels{"청구인", "상대방"}
		}
		if first == '즈' {
			return Labels{"채권자", "채무자"}
		}
		return Labels{"원고", "피고"}
	}

	// provisional remedy family
	if first == '카' {
		return Labels{"신청인", "피신청인"}
	}

	// enforcement family
	if first == '타' {
		return Labels{"채권자", "채무자"}
	}

	// insolvency family
	if runeIn(first, "개하회간") {
		return Labels{"신청인", "채무자"}
	}

	// demand note family
	if runeIn(first, "자차") {
		return Labels{"채권자", "채무자"}
	}

	// civil default
	return Labels{"원고", "피고"}
}

// PrimaryLabel returns the first label of a comma-joined label string
// ("원고,항소인" → "원고").
func PrimaryLabel(label string) string {
	if label == "" {
		return ""
	}
	return strings.TrimSpace(strings.SplitN(label, ",", 2)[0])
}

// KnownCaseTypes returns every case-type code present in the exact table.
func KnownCaseTypes() []string {
	out := make([]string, 0, len(casePartyLabels))
	for code := range casePartyLabels {
		out = append(out, code)
	}
	return out
}
