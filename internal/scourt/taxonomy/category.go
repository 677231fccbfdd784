package taxonomy

// Category is the broad case family a case-type code belongs to, used to
// pick the matching structured endpoint and UI field set.
type Category string

const (
	CategoryCivil       Category = "민사"
	CategoryFamily      Category = "가사"
	CategoryCriminal    Category = "형사"
	CategoryProvisional Category = "신청/보전"
	CategoryEnforcement Category = "집행"
	CategoryInsolvency  Category = "회생/파산"
	CategoryDemandNote  Category = "독촉"
	CategoryAdmin       Category = "행정"
)

// CaseTypeInfo bundles everything derivable from a case-type code.
type CaseTypeInfo struct {
	Labels       Labels
	Category     Category
	IsFamily     bool
	IsCriminal   bool
	IsInsolvency bool
}

// ClassifyCaseType derives labels, category, and family flags from a
// case-type code. The category falls back to civil.
func ClassifyCaseType(caseType string) CaseTypeInfo {
	info := CaseTypeInfo{
		Labels:   PartyLabels(caseType),
		Category: CategoryCivil,
	}

	first := firstRune(caseType)
	switch {
	case runeIn(first, "드르므느너즈브후정"):
		info.Category = CategoryFamily
		info.IsFamily = true
	case runeIn(first, "고노도초"):
		info.Category = CategoryCriminal
		info.IsCriminal = true
	case first == '카':
		info.Category = CategoryProvisional
	case first == '타':
		info.Category = CategoryEnforcement
	case runeIn(first, "개하회간"):
		info.Category = CategoryInsolvency
		info.IsInsolvency = true
	case runeIn(first, "자차"):
		info.Category = CategoryDemandNote
	case runeIn(first, "구누두루"):
		info.Category = CategoryAdmin
	}

	return info
}
