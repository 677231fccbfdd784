package taxonomy

import "strings"

// HearingType is the canonical classification of a scheduled hearing.
type HearingType string

const (
	HearingMain          HearingType = "HEARING_MAIN"
	HearingMediation     HearingType = "HEARING_MEDIATION"
	HearingInvestigation HearingType = "HEARING_INVESTIGATION"
	HearingJudgment      HearingType = "HEARING_JUDGMENT"
	HearingInterim       HearingType = "HEARING_INTERIM"
	HearingParenting     HearingType = "HEARING_PARENTING"
)

// HearingResult is the canonical outcome of a held hearing.
type HearingResult string

const (
	ResultContinued HearingResult = "CONTINUED"
	ResultConcluded HearingResult = "CONCLUDED"
	ResultPostponed HearingResult = "POSTPONED"
	ResultDismissed HearingResult = "DISMISSED"
)

var hearingTypeMap = map[string]HearingType{
	// argument hearings
	"변론":      HearingMain,
	"변론기일":    HearingMain,
	"변론준비":    HearingMain,
	"변론준비기일":  HearingMain,
	"증인신문":    HearingMain,
	"증인신문기일":  HearingMain,
	"당사자신문":   HearingMain,
	"당사자신문기일": HearingMain,
	"공판":      HearingMain,
	"공판기일":    HearingMain,

	// mediation
	"조정":     HearingMediation,
	"조정기일":   HearingMediation,
	"조정조치":   HearingMediation,
	"화해권고":   HearingMediation,
	"화해권고기일": HearingMediation,
	"조정회부":   HearingMediation,

	// investigation
	"조사":   HearingInvestigation,
	"조사기일": HearingInvestigation,
	"면접조사": HearingInvestigation,
	"사실조회": HearingInvestigation,
	"현장조사": HearingInvestigation,

	// judgment
	"선고":     HearingJudgment,
	"선고기일":   HearingJudgment,
	"판결선고":   HearingJudgment,
	"판결선고기일": HearingJudgment,
	"결정선고":   HearingJudgment,

	// interim relief examination
	"심문":    HearingInterim,
	"심문기일":  HearingInterim,
	"가처분":   HearingInterim,
	"가처분심문": HearingInterim,
	"가압류":   HearingInterim,
	"보전처분":  HearingInterim,

	// parenting / counseling
	"상담":   HearingParenting,
	"양육상담": HearingParenting,
	"부모교육": HearingParenting,
	"면접교섭": HearingParenting,
}

var hearingResultMap = map[string]HearingResult{
	"속행":   ResultContinued,
	"변론속행": ResultContinued,
	"조정속행": ResultContinued,
	"종결":   ResultConcluded,
	"변론종결": ResultConcluded,
	"조정종결": ResultConcluded,
	"조정성립": ResultConcluded,
	"연기":   ResultPostponed,
	"기일연기": ResultPostponed,
	"취하":   ResultDismissed,
	"각하":   ResultDismissed,
	"기각":   ResultDismissed,
}

// MapHearingType classifies a raw portal hearing name. Exact match first,
// then keyword heuristics, defaulting to HearingMain.
func MapHearingType(raw string) HearingType {
	if t, ok := hearingTypeMap[raw]; ok {
		return t
	}

	switch {
	case containsAny(raw, "변론", "공판", "신문"):
		return HearingMain
	case containsAny(raw, "조정", "화해"):
		return HearingMediation
	case containsAny(raw, "조사", "면접"):
		return HearingInvestigation
	case containsAny(raw, "선고", "판결"):
		return HearingJudgment
	case containsAny(raw, "심문", "보전", "가처분", "가압류"):
		return HearingInterim
	case containsAny(raw, "상담", "교육", "양육"):
		return HearingParenting
	}

	return HearingMain
}

// MapHearingResult classifies a raw portal hearing result. ok is false when
// the value is empty or unmapped; callers keep the raw text in that case.
func MapHearingResult(raw string) (HearingResult, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if r, ok := hearingResultMap[raw]; ok {
		return r, true
	}

	switch {
	case strings.Contains(raw, "속행"):
		return ResultContinued, true
	case containsAny(raw, "종결", "성립"):
		return ResultConcluded, true
	case strings.Contains(raw, "연기"):
		return ResultPostponed, true
	case containsAny(raw, "취하", "각하", "기각"):
		return ResultDismissed, true
	}

	return "", false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
