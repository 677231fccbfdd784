package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapHearingType_ExactMatches(t *testing.T) {
	tests := []struct {
		raw  string
		want HearingType
	}{
		{"변론기일", HearingMain},
		{"공판", HearingMain},
		{"조정기일", HearingMediation},
		{"화해권고", HearingMediation},
		{"면접조사", HearingInvestigation},
		{"판결선고기일", HearingJudgment},
		{"가처분심문", HearingInterim},
		{"양육상담", HearingParenting},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapHearingType(tt.raw), "raw %s", tt.raw)
	}
}

func TestMapHearingType_KeywordFallback(t *testing.T) {
	assert.Equal(t, HearingMain, MapHearingType("제3차 변론기일(속행)"))
	assert.Equal(t, HearingMediation, MapHearingType("조기조정기일"))
	assert.Equal(t, HearingJudgment, MapHearingType("항소심 선고"))
	assert.Equal(t, HearingInterim, MapHearingType("가압류 심문기일"))
	assert.Equal(t, HearingParenting, MapHearingType("부모교육 이수"))
}

func TestMapHearingType_Default(t *testing.T) {
	assert.Equal(t, HearingMain, MapHearingType("알 수 없는 기일"))
	assert.Equal(t, HearingMain, MapHearingType(""))
}

func TestMapHearingResult_ExactMatches(t *testing.T) {
	tests := []struct {
		raw  string
		want HearingResult
	}{
		{"속행", ResultContinued},
		{"변론종결", ResultConcluded},
		{"조정성립", ResultConcluded},
		{"기일연기", ResultPostponed},
		{"각하", ResultDismissed},
	}
	for _, tt := range tests {
		got, ok := MapHearingResult(tt.raw)
		assert.True(t, ok, "raw %s", tt.raw)
		assert.Equal(t, tt.want, got, "raw %s", tt.raw)
	}
}

func TestMapHearingResult_KeywordFallback(t *testing.T) {
	got, ok := MapHearingResult("추정(속행)")
	assert.True(t, ok)
	assert.Equal(t, ResultContinued, got)

	got, ok = MapHearingResult("소취하 간주")
	assert.True(t, ok)
	assert.Equal(t, ResultDismissed, got)
}

func TestMapHearingResult_Unmapped(t *testing.T) {
	_, ok := MapHearingResult("")
	assert.False(t, ok)

	_, ok = MapHearingResult("   ")
	assert.False(t, ok)

	_, ok = MapHearingResult("화해권고결정")
	assert.False(t, ok)
}
