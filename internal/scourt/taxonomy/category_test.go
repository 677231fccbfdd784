package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCaseType(t *testing.T) {
	tests := []struct {
		code         string
		category     Category
		isFamily     bool
		isCriminal   bool
		isInsolvency bool
	}{
		{"가단", CategoryCivil, false, false, false},
		{"드단", CategoryFamily, true, false, false},
		{"정드", CategoryFamily, true, false, false},
		{"고합", CategoryCriminal, false, true, false},
		{"카합", CategoryProvisional, false, false, false},
		{"타경", CategoryEnforcement, false, false, false},
		{"하단", CategoryInsolvency, false, false, true},
		{"차전", CategoryDemandNote, false, false, false},
		{"구합", CategoryAdmin, false, false, false},
	}
	for _, tt := range tests {
		info := ClassifyCaseType(tt.code)
		assert.Equal(t, tt.category, info.Category, "code %s", tt.code)
		assert.Equal(t, tt.isFamily, info.IsFamily, "code %s", tt.code)
		assert.Equal(t, tt.isCriminal, info.IsCriminal, "code %s", tt.code)
		assert.Equal(t, tt.isInsolvency, info.IsInsolvency, "code %s", tt.code)
		assert.Equal(t, PartyLabels(tt.code), info.Labels, "code %s", tt.code)
	}
}

func TestClassifyCaseType_DefaultsToCivil(t *testing.T) {
	info := ClassifyCaseType("뭔지모름")
	assert.Equal(t, CategoryCivil, info.Category)
	assert.False(t, info.IsFamily)
	assert.False(t, info.IsCriminal)
	assert.False(t, info.IsInsolvency)
}
