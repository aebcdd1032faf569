package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInferenceQuery_YearRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end int
		lo, hi     int
		hasYears   bool
	}{
		{"unknown", 0, 0, 0, 0, false},
		{"ordered", 793, 1066, 793, 1066, true},
		{"reversed", 1066, 793, 793, 1066, true},
		{"start only", 1453, 0, 1453, 1453, true},
		{"end only", 0, -31, -31, -31, true},
		{"BCE to CE", -27, 476, -27, 476, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := InferenceQuery{StartYear: tt.start, EndYear: tt.end}
			lo, hi := q.YearRange()
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
			assert.Equal(t, tt.hasYears, q.HasYears())
		})
	}
}

func TestInferenceResult_ToEntry(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := InferenceResult{
		Period:     "Khmer Empire",
		Countries:  []string{"KH", "TH"},
		Confidence: ConfidenceHigh,
		Source:     SourceCustom,
		Timeframe:  "802–1431",
		Reasoning:  "custom override",
		InferredAt: at,
	}

	entry := res.ToEntry()
	assert.Equal(t, []string{"KH", "TH"}, entry.Countries)
	assert.Equal(t, "802–1431", entry.Timeframe)
	assert.Equal(t, SourceCustom, entry.Source)
	assert.Equal(t, ConfidenceHigh, entry.Confidence)
	assert.Equal(t, at, entry.UpdatedAt)
	assert.Empty(t, entry.Description, "reasoning is not persisted as a description")

	entry.Countries[0] = "XX"
	assert.Equal(t, "KH", res.Countries[0], "countries are copied")
}
