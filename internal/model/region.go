package model

import "time"

// RegionMappingEntry is a resolved or user-defined mapping from a period to countries
type RegionMappingEntry struct {
	Countries   []string   `json:"countries"`             // ISO 3166-1 alpha-2 codes, uppercase, deduplicated
	Timeframe   string     `json:"timeframe,omitempty"`   // Human-readable date range
	Description string     `json:"description,omitempty"` // Free-text note
	Source      Source     `json:"source,omitempty"`      // Which step produced the entry
	Confidence  Confidence `json:"confidence,omitempty"`  // Confidence reported when the entry was produced
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`  // Last write time
}

// Confidence is the engine's self-reported certainty in a country list
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid reports whether c is one of the known confidence levels
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	default:
		return false
	}
}

// Rank orders confidence levels: high > medium > low > unknown
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// Source records which resolution step produced a result
type Source string

const (
	SourceTemporal      Source = "temporal"       // Keyword / year-range heuristic
	SourceHardcoded     Source = "hardcoded"      // Static table
	SourceCustom        Source = "custom"         // Custom override store
	SourceAI            Source = "ai"             // AI resolver or its cache
	SourceTitleAnalysis Source = "title-analysis" // AI resolver disambiguated by title
	SourceManual        Source = "manual"         // Codes supplied directly by a user
	SourceFallback      Source = "fallback"       // Nothing resolved
)

// InferenceQuery is the input to one inference call
type InferenceQuery struct {
	Era       string `json:"era"`
	StartYear int    `json:"start_year,omitempty"` // 0 = unknown, negative = BCE
	EndYear   int    `json:"end_year,omitempty"`
	Title     string `json:"title,omitempty"` // Optional media title used for disambiguation
}

// HasYears reports whether the query carries a usable year range
func (q InferenceQuery) HasYears() bool {
	return q.StartYear != 0 || q.EndYear != 0
}

// YearRange returns the query years ordered low to high. A single known
// bound is used for both ends.
func (q InferenceQuery) YearRange() (int, int) {
	start, end := q.StartYear, q.EndYear
	switch {
	case start == 0:
		start = end
	case end == 0:
		end = start
	}
	if start > end {
		start, end = end, start
	}
	return start, end
}

// InferenceResult is the output of the inference engine for one query
type InferenceResult struct {
	Period      string     `json:"period"`
	Countries   []string   `json:"countries"`
	Confidence  Confidence `json:"confidence"`
	Source      Source     `json:"source"`
	Timeframe   string     `json:"timeframe,omitempty"`
	Reasoning   string     `json:"reasoning,omitempty"`
	Suggestions []string   `json:"suggestions,omitempty"` // Alternative interpretations the user may pick
	InferredAt  time.Time  `json:"inferred_at"`
}

// Resolved reports whether the result carries at least one country code
func (r InferenceResult) Resolved() bool {
	return len(r.Countries) > 0
}

// ToEntry converts the result into a mapping entry for the override store or
// the resolution cache. Description is left to the caller; reasoning is
// engine output, not user data.
func (r InferenceResult) ToEntry() RegionMappingEntry {
	countries := make([]string, len(r.Countries))
	copy(countries, r.Countries)
	return RegionMappingEntry{
		Countries:  countries,
		Timeframe:  r.Timeframe,
		Source:     r.Source,
		Confidence: r.Confidence,
		UpdatedAt:  r.InferredAt,
	}
}
