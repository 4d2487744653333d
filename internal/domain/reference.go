package domain

import (
	"time"
)

// Reference dataset names. Each dataset is matched independently; a
// candidate in one dataset is never merged with a candidate in another.
const (
	DatasetSanctions = "sanctions"
	DatasetOffshore  = "offshore"
)

// ReferenceEntity is one entry in a reference dataset (a sanctions list
// or an offshore-leaks registry).
type ReferenceEntity struct {
	ID           string    `json:"id"`
	Dataset      string    `json:"dataset"`
	Name         string    `json:"name"`
	Aliases      []string  `json:"aliases,omitempty"`
	Jurisdiction string    `json:"jurisdiction,omitempty"`
	EntityType   string    `json:"entityType,omitempty"`
	Programs     []string  `json:"programs,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// MatchClass grades how certain a fuzzy match is.
type MatchClass string

const (
	MatchExact  MatchClass = "exact"  // similarity >= exact threshold
	MatchStrong MatchClass = "strong" // similarity >= strong threshold
	MatchWeak   MatchClass = "weak"   // similarity >= weak threshold
)

// MatchCandidate is one reference entity that matched a query, with its
// final (penalty-adjusted) similarity score.
type MatchCandidate struct {
	Entity            ReferenceEntity `json:"entity"`
	Score             float64         `json:"score"`
	Class             MatchClass      `json:"class"`
	JurisdictionMatch bool            `json:"jurisdictionMatch"`
}

// MatchResult is the outcome of matching a query against one dataset.
// Available is false when the dataset was not loaded; an available result
// with zero candidates is a clean screen, not missing data.
type MatchResult struct {
	Dataset    string           `json:"dataset"`
	Version    int64            `json:"version"`
	Available  bool             `json:"available"`
	Candidates []MatchCandidate `json:"candidates,omitempty"`
}

// Best returns the highest-ranked candidate, if any.
func (r MatchResult) Best() (MatchCandidate, bool) {
	if len(r.Candidates) == 0 {
		return MatchCandidate{}, false
	}
	return r.Candidates[0], true
}

// DatasetInfo summarizes a loaded reference dataset.
type DatasetInfo struct {
	Dataset     string    `json:"dataset"`
	Version     int64     `json:"version"`
	EntityCount int       `json:"entityCount"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
