// Package matcher selects the stored question that best matches a free-form
// query by counting shared words.
//
// The matcher is a pure function over an in-memory knowledge base. It never
// mutates its inputs, holds no state between calls and is safe to call from
// any number of goroutines over the same KnowledgeBase snapshot.
//
// Scoring is deliberately simple: both texts are normalized into sets of
// words (see Tokenize) and the score of a candidate is the size of the
// intersection. Every word counts, stopwords included. The highest score wins
// and ties go to the earliest record. A score of zero everywhere is reported
// as "no match" rather than as an error.
package matcher

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Record is one stored question/answer pair.
type Record struct {
	Question string `json:"question" yaml:"question"`
	Answer   string `json:"answer" yaml:"answer"`
}

// KnowledgeBase is the ordered list of records. Position i holds ordinal i+1.
type KnowledgeBase []Record

// Diagnostic is the score of a single candidate.
type Diagnostic struct {
	// Ordinal is the 1-based position of the record in the knowledge base.
	Ordinal int `json:"ordinal"`
	// Score is the number of distinct words shared with the query.
	Score int `json:"score"`
	// MatchingTokens lists the shared words in lexical order.
	MatchingTokens []string `json:"matching_tokens"`
}

// ScoreDetail is the per-ordinal view of a Diagnostic.
type ScoreDetail struct {
	Score          int      `json:"score"`
	MatchingTokens []string `json:"matching_tokens"`
}

// MatchResult is the outcome of one Match call.
type MatchResult struct {
	// Record is the selected record, nil when nothing matched.
	Record *Record `json:"record,omitempty"`
	// Ordinal of the selected record, 0 when nothing matched.
	Ordinal int `json:"ordinal"`
	// Score of the selected record.
	Score int `json:"score"`
	// MatchingTokens of the selected record.
	MatchingTokens []string `json:"matching_tokens"`
	// QueryTokens is the normalized query, in lexical order.
	QueryTokens []string `json:"query_tokens"`
	// Diagnostics holds one entry per record in knowledge base order.
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Found reports whether a record was selected.
func (r MatchResult) Found() bool {
	return r.Record != nil
}

// ByOrdinal returns the diagnostics keyed by ordinal.
func (r MatchResult) ByOrdinal() map[int]ScoreDetail {
	out := make(map[int]ScoreDetail, len(r.Diagnostics))
	for _, d := range r.Diagnostics {
		out[d.Ordinal] = ScoreDetail{Score: d.Score, MatchingTokens: d.MatchingTokens}
	}
	return out
}

// DiagnosticsJSON encodes the diagnostics as {"1": {"score": ..., "matching_tokens": [...]}, ...}.
// Keys are emitted in ordinal order.
func (r MatchResult) DiagnosticsJSON() ([]byte, error) {
	// encoding/json sorts map keys as strings, so "10" would land before "2".
	buf := []byte{'{'}
	for i, d := range r.Diagnostics {
		if i > 0 {
			buf = append(buf, ',')
		}
		v, err := json.Marshal(ScoreDetail{Score: d.Score, MatchingTokens: d.MatchingTokens})
		if err != nil {
			return nil, err
		}
		buf = append(buf, '"')
		buf = strconv.AppendInt(buf, int64(d.Ordinal), 10)
		buf = append(buf, '"', ':')
		buf = append(buf, v...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// Ranked returns the diagnostics ordered by descending score. Equal scores keep
// knowledge base order, so the first entry is always the selected record when
// one was found.
func (r MatchResult) Ranked() []Diagnostic {
	ranked := make([]Diagnostic, len(r.Diagnostics))
	copy(ranked, r.Diagnostics)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Match scores every record of kb against query and selects the best one.
func Match(kb KnowledgeBase, query string) MatchResult {
	queryTokens := Tokenize(query)

	result := MatchResult{
		MatchingTokens: []string{},
		QueryTokens:    queryTokens.Sorted(),
		Diagnostics:    make([]Diagnostic, 0, len(kb)),
	}

	best := -1
	for i, rec := range kb {
		matching := queryTokens.Intersect(Tokenize(rec.Question)).Sorted()
		d := Diagnostic{
			Ordinal:        i + 1,
			Score:          len(matching),
			MatchingTokens: matching,
		}
		result.Diagnostics = append(result.Diagnostics, d)

		// Strict comparison keeps the earliest record on ties.
		if d.Score > 0 && (best < 0 || d.Score > result.Diagnostics[best].Score) {
			best = i
		}
	}

	if best < 0 {
		return result
	}

	selected := kb[best]
	winner := result.Diagnostics[best]
	result.Record = &selected
	result.Ordinal = winner.Ordinal
	result.Score = winner.Score
	result.MatchingTokens = winner.MatchingTokens
	return result
}
