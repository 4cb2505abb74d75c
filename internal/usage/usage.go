// Package usage accounts for model tokens across calls.
//
// Vendors that report usage (OpenAI) are recorded as reported. Where a
// vendor reports nothing the adapters fall back to Estimate, which counts
// cl100k_base tokens.
package usage

import (
	"sync"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// Usage is a token count split by direction.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
	// Estimated is true when any part of the count was estimated.
	Estimated bool `json:"estimated,omitempty"`
	// Calls is the number of model calls summed into this value.
	Calls int `json:"calls"`
}

// Plus returns the sum of u and o.
func (u Usage) Plus(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
		Estimated:        u.Estimated || o.Estimated,
		Calls:            u.Calls + o.Calls,
	}
}

var (
	codecOnce sync.Once
	codec     tokenizer.Codec
)

func defaultCodec() tokenizer.Codec {
	codecOnce.Do(func() {
		enc, err := tokenizer.Get(tokenizer.Cl100kBase)
		if err != nil {
			return
		}
		codec = enc
	})
	return codec
}

// Estimate counts the cl100k_base tokens of text. When the codec is not
// available it falls back to about one token per four runes.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	if enc := defaultCodec(); enc != nil {
		if ids, _, err := enc.Encode(text); err == nil {
			return len(ids)
		}
	}
	return estimateRunes(text)
}

func estimateRunes(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	if n < 4 {
		return 1
	}
	return n / 4
}

// Estimated builds a single-call Usage from prompt and completion text.
func Estimated(prompt, completion string) Usage {
	p, c := Estimate(prompt), Estimate(completion)
	return Usage{
		PromptTokens:     p,
		CompletionTokens: c,
		TotalTokens:      p + c,
		Estimated:        true,
		Calls:            1,
	}
}

// Tracker accumulates Usage. It is safe for concurrent use and is passed
// explicitly to whoever records usage.
type Tracker struct {
	mu    sync.Mutex
	total Usage
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Add records one call. A zero Calls field counts as one call.
func (t *Tracker) Add(u Usage) {
	if u.Calls == 0 {
		u.Calls = 1
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	t.mu.Lock()
	t.total = t.total.Plus(u)
	t.mu.Unlock()
}

// Total returns the running sum.
func (t *Tracker) Total() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Reset clears the running sum.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.total = Usage{}
	t.mu.Unlock()
}
