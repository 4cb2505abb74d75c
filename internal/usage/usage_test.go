package usage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tiktoken-go/tokenizer"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{in: "", want: 0},
		{in: "hi", want: 1},
		{in: "hello world", want: 2},
		{in: "Hello, world!", want: 4},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Estimate(tt.in), "Estimate(%q)", tt.in)
	}
}

func TestEstimate_UsesTokenizer(t *testing.T) {
	enc, err := tokenizer.Get(tokenizer.Cl100kBase)
	require.NoError(t, err)

	text := "How can I submit a report on expenses?"
	ids, _, err := enc.Encode(text)
	require.NoError(t, err)

	assert.NotNil(t, defaultCodec())
	assert.Equal(t, len(ids), Estimate(text))
}

func TestEstimateRunes(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{in: "", want: 0},
		{in: "hi", want: 1},
		{in: "abcd", want: 1},
		{in: "abcdefgh", want: 2},
		{in: "héllo wörld!", want: 3},
		{in: "日本語のテキスト", want: 2},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, estimateRunes(tt.in), "estimateRunes(%q)", tt.in)
	}
}

func TestEstimated(t *testing.T) {
	u := Estimated("hello world", "hi")
	assert.Equal(t, Usage{PromptTokens: 2, CompletionTokens: 1, TotalTokens: 3, Estimated: true, Calls: 1}, u)
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, Usage{}, tr.Total())

	tr.Add(Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	tr.Add(Usage{PromptTokens: 3, CompletionTokens: 2})
	tr.Add(Estimated("hello world", ""))

	got := tr.Total()
	assert.Equal(t, 15, got.PromptTokens)
	assert.Equal(t, 7, got.CompletionTokens)
	assert.Equal(t, 22, got.TotalTokens)
	assert.Equal(t, 3, got.Calls)
	assert.True(t, got.Estimated)

	tr.Reset()
	assert.Equal(t, Usage{}, tr.Total())
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Add(Usage{PromptTokens: 1, CompletionTokens: 1})
		}()
	}
	wg.Wait()

	assert.Equal(t, Usage{PromptTokens: 50, CompletionTokens: 50, TotalTokens: 100, Calls: 50}, tr.Total())
}
