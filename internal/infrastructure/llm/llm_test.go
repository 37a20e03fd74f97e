package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/selector"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/txn"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/config"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
	last  string
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.last = prompt
	return f.reply, f.err
}

func sampleRequest() selector.Request {
	ledger := txn.Transaction{
		ID: "L1", Date: txn.NewDate(2024, 1, 15), Vendor: "Office Depot",
		Description: "Printer paper", Amount: decimal.RequireFromString("45.99"),
		Type: txn.MoneyOut, Source: txn.Ledger,
	}
	bank := txn.Transaction{
		ID: "B1", Date: txn.NewDate(2024, 1, 16), Vendor: "OFFICE DEPOT #1234",
		Amount: decimal.RequireFromString("45.99"), Type: txn.MoneyOut, Source: txn.Bank,
	}
	return selector.Request{
		Ledger: ledger,
		Candidates: []matcher.MatchCandidate{{
			Ledger: ledger, Bank: bank, Score: 0.91, Confidence: matcher.ConfidenceHigh,
			ComponentScores: map[string]float64{matcher.ComponentAmount: 1, matcher.ComponentDate: 0.83, matcher.ComponentVendor: 0.9},
		}},
		Config: matcher.DefaultConfig(),
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected selector.Response
	}{
		{
			name:     "plain json",
			input:    `{"selected_candidate": 2, "confidence": 0.9, "explanation": "Same vendor"}`,
			expected: selector.Response{Selected: 2, Confidence: 0.9, Explanation: "Same vendor"},
		},
		{
			name:     "fenced json",
			input:    "```json\n{\"selected_candidate\": 1, \"confidence\": 0.7, \"explanation\": \"ok\"}\n```",
			expected: selector.Response{Selected: 1, Confidence: 0.7, Explanation: "ok"},
		},
		{
			name:     "null selection",
			input:    `{"selected_candidate": null, "confidence": 0.2, "explanation": "No match"}`,
			expected: selector.Response{Selected: 0, Confidence: 0.2, Explanation: "No match"},
		},
		{
			name:     "missing confidence defaults",
			input:    `{"selected_candidate": 1, "explanation": "ok"}`,
			expected: selector.Response{Selected: 1, Confidence: 0.5, Explanation: "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	for _, input := range []string{"", "not json", `{"selected_candidate": 1.5}`, `{"selected_candidate": 1e30}`, `{"selected_candidate": -3e9}`} {
		_, err := ParseResponse(input)
		assert.ErrorIs(t, err, selector.ErrMalformedResponse, "input %q", input)
	}
}

func TestBuildPrompt(t *testing.T) {
	req := sampleRequest()

	prompt := BuildPrompt(req)

	assert.Contains(t, prompt, "Office Depot")
	assert.Contains(t, prompt, "Candidate 1:")
	assert.Contains(t, prompt, "OFFICE DEPOT #1234")
	assert.Contains(t, prompt, "$45.99")
	assert.Contains(t, prompt, "Reference: N/A")
	assert.Contains(t, prompt, "Vendor similarity threshold: 80%")
	assert.NotContains(t, prompt, "Candidate 2:")
}

func TestBuildPrompt_CapsCandidates(t *testing.T) {
	req := sampleRequest()
	for i := 0; i < 6; i++ {
		req.Candidates = append(req.Candidates, req.Candidates[0])
	}

	prompt := BuildPrompt(req)

	assert.Contains(t, prompt, "Candidate 5:")
	assert.NotContains(t, prompt, "Candidate 6:")
}

func TestDecider_CachesIdenticalRequests(t *testing.T) {
	fake := &fakeCompleter{reply: `{"selected_candidate": 1, "confidence": 0.8, "explanation": "Same store"}`}
	d := NewDecider(fake, DeciderOptions{RequestsPerMinute: 6000}, nil)

	first, err := d.Decide(context.Background(), sampleRequest())
	require.NoError(t, err)
	second, err := d.Decide(context.Background(), sampleRequest())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, 1, d.CacheSize())
}

func TestDecider_PropagatesErrors(t *testing.T) {
	t.Run("completer error", func(t *testing.T) {
		fake := &fakeCompleter{err: errors.New("boom")}
		d := NewDecider(fake, DeciderOptions{}, nil)

		_, err := d.Decide(context.Background(), sampleRequest())

		assert.EqualError(t, err, "boom")
		assert.Equal(t, 0, d.CacheSize(), "failures are not cached")
	})

	t.Run("malformed reply", func(t *testing.T) {
		fake := &fakeCompleter{reply: "I think candidate one"}
		d := NewDecider(fake, DeciderOptions{}, nil)

		_, err := d.Decide(context.Background(), sampleRequest())

		assert.ErrorIs(t, err, selector.ErrMalformedResponse)
	})

	t.Run("cancelled while throttled", func(t *testing.T) {
		fake := &fakeCompleter{reply: `{"selected_candidate": 1}`}
		d := NewDecider(fake, DeciderOptions{RequestsPerMinute: 1}, nil)
		_, err := d.Decide(context.Background(), sampleRequest())
		require.NoError(t, err)

		req := sampleRequest()
		req.Ledger.Vendor = "Staples"
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = d.Decide(ctx, req)

		assert.Error(t, err)
		assert.Equal(t, 1, fake.calls)
	})
}

func TestOpenAIClient_Complete(t *testing.T) {
	// Arrange
	var got ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ChatCompletionResponse{
			Choices: []Choice{{Message: Message{Role: "assistant", Content: `{"selected_candidate": 1}`}}},
		})
	}))
	defer server.Close()
	client := NewOpenAIClient("test-key", "", server.URL)

	// Act
	text, err := client.Complete(context.Background(), "hello")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, `{"selected_candidate": 1}`, text)
	assert.Equal(t, defaultOpenAIModel, got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "hello", got.Messages[1].Content)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestOpenAIClient_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit", "code": "429"}}`))
	}))
	defer server.Close()
	client := NewOpenAIClient("test-key", "gpt-test", server.URL)

	_, err := client.Complete(context.Background(), "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "slow down")
}

func TestNewFromConfig(t *testing.T) {
	t.Run("none is heuristic only", func(t *testing.T) {
		cfg := config.Default()

		maker, closer, err := NewFromConfig(context.Background(), cfg, nil)

		require.NoError(t, err)
		assert.Nil(t, maker)
		assert.NoError(t, closer.Close())
	})

	t.Run("openai without key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("OPENAI_APIKEY", "")
		cfg := config.Default()
		cfg.Decision.Provider = config.ProviderOpenAI

		_, _, err := NewFromConfig(context.Background(), cfg, nil)

		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("openai with key", func(t *testing.T) {
		cfg := config.Default()
		cfg.Decision.Provider = config.ProviderOpenAI
		cfg.Decision.APIKey = "k"

		maker, _, err := NewFromConfig(context.Background(), cfg, nil)

		require.NoError(t, err)
		assert.IsType(t, &Decider{}, maker)
	})
}
