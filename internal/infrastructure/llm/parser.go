package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/selector"
)

const defaultConfidence = 0.5

type rawDecision struct {
	Selected    *float64 `json:"selected_candidate"`
	Confidence  *float64 `json:"confidence"`
	Explanation string   `json:"explanation"`
}

// ParseResponse extracts a decision from model output, tolerating markdown code fences.
// A missing confidence defaults to 0.5; a null selection means no match.
func ParseResponse(text string) (selector.Response, error) {
	body := stripCodeFence(text)
	if body == "" {
		return selector.Response{}, fmt.Errorf("%w: empty response", selector.ErrMalformedResponse)
	}

	var raw rawDecision
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return selector.Response{}, fmt.Errorf("%w: %v", selector.ErrMalformedResponse, err)
	}

	resp := selector.Response{
		Confidence:  defaultConfidence,
		Explanation: strings.TrimSpace(raw.Explanation),
	}
	if raw.Confidence != nil {
		resp.Confidence = *raw.Confidence
	}
	if raw.Selected != nil {
		n := *raw.Selected
		if math.Abs(n) > math.MaxInt32 {
			return selector.Response{}, fmt.Errorf("%w: selected_candidate %v out of range", selector.ErrMalformedResponse, n)
		}
		if n != math.Trunc(n) {
			return selector.Response{}, fmt.Errorf("%w: selected_candidate %v is not an integer", selector.ErrMalformedResponse, n)
		}
		resp.Selected = int(n)
	}
	return resp, nil
}

// stripCodeFence removes a ```json ... ``` wrapper if present
func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if end := strings.Index(s, "```"); end >= 0 {
		s = s[:end]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSpace(s)
}
