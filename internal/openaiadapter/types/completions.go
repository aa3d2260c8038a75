package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CreateCompletionRequest is the inbound body of the legacy POST /v1/completions.
// Errors on this endpoint are still rendered in the chat.completion shape
// (NewErrorChatCompletion); only successes use the text_completion shape.
type CreateCompletionRequest struct {
	Model       string   `json:"model"`
	Prompt      *Prompt  `json:"prompt"`
	MaxTokens   *int64   `json:"max_tokens,omitempty" validate:"omitempty,gte=1"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	User        *string  `json:"user,omitempty"`
}

// Prompt accepts the legacy endpoint's prompt forms: a plain string or a list
// whose elements are concatenated without a separator. Non-string list
// elements are stringified rather than rejected.
type Prompt struct {
	Text string
}

func (p *Prompt) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.Text = s
		return nil
	}

	var list []any
	if err := json.Unmarshal(data, &list); err == nil {
		var b strings.Builder
		for _, v := range list {
			switch t := v.(type) {
			case string:
				b.WriteString(t)
			default:
				fmt.Fprintf(&b, "%v", t)
			}
		}
		p.Text = b.String()
		return nil
	}

	return fmt.Errorf("prompt must be a string or a list")
}

func (p Prompt) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Text)
}

// CreateCompletionResponse is the text_completion response body.
type CreateCompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Model   string             `json:"model"`
	Created int64              `json:"created"`
	Choices []CompletionChoice `json:"choices"`
	Usage   CompletionUsage    `json:"usage"`
}

// CompletionChoice is a single legacy completion alternative.
type CompletionChoice struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
}
