package types

import (
	"encoding/json"
	"fmt"
)

// CreateEmbeddingsRequest is the inbound body of POST /v1/embeddings.
type CreateEmbeddingsRequest struct {
	Model string           `json:"model"`
	Input *EmbeddingsInput `json:"input"`
	User  *string          `json:"user,omitempty"`
}

// EmbeddingsInput accepts a string, a list, or a bare scalar; every element is
// normalized to a string so the upstream deployment sees a uniform list.
type EmbeddingsInput struct {
	Values []string
}

func (in *EmbeddingsInput) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		in.Values = []string{s}
		return nil
	}

	var list []any
	if err := json.Unmarshal(data, &list); err == nil {
		values := make([]string, 0, len(list))
		for _, v := range list {
			switch t := v.(type) {
			case string:
				values = append(values, t)
			default:
				values = append(values, fmt.Sprintf("%v", t))
			}
		}
		in.Values = values
		return nil
	}

	var scalar any
	if err := json.Unmarshal(data, &scalar); err == nil {
		in.Values = []string{fmt.Sprintf("%v", scalar)}
		return nil
	}

	return fmt.Errorf("input must be a string, list, or scalar")
}

func (in EmbeddingsInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(in.Values)
}

// Embedding is one vector of an embeddings response.
type Embedding struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// CreateEmbeddingsResponse is the embeddings list response body.
type CreateEmbeddingsResponse struct {
	Object  string          `json:"object"`
	Model   string          `json:"model"`
	Data    []Embedding     `json:"data"`
	Usage   CompletionUsage `json:"usage"`
	Created int64           `json:"created"`
}

// CreateModerationRequest is decoded only far enough to echo the model id in
// the rejection; moderations are never forwarded.
type CreateModerationRequest struct {
	Model string          `json:"model"`
	Input json.RawMessage `json:"input"`
}

// Model is one entry of the GET /v1/models listing.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the GET /v1/models response body.
type ModelList struct {
	Data   []Model `json:"data"`
	Object string  `json:"object"`
}
