package types

// Usage holds token counts reported by (or inferred for) a provider call.
// All counts are non-negative.
type Usage struct {
	InputTokens     int `json:"input_tokens"`
	OutputTokens    int `json:"output_tokens"`
	TotalTokens     int `json:"total_tokens"`
	CachedTokens    int `json:"cached_tokens,omitempty"`
	ReasoningTokens int `json:"reasoning_tokens,omitempty"`
}

// Add returns the element-wise sum of two usage records.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:     u.InputTokens + other.InputTokens,
		OutputTokens:    u.OutputTokens + other.OutputTokens,
		TotalTokens:     u.TotalTokens + other.TotalTokens,
		CachedTokens:    u.CachedTokens + other.CachedTokens,
		ReasoningTokens: u.ReasoningTokens + other.ReasoningTokens,
	}
}

// NormalizedResponse is the uniform result shape produced for every call,
// regardless of which provider answered and whether the call succeeded.
// When Error is set, Content is empty and Cost is 0.
type NormalizedResponse struct {
	Content        string         `json:"content"`
	Usage          Usage          `json:"usage"`
	Cost           float64        `json:"cost"`
	Meta           map[string]any `json:"meta,omitempty"`
	Cached         bool           `json:"cached"`
	ResponseTimeMs int64          `json:"response_time_ms"`
	Error          string         `json:"error,omitempty"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// OK reports whether the call succeeded.
func (r *NormalizedResponse) OK() bool {
	return r != nil && r.Error == ""
}
