package push

// MaxBatchSize is the provider's hard per-call fan-out limit.
const MaxBatchSize = 500

type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Message is the provider-independent payload of one send.
type Message struct {
	Notification Notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	ImageURL     string            `json:"image_url,omitempty"`
}

// Outcome is the normalized result for a single token or topic send.
// Callers act only on Success and IsInvalidToken.
type Outcome struct {
	Token          string `json:"-"`
	Success        bool   `json:"success"`
	MessageID      string `json:"message_id,omitempty"`
	Error          string `json:"error,omitempty"`
	ErrorCode      string `json:"error_code,omitempty"`
	IsInvalidToken bool   `json:"is_invalid_token"`
	Retryable      bool   `json:"retryable"`
}

// BatchResult keeps Outcomes index-aligned with the input tokens.
type BatchResult struct {
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	Outcomes     []Outcome `json:"outcomes"`
}

// InvalidTokens returns the tokens whose outcome requires deactivation.
func (r *BatchResult) InvalidTokens() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.IsInvalidToken {
			out = append(out, o.Token)
		}
	}
	return out
}

type TopicError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type TopicResult struct {
	SuccessCount int          `json:"success_count"`
	FailureCount int          `json:"failure_count"`
	Errors       []TopicError `json:"errors,omitempty"`
}
