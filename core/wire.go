package core

// chatWirePayload is the JSON body sent to the chat completions endpoint.
// It mirrors ChatRequest plus the stream flag, which is owned by the
// executor rather than the caller.
type chatWirePayload struct {
	Model            ModelID   `json:"model"`
	Messages         []Message `json:"messages"`
	Stream           bool      `json:"stream"`
	MaxTokens        *int      `json:"max_tokens,omitempty"`
	Temperature      *float32  `json:"temperature,omitempty"`
	TopP             *float32  `json:"top_p,omitempty"`
	Stop             []string  `json:"stop,omitempty"`
	PresencePenalty  *float32  `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float32  `json:"frequency_penalty,omitempty"`
	User             string    `json:"user,omitempty"`
}

// newChatWirePayload builds the wire body for a chat request.
func newChatWirePayload(req *ChatRequest, stream bool) *chatWirePayload {
	return &chatWirePayload{
		Model:            req.Model,
		Messages:         req.Messages,
		Stream:           stream,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		Stop:             req.Stop,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
		User:             req.User,
	}
}
