package optimization

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tiktoken-go/tokenizer"
)

// RequestContext holds the per-request facts rules are evaluated against.
// It is built fresh for each routing decision and discarded after.
type RequestContext struct {
	TokenCount int  // Total token count of the content being evaluated
	HasTools   bool // Whether tool/function definitions are attached
}

// ExtractContext builds a RequestContext from a raw chat-completion or
// messages request body. Both OpenAI-shaped and Anthropic-shaped JSON are
// handled: tool presence comes from a non-empty "tools" array, and token
// count from the system prompt plus message text content.
func ExtractContext(body []byte) RequestContext {
	tools := gjson.GetBytes(body, "tools")
	hasTools := tools.IsArray() && len(tools.Array()) > 0

	var parts []string

	// System prompt: OpenAI carries it as a system message, Anthropic as a
	// top-level string or array of text blocks.
	system := gjson.GetBytes(body, "system")
	switch {
	case system.Type == gjson.String:
		parts = append(parts, system.String())
	case system.IsArray():
		for _, block := range system.Array() {
			if text := block.Get("text"); text.Exists() {
				parts = append(parts, text.String())
			}
		}
	}

	for _, msg := range gjson.GetBytes(body, "messages").Array() {
		content := msg.Get("content")
		switch {
		case content.Type == gjson.String:
			parts = append(parts, content.String())
		case content.IsArray():
			for _, block := range content.Array() {
				if text := block.Get("text"); text.Exists() {
					parts = append(parts, text.String())
				}
			}
		}
	}

	return RequestContext{
		TokenCount: CountTokens(strings.Join(parts, "\n")),
		HasTools:   hasTools,
	}
}

// CountTokens counts tokens in text using the O200k encoding, falling back
// to a rough approximation (~4 characters per token) if the tokenizer is
// unavailable.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	enc, err := tokenizer.Get(tokenizer.O200kBase)
	if err != nil {
		return EstimateTokens(text)
	}
	count, err := enc.Count(text)
	if err != nil {
		return EstimateTokens(text)
	}
	return count
}

// EstimateTokens estimates token count from text (rough approximation: 4 chars per token)
func EstimateTokens(text string) int {
	return len(text) / 4
}
