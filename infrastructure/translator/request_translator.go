package translator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ca-srg/tosage/domain/protocol"
)

// ToVertexRequest maps an OpenAI chat-completion request to a Vertex
// generateContent request per §4.2.1. Returned warnings describe every
// dropped or suspect element; none of them are fatal.
func (s *Service) ToVertexRequest(req protocol.OpenAIChatRequest) (*protocol.VertexGenerateContentRequest, []string, error) {
	var warnings []string
	var systemParts []string
	var contents []protocol.VertexContent
	systemHoisted := false
	var lastRole string
	pendingFunctionCall := false

	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			if text, ok := extractPlainText(msg.Content); ok && text != "" {
				systemParts = append(systemParts, text)
			} else {
				warnings = append(warnings, "system message had no extractable text")
			}
			continue

		case "user":
			parts, w := mapContentParts(msg.Content)
			warnings = append(warnings, w...)
			if !systemHoisted && len(systemParts) > 0 {
				hoist := strings.Join(systemParts, "\n\n")
				parts = prependText(parts, hoist+"\n\n")
				systemHoisted = true
			}
			if pendingFunctionCall {
				// A functionResponse immediately following a model
				// functionCall is the one sanctioned same-role-as-user
				// adjacency; nothing further to warn about here.
				pendingFunctionCall = false
			} else if lastRole == "user" {
				warnings = append(warnings, "consecutive user messages emitted as separate contents blocks")
			}
			contents = append(contents, protocol.VertexContent{Role: "user", Parts: parts})
			lastRole = "user"

		case "assistant", "model":
			parts, w := mapAssistantParts(msg)
			warnings = append(warnings, w...)
			if lastRole == "model" {
				warnings = append(warnings, "consecutive model messages emitted as separate contents blocks")
			}
			contents = append(contents, protocol.VertexContent{Role: "model", Parts: parts})
			lastRole = "model"
			pendingFunctionCall = hasFunctionCall(parts)

		case "tool", "function":
			part, ok := mapToolResult(msg)
			if !ok {
				warnings = append(warnings, "unparseable tool/function content dropped")
				continue
			}
			if !pendingFunctionCall {
				warnings = append(warnings, "tool/function message did not follow a model functionCall")
			}
			pendingFunctionCall = false
			contents = append(contents, protocol.VertexContent{Role: "user", Parts: []protocol.VertexPart{part}})
			lastRole = "user"

		default:
			warnings = append(warnings, fmt.Sprintf("message with unsupported role %q skipped", msg.Role))
		}
	}

	if len(contents) > 0 && contents[0].Role != "user" {
		warnings = append(warnings, "first content entry does not have role user")
	}

	out := &protocol.VertexGenerateContentRequest{Contents: contents}
	if req.MaxTokens != nil || req.Temperature != nil || req.TopP != nil {
		out.GenerationConfig = &protocol.VertexGenerationConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
			TopP:            req.TopP,
		}
	}

	s.logWarnings(warnings)
	return out, warnings, nil
}

func hasFunctionCall(parts []protocol.VertexPart) bool {
	for _, p := range parts {
		if p.FunctionCall != nil {
			return true
		}
	}
	return false
}

// extractPlainText pulls a string out of a message's Content, whether it
// was encoded as a bare JSON string or an array of text parts.
func extractPlainText(raw []byte) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var parts []protocol.OpenAIContentPart
	if err := json.Unmarshal(raw, &parts); err == nil {
		var b strings.Builder
		for _, p := range parts {
			if p.Type == "text" {
				b.WriteString(p.Text)
			}
		}
		return b.String(), b.Len() > 0
	}
	return "", false
}

// mapContentParts maps a user message's Content (string or array form) to
// Vertex parts.
func mapContentParts(raw []byte) ([]protocol.VertexPart, []string) {
	if len(raw) == 0 {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []protocol.VertexPart{{Text: s}}, nil
	}

	var elems []protocol.OpenAIContentPart
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, []string{"message content was neither a string nor an array, dropped"}
	}

	var warnings []string
	var parts []protocol.VertexPart
	for _, e := range elems {
		switch e.Type {
		case "text":
			parts = append(parts, protocol.VertexPart{Text: e.Text})
		case "image_url":
			if e.ImageURL == nil {
				warnings = append(warnings, "image_url content element missing image_url, dropped")
				continue
			}
			mime, data, ok := parseDataURL(e.ImageURL.URL)
			if !ok {
				warnings = append(warnings, "image_url is not a base64 data URL, dropped")
				continue
			}
			parts = append(parts, protocol.VertexPart{InlineData: &protocol.VertexBlob{MimeType: mime, Data: data}})
		default:
			warnings = append(warnings, fmt.Sprintf("content element of type %q skipped", e.Type))
		}
	}
	return parts, warnings
}

// parseDataURL splits "data:image/<subtype>;base64,<payload>" into its
// mime type and payload.
func parseDataURL(url string) (mime, data string, ok bool) {
	const prefix = "data:"
	if !strings.HasPrefix(url, prefix) {
		return "", "", false
	}
	rest := url[len(prefix):]
	idx := strings.Index(rest, ";base64,")
	if idx < 0 {
		return "", "", false
	}
	return rest[:idx], rest[idx+len(";base64,"):], true
}

// mapAssistantParts maps an assistant/model message's text content and
// tool_calls to Vertex parts (including functionCall parts).
func mapAssistantParts(msg protocol.OpenAIMessage) ([]protocol.VertexPart, []string) {
	parts, warnings := mapContentParts(msg.Content)
	for _, tc := range msg.ToolCalls {
		if tc.Type != "function" {
			warnings = append(warnings, fmt.Sprintf("tool_call of type %q skipped", tc.Type))
			continue
		}
		var args map[string]interface{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				warnings = append(warnings, fmt.Sprintf("tool_call %q had malformed arguments, dropped", tc.Function.Name))
				continue
			}
		}
		parts = append(parts, protocol.VertexPart{FunctionCall: &protocol.VertexFunctionCall{Name: tc.Function.Name, Args: args}})
	}
	return parts, warnings
}

// mapToolResult maps a tool/function role message to a functionResponse
// part. The stringified JSON {name, response} is the expected shape;
// failing that, the message's Name field plus raw content-as-response is
// accepted as a fallback.
func mapToolResult(msg protocol.OpenAIMessage) (protocol.VertexPart, bool) {
	var wrapped struct {
		Name     string                 `json:"name"`
		Response map[string]interface{} `json:"response"`
	}
	if len(msg.Content) > 0 {
		payload := []byte(msg.Content)
		var stringified string
		if err := json.Unmarshal(msg.Content, &stringified); err == nil {
			payload = []byte(stringified)
		}
		if err := json.Unmarshal(payload, &wrapped); err == nil && wrapped.Name != "" {
			return protocol.VertexPart{FunctionResponse: &protocol.VertexFunctionResponse{Name: wrapped.Name, Response: wrapped.Response}}, true
		}
	}

	name := msg.Name
	if name == "" {
		return protocol.VertexPart{}, false
	}
	text, ok := extractPlainText(msg.Content)
	if !ok {
		return protocol.VertexPart{}, false
	}
	return protocol.VertexPart{FunctionResponse: &protocol.VertexFunctionResponse{
		Name:     name,
		Response: map[string]interface{}{"content": text},
	}}, true
}

// prependText inserts a leading text part, merging it into an existing
// leading text part when one is present.
func prependText(parts []protocol.VertexPart, prefix string) []protocol.VertexPart {
	if len(parts) > 0 && parts[0].Text != "" && parts[0].InlineData == nil && parts[0].FunctionCall == nil && parts[0].FunctionResponse == nil {
		merged := append([]protocol.VertexPart{}, parts...)
		merged[0].Text = prefix + merged[0].Text
		return merged
	}
	return append([]protocol.VertexPart{{Text: prefix}}, parts...)
}
