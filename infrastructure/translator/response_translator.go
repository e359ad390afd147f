package translator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ca-srg/tosage/domain/protocol"
)

var finishReasonMap = map[string]string{
	"STOP":       "stop",
	"MAX_TOKENS": "length",
	"SAFETY":     "content_filter",
	"RECITATION": "recitation",
}

// mapFinishReason implements §4.2.2's table; OTHER, FINISH_REASON_UNSPECIFIED
// and the empty string all map to nil (omitted finish_reason).
func mapFinishReason(vertex string) *string {
	mapped, ok := finishReasonMap[vertex]
	if !ok {
		return nil
	}
	return &mapped
}

// FromVertexResponse maps a unary Vertex response to the OpenAI response
// shape (§4.2.2).
func (s *Service) FromVertexResponse(resp protocol.VertexGenerateContentResponse, id string, created int64, model string) (*protocol.OpenAIChatResponse, error) {
	out := &protocol.OpenAIChatResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: created,
		Model:   model,
	}

	if len(resp.Candidates) == 0 {
		finish := "error"
		out.Choices = []protocol.OpenAIChoice{{
			Index:        0,
			Message:      protocol.OpenAIChatMessage{Role: "assistant", Content: nil},
			FinishReason: &finish,
		}}
		out.Error = &protocol.OpenAIResponseError{Message: "upstream returned no candidates", Type: "upstream_response_error"}
		return out, nil
	}

	candidate := resp.Candidates[0]
	message := protocol.OpenAIChatMessage{Role: "assistant"}

	var toolCalls []protocol.OpenAIToolCall
	callIndex := 0
	for _, p := range candidate.Content.Parts {
		if p.FunctionCall != nil {
			argsJSON, err := json.Marshal(p.FunctionCall.Args)
			if err != nil {
				argsJSON = []byte("{}")
			}
			toolCalls = append(toolCalls, protocol.OpenAIToolCall{
				ID:   fmt.Sprintf("call_%s_%d", uuid.NewString(), callIndex),
				Type: "function",
				Function: protocol.OpenAIToolCallFunc{
					Name:      p.FunctionCall.Name,
					Arguments: string(argsJSON),
				},
			})
			callIndex++
		}
	}

	if len(toolCalls) > 0 {
		message.ToolCalls = toolCalls
	} else {
		var b strings.Builder
		for _, p := range candidate.Content.Parts {
			b.WriteString(p.Text)
		}
		text := b.String()
		message.Content = &text
	}

	out.Choices = []protocol.OpenAIChoice{{
		Index:        0,
		Message:      message,
		FinishReason: mapFinishReason(candidate.FinishReason),
	}}

	if resp.UsageMetadata != nil {
		out.Usage = protocol.OpenAIUsage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}

	return out, nil
}
