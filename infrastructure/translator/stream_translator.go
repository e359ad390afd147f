package translator

import (
	"strings"

	"github.com/ca-srg/tosage/domain/protocol"
)

// FromVertexChunk maps one element of a Vertex stream to the OpenAI SSE
// chunk(s) it produces (§4.2.3): a content-delta chunk when the element
// carries text, then a final empty-delta chunk when it carries a
// finishReason, so an element carrying both yields two frames.
func (s *Service) FromVertexChunk(chunk protocol.VertexGenerateContentResponse, id string, created int64, model string, isFirst bool) ([]protocol.OpenAIChatChunk, error) {
	var out []protocol.OpenAIChatChunk

	var text strings.Builder
	var finishReason string
	if len(chunk.Candidates) > 0 {
		c := chunk.Candidates[0]
		for _, p := range c.Content.Parts {
			text.WriteString(p.Text)
		}
		finishReason = c.FinishReason
	}

	if text.Len() > 0 {
		content := text.String()
		delta := protocol.OpenAIChunkDelta{Content: content}
		if isFirst {
			delta.Role = "assistant"
		}
		out = append(out, protocol.OpenAIChatChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []protocol.OpenAIChunkChoice{{
				Index:        0,
				Delta:        delta,
				FinishReason: nil,
			}},
		})
	}

	if finishReason != "" && finishReason != "FINISH_REASON_UNSPECIFIED" {
		mapped := mapFinishReason(finishReason)
		final := protocol.OpenAIChatChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []protocol.OpenAIChunkChoice{{
				Index:        0,
				Delta:        protocol.OpenAIChunkDelta{},
				FinishReason: mapped,
			}},
		}
		if chunk.UsageMetadata != nil {
			final.Usage = &protocol.OpenAIUsage{
				PromptTokens:     chunk.UsageMetadata.PromptTokenCount,
				CompletionTokens: chunk.UsageMetadata.CandidatesTokenCount,
				TotalTokens:      chunk.UsageMetadata.TotalTokenCount,
			}
		}
		out = append(out, final)
	}

	return out, nil
}

// StreamErrorChunk builds the frame emitted when the upstream stream fails
// mid-flight, after at least one byte has already reached the client
// (§4.2.3). The caller still emits "data: [DONE]\n\n" afterward.
func StreamErrorChunk(message string) protocol.OpenAIChatChunk {
	return protocol.OpenAIChatChunk{
		Choices: []protocol.OpenAIChunkChoice{},
		Error:   &protocol.OpenAIStreamChunkError{Message: message, Type: "stream_error"},
	}
}
