package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/tosage/domain/protocol"
)

func TestFromVertexChunk_TextOnly(t *testing.T) {
	svc := NewService(nil)
	chunk := protocol.VertexGenerateContentResponse{
		Candidates: []protocol.VertexCandidate{{Content: protocol.VertexContent{Parts: []protocol.VertexPart{{Text: "Hi"}}}}},
	}
	chunks, err := svc.FromVertexChunk(chunk, "chatcmpl-1", 100, "gemini-pro", true)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "assistant", chunks[0].Choices[0].Delta.Role)
	assert.Equal(t, "Hi", chunks[0].Choices[0].Delta.Content)
	assert.Nil(t, chunks[0].Choices[0].FinishReason)
}

func TestFromVertexChunk_NonFirstChunkHasNoRole(t *testing.T) {
	svc := NewService(nil)
	chunk := protocol.VertexGenerateContentResponse{
		Candidates: []protocol.VertexCandidate{{Content: protocol.VertexContent{Parts: []protocol.VertexPart{{Text: "there"}}}}},
	}
	chunks, err := svc.FromVertexChunk(chunk, "chatcmpl-1", 100, "gemini-pro", false)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].Choices[0].Delta.Role)
}

func TestFromVertexChunk_FinalChunkEmitsFinishReasonAndUsage(t *testing.T) {
	svc := NewService(nil)
	chunk := protocol.VertexGenerateContentResponse{
		Candidates:    []protocol.VertexCandidate{{FinishReason: "STOP"}},
		UsageMetadata: &protocol.VertexUsageMetadata{PromptTokenCount: 3, CandidatesTokenCount: 4, TotalTokenCount: 7},
	}
	chunks, err := svc.FromVertexChunk(chunk, "chatcmpl-1", 100, "gemini-pro", false)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.NotNil(t, chunks[0].Choices[0].FinishReason)
	assert.Equal(t, "stop", *chunks[0].Choices[0].FinishReason)
	require.NotNil(t, chunks[0].Usage)
	assert.Equal(t, int64(7), chunks[0].Usage.TotalTokens)
}

func TestFromVertexChunk_UnspecifiedFinishReasonNotEmitted(t *testing.T) {
	svc := NewService(nil)
	chunk := protocol.VertexGenerateContentResponse{
		Candidates: []protocol.VertexCandidate{{FinishReason: "FINISH_REASON_UNSPECIFIED"}},
	}
	chunks, err := svc.FromVertexChunk(chunk, "chatcmpl-1", 100, "gemini-pro", false)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestStreamErrorChunk(t *testing.T) {
	c := StreamErrorChunk("upstream exploded")
	require.NotNil(t, c.Error)
	assert.Equal(t, "stream_error", c.Error.Type)
	assert.Equal(t, "upstream exploded", c.Error.Message)
	assert.Empty(t, c.Choices)
}
