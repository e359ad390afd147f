package repository

import (
	"context"

	"github.com/ca-srg/tosage/domain/entity"
	"github.com/ca-srg/tosage/domain/protocol"
)

// StreamEvent is one element of a streamGenerateContent response. Err is
// set, and Chunk nil, on a mid-stream failure; the caller must stop
// reading after an Err event.
type StreamEvent struct {
	Chunk *protocol.VertexGenerateContentResponse
	Err   error
}

// VertexGenerativeRepository calls Vertex AI's generateContent and
// streamGenerateContent REST endpoints against a given target's
// project/location/credential (§6, Vertex AI Generative Models API
// consumed).
type VertexGenerativeRepository interface {
	GenerateContent(ctx context.Context, target *entity.Target, model string, req protocol.VertexGenerateContentRequest) (*protocol.VertexGenerateContentResponse, error)
	StreamGenerateContent(ctx context.Context, target *entity.Target, model string, req protocol.VertexGenerateContentRequest) (<-chan StreamEvent, error)
}
