package usecase

import "github.com/ca-srg/tosage/domain/protocol"

// TranslatorService is the Protocol Translator (C5): stateless, pure
// conversion between the OpenAI chat-completions wire shapes and Vertex AI's
// generateContent shapes (§4.2). Implementations must not perform I/O.
type TranslatorService interface {
	// ToVertexRequest maps an OpenAI request to a Vertex request. System
	// message text is joined with blank lines and prepended to the first
	// user message's text (SystemInstruction is left unset); consecutive same-role
	// messages are passed through unmerged (§9 open question, resolved: keep
	// as a logged warning, never silently merged).
	ToVertexRequest(req protocol.OpenAIChatRequest) (*protocol.VertexGenerateContentRequest, []string, error)

	// FromVertexResponse maps a unary Vertex response back to the OpenAI
	// response shape, stamping id/created/model on the way out.
	FromVertexResponse(resp protocol.VertexGenerateContentResponse, id string, created int64, model string) (*protocol.OpenAIChatResponse, error)

	// FromVertexChunk maps one element of a Vertex stream to zero, one or
	// two OpenAI SSE chunks: a content-delta chunk when the element carries
	// text, then a final empty-delta chunk when it carries a finish reason.
	// When isFirst is true the content delta also carries role "assistant",
	// matching OpenAI's observed streaming behavior.
	FromVertexChunk(chunk protocol.VertexGenerateContentResponse, id string, created int64, model string, isFirst bool) ([]protocol.OpenAIChatChunk, error)
}
