package protocol

// VertexPart is a tagged-variant content part for Vertex's generateContent
// API. Exactly one of Text / InlineData / FunctionCall / FunctionResponse
// is populated per part (§4.2.1).
type VertexPart struct {
	Text             string                  `json:"text,omitempty"`
	InlineData       *VertexBlob             `json:"inlineData,omitempty"`
	FunctionCall     *VertexFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *VertexFunctionResponse `json:"functionResponse,omitempty"`
}

type VertexBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type VertexFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

type VertexFunctionResponse struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

// VertexContent is one turn of a Vertex generateContent conversation.
// Role is "user" or "model"; Vertex has no "system" or "assistant" role.
type VertexContent struct {
	Role  string       `json:"role"`
	Parts []VertexPart `json:"parts"`
}

// VertexGenerationConfig carries the sampling knobs passed through from the
// OpenAI request (§4.2.1).
type VertexGenerationConfig struct {
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
}

// VertexGenerateContentRequest is the request body for both
// generateContent and streamGenerateContent.
type VertexGenerateContentRequest struct {
	Contents          []VertexContent         `json:"contents"`
	SystemInstruction *VertexContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *VertexGenerationConfig `json:"generationConfig,omitempty"`
}

// VertexCandidate is one generated completion candidate.
type VertexCandidate struct {
	Content      VertexContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
	Index        int           `json:"index"`
}

// VertexUsageMetadata reports token accounting (§4.2.2).
type VertexUsageMetadata struct {
	PromptTokenCount     int64 `json:"promptTokenCount"`
	CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	TotalTokenCount      int64 `json:"totalTokenCount"`
}

// VertexGenerateContentResponse is both the unary response shape and the
// shape of each element in a streamGenerateContent JSON-array stream.
type VertexGenerateContentResponse struct {
	Candidates    []VertexCandidate    `json:"candidates"`
	UsageMetadata *VertexUsageMetadata `json:"usageMetadata,omitempty"`
	ModelVersion  string               `json:"modelVersion,omitempty"`
}

// VertexErrorResponse is the error envelope Vertex returns on non-2xx.
type VertexErrorResponse struct {
	Error VertexErrorDetail `json:"error"`
}

type VertexErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}
