package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ca-srg/tosage/domain"
	"github.com/ca-srg/tosage/domain/entity"
	"github.com/ca-srg/tosage/domain/protocol"
	"github.com/ca-srg/tosage/domain/repository"
	"github.com/ca-srg/tosage/infrastructure/auth"
)

// VertexAIRESTRepository calls Vertex AI's generateContent and
// streamGenerateContent REST endpoints. It performs exactly one HTTP
// attempt per call and classifies the outcome into a *domain.DispatchError;
// retrying across attempts (possibly against a different target) is the
// Dispatch Engine's responsibility (§4.3), not this client's.
type VertexAIRESTRepository struct {
	credentials auth.TargetCredentialProvider
	httpClient  *http.Client
}

// NewVertexAIRESTRepository constructs a client over the given credential
// provider.
func NewVertexAIRESTRepository(credentials auth.TargetCredentialProvider) *VertexAIRESTRepository {
	return &VertexAIRESTRepository{
		credentials: credentials,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
	}
}

var _ repository.VertexGenerativeRepository = (*VertexAIRESTRepository)(nil)

func endpointURL(target *entity.Target, model string, stream bool) string {
	action := "generateContent"
	if stream {
		action = "streamGenerateContent"
	}
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:%s",
		target.Location(), target.ProjectID(), target.Location(), model, action)
}

// GenerateContent issues a single unary generateContent call.
func (r *VertexAIRESTRepository) GenerateContent(ctx context.Context, target *entity.Target, model string, req protocol.VertexGenerateContentRequest) (*protocol.VertexGenerateContentResponse, error) {
	body, err := r.call(ctx, target, endpointURL(target, model, false), req)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var out protocol.VertexGenerateContentResponse
	if err := json.NewDecoder(body).Decode(&out); err != nil {
		return nil, domain.NewDispatchErrorWithCause(domain.KindUpstreamResponse, "failed to decode generateContent response", err)
	}
	return &out, nil
}

// StreamGenerateContent issues a streamGenerateContent call and decodes the
// JSON-array response body incrementally, publishing one event per element
// so the caller can begin forwarding SSE frames before the upstream body is
// fully read.
func (r *VertexAIRESTRepository) StreamGenerateContent(ctx context.Context, target *entity.Target, model string, req protocol.VertexGenerateContentRequest) (<-chan repository.StreamEvent, error) {
	body, err := r.call(ctx, target, endpointURL(target, model, true), req)
	if err != nil {
		return nil, err
	}

	events := make(chan repository.StreamEvent)
	go decodeVertexStream(ctx, body, events)
	return events, nil
}

// decodeVertexStream reads a streamGenerateContent body (a single JSON
// array of response objects) and publishes one event per element. It owns
// closing both body and events.
func decodeVertexStream(ctx context.Context, body io.ReadCloser, events chan<- repository.StreamEvent) {
	defer close(events)
	defer body.Close()

	dec := json.NewDecoder(body)
	if _, err := dec.Token(); err != nil { // consume the opening '['
		events <- repository.StreamEvent{Err: domain.NewDispatchErrorWithCause(domain.KindUpstreamResponse, "malformed stream: expected array", err)}
		return
	}
	for dec.More() {
		var chunk protocol.VertexGenerateContentResponse
		if err := dec.Decode(&chunk); err != nil {
			events <- repository.StreamEvent{Err: domain.NewDispatchErrorWithCause(domain.KindUpstreamResponse, "malformed stream element", err)}
			return
		}
		select {
		case events <- repository.StreamEvent{Chunk: &chunk}:
		case <-ctx.Done():
			return
		}
	}
}

// call performs one HTTP round trip and returns the response body reader
// on a 2xx status, classifying any other outcome into a *domain.DispatchError.
func (r *VertexAIRESTRepository) call(ctx context.Context, target *entity.Target, url string, reqBody protocol.VertexGenerateContentRequest) (io.ReadCloser, error) {
	if !auth.HasMinimalCredentialFields(target.ServiceAccountKeyJSON()) {
		return nil, domain.NewDispatchError(domain.KindConfiguration, "target credential is missing client_email or private_key")
	}

	token, err := r.credentials.AccessToken(ctx, target.ServiceAccountKeyJSON())
	if err != nil {
		return nil, domain.NewDispatchErrorWithCause(domain.KindAuthentication, "failed to obtain access token", err)
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, domain.NewDispatchErrorWithCause(domain.KindInvalidRequest, "failed to marshal vertex request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, domain.NewDispatchErrorWithCause(domain.KindUnknownUpstream, "failed to build request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.NewDispatchErrorWithCause(domain.KindUpstreamUnavailable, "network error calling vertex ai", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.Body, nil
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return nil, classifyHTTPError(resp.StatusCode, body)
}

func classifyHTTPError(statusCode int, body []byte) error {
	var errResp protocol.VertexErrorResponse
	message := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	if strings.Contains(strings.ToLower(message), "quota") {
		return domain.NewDispatchError(domain.KindRateLimit, message)
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewDispatchError(domain.KindAuthentication, message)
	case http.StatusNotFound:
		return domain.NewDispatchError(domain.KindNotFound, message)
	case http.StatusConflict:
		return domain.NewDispatchError(domain.KindConflict, message)
	case http.StatusTooManyRequests:
		return domain.NewDispatchError(domain.KindRateLimit, message)
	case http.StatusBadRequest:
		return domain.NewDispatchError(domain.KindInvalidRequest, message)
	case http.StatusServiceUnavailable:
		return domain.NewDispatchError(domain.KindUpstreamUnavailable, message)
	default:
		if statusCode >= 500 {
			return domain.NewDispatchError(domain.KindUpstreamServer, message)
		}
		return domain.NewDispatchError(domain.KindUnknownUpstream, message)
	}
}
