package impl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ca-srg/tosage/domain"
	"github.com/ca-srg/tosage/domain/entity"
	"github.com/ca-srg/tosage/domain/protocol"
	"github.com/ca-srg/tosage/domain/repository"
	usecase "github.com/ca-srg/tosage/usecase/interface"
)

// newChatCompletionID mints the "chatcmpl-<uuid>" identifier stamped on
// unary responses, every streamed chunk, and request-log rows. Kept local
// to this package (rather than imported from infrastructure/translator) so
// the usecase layer does not depend downward on infrastructure.
func newChatCompletionID() string {
	return fmt.Sprintf("chatcmpl-%s", uuid.NewString())
}

// translatorStreamErrorChunk builds the frame emitted when the upstream
// stream fails mid-flight, after the SSE response has already begun
// (§4.2.3). The caller still emits "data: [DONE]\n\n" afterward.
func translatorStreamErrorChunk(message string) protocol.OpenAIChatChunk {
	return protocol.OpenAIChatChunk{
		Choices: []protocol.OpenAIChunkChoice{},
		Error:   &protocol.OpenAIStreamChunkError{Message: message, Type: "stream_error"},
	}
}

// DispatchEngineImpl is the Dispatch Engine (C6): runs the
// Ready→Acquired→Called→(Streamed|Succeeded|Failed)→Retry?→Done state
// machine of §4.3, writing either a unary JSON response or an SSE stream
// directly to the caller's http.ResponseWriter.
type DispatchEngineImpl struct {
	targets     usecase.TargetManagerService
	translator  usecase.TranslatorService
	vertex      repository.VertexGenerativeRepository
	requestLogs repository.RequestLogRepository
	settings    repository.SettingsRepository
	logger      domain.Logger
	metrics     domain.MetricsRecorder
	now         clock
	sleep       func(ctx context.Context, d time.Duration)
}

// NewDispatchEngineService wires a Dispatch Engine over the given
// collaborators. metrics may be nil, in which case dispatch outcomes are
// simply not observed.
func NewDispatchEngineService(
	targets usecase.TargetManagerService,
	translator usecase.TranslatorService,
	vertex repository.VertexGenerativeRepository,
	requestLogs repository.RequestLogRepository,
	settings repository.SettingsRepository,
	logger domain.Logger,
	metrics domain.MetricsRecorder,
) *DispatchEngineImpl {
	return &DispatchEngineImpl{
		targets:     targets,
		translator:  translator,
		vertex:      vertex,
		requestLogs: requestLogs,
		settings:    settings,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
		sleep:       ctxSleep,
	}
}

var _ usecase.DispatchService = (*DispatchEngineImpl)(nil)

func ctxSleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// Dispatch implements usecase.DispatchService.
func (e *DispatchEngineImpl) Dispatch(ctx context.Context, w http.ResponseWriter, req usecase.DispatchRequest) error {
	var chatReq protocol.OpenAIChatRequest
	if e.metrics != nil {
		e.metrics.InFlight(1)
	}
	defer func() {
		if e.metrics != nil {
			e.metrics.ObserveDuration(chatReq.Stream, e.now().Sub(req.StartTime))
			e.metrics.InFlight(-1)
		}
	}()
	if err := json.Unmarshal(req.Body, &chatReq); err != nil {
		de := domain.NewDispatchErrorWithCause(domain.KindInvalidRequest, "request body is not valid JSON", err)
		e.writeRequestLog(req, entity.TargetUnknown, "", de, 0)
		return de
	}
	if chatReq.Model == "" {
		de := domain.NewDispatchError(domain.KindInvalidRequest, "model field is required")
		e.writeRequestLog(req, entity.TargetUnknown, "", de, 0)
		return de
	}

	vertexReq, warnings, err := e.translator.ToVertexRequest(chatReq)
	if err != nil {
		de := domain.NewDispatchErrorWithCause(domain.KindInvalidRequest, "failed to translate request", err)
		e.writeRequestLog(req, entity.TargetUnknown, chatReq.Model, de, 0)
		return de
	}
	for _, warning := range warnings {
		e.logger.Warn(ctx, "translation warning", domain.NewField("requestId", req.RequestID), domain.NewField("detail", warning))
	}

	settings, err := e.settings.Get()
	if err != nil || settings == nil {
		settings = entity.DefaultSettings()
	}

	for attempt := 1; ; attempt++ {
		target, acquireErr := e.targets.Acquire()
		if acquireErr != nil {
			de := e.classifyAcquireError(acquireErr)
			e.recordError(entity.TargetUnavailable, string(de.Kind))
			e.writeRequestLog(req, entity.TargetUnavailable, chatReq.Model, de, attempt)
			return de
		}

		e.logger.Debug(ctx, "dispatch attempt",
			domain.NewField("requestId", req.RequestID),
			domain.NewField("targetId", target.ID()),
			domain.NewField("attempt", attempt))

		var dispatchErr error
		if chatReq.Stream {
			dispatchErr = e.dispatchStreaming(ctx, w, req, target, chatReq.Model, *vertexReq)
		} else {
			dispatchErr = e.dispatchUnary(ctx, w, req, target, chatReq.Model, *vertexReq)
		}

		if dispatchErr == nil {
			return nil
		}
		if errors.Is(dispatchErr, errStreamingStarted) {
			// Once SSE framing has begun the response is already committed;
			// any failure from here was reported in-band, not retried.
			return nil
		}

		classified := domain.AsDispatchError(dispatchErr)
		e.recordError(target.ID(), string(classified.Kind))
		if _, markErr := e.targets.MarkError(target, classified); markErr != nil {
			e.logger.Error(ctx, "failed to persist target failure state", domain.NewField("targetId", target.ID()), domain.NewField("error", markErr.Error()))
		}

		willRetry := classified.Retryable() && attempt < settings.MaxRetries

		logKind := classified.Kind
		logMessage := classified.Message
		if !willRetry && classified.Retryable() {
			logKind = domain.KindMaxRetriesExceeded
			logMessage = fmt.Sprintf("max retries exceeded: %s", classified.Message)
		}
		e.writeRequestLog(req, target.ID(), chatReq.Model, domain.NewDispatchError(logKind, logMessage), attempt)

		if willRetry {
			e.sleep(ctx, backoffFor(classified, attempt, settings))
			continue
		}

		return domain.NewDispatchErrorWithCause(logKind, logMessage, classified)
	}
}

// errStreamingStarted is a sentinel wrapped error signalling that response
// bytes have already been written to the client, so the outer retry loop
// must stop instead of attempting another target.
var errStreamingStarted = errors.New("streaming response already started")

func (e *DispatchEngineImpl) recordSuccess(targetID string) {
	if e.metrics != nil {
		e.metrics.RecordSuccess(targetID)
	}
}

func (e *DispatchEngineImpl) recordError(targetID, errorKind string) {
	if e.metrics != nil {
		e.metrics.RecordError(targetID, errorKind)
	}
}

func (e *DispatchEngineImpl) classifyAcquireError(err error) *domain.DispatchError {
	if errors.Is(err, usecase.ErrNoTargetsAvailable) {
		return domain.NewDispatchError(domain.KindNoTargetsAvailable, "no eligible targets available")
	}
	return domain.NewDispatchErrorWithCause(domain.KindUnknownUpstream, "failed to acquire a target", err)
}

// backoffFor implements §4.3's retry policy: failoverDelaySeconds on a
// rate-limit classification, otherwise 500ms linear back-off.
func backoffFor(classified *domain.DispatchError, attempt int, settings *entity.Settings) time.Duration {
	if classified.Kind == domain.KindRateLimit {
		return time.Duration(settings.FailoverDelaySeconds) * time.Second
	}
	return time.Duration(attempt) * 500 * time.Millisecond
}

// dispatchUnary performs the Called→Succeeded/Failed transition for a
// non-streaming request.
func (e *DispatchEngineImpl) dispatchUnary(ctx context.Context, w http.ResponseWriter, req usecase.DispatchRequest, target *entity.Target, model string, vertexReq protocol.VertexGenerateContentRequest) error {
	resp, err := e.vertex.GenerateContent(ctx, target, model, vertexReq)
	if err != nil {
		return err
	}

	id := newChatCompletionID()
	created := e.now().Unix()
	openAIResp, err := e.translator.FromVertexResponse(*resp, id, created, model)
	if err != nil {
		return domain.NewDispatchErrorWithCause(domain.KindUpstreamResponse, "failed to translate upstream response", err)
	}

	if err := e.targets.MarkSuccess(target); err != nil {
		e.logger.Error(ctx, "failed to persist target success state", domain.NewField("targetId", target.ID()), domain.NewField("error", err.Error()))
	}
	e.recordSuccess(target.ID())

	record := &entity.RequestLog{
		ID:             newChatCompletionID(),
		RequestID:      req.RequestID,
		TargetID:       target.ID(),
		Timestamp:      e.now(),
		RequestedModel: model,
		ModelUsed:      model,
		IsStreaming:    false,
		StatusCode:     http.StatusOK,
		ResponseTimeMs: e.now().Sub(req.StartTime).Milliseconds(),
		IPAddress:      req.IPAddress,
	}
	record.PromptTokens = openAIResp.Usage.PromptTokens
	record.CompletionTokens = openAIResp.Usage.CompletionTokens
	record.TotalTokens = openAIResp.Usage.TotalTokens
	e.appendRequestLog(record)

	body, err := json.Marshal(openAIResp)
	if err != nil {
		return domain.NewDispatchErrorWithCause(domain.KindUpstreamResponse, "failed to marshal response", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return nil
}

// dispatchStreaming performs the Called→Streamed transition. Once the
// upstream accepts the call and the SSE response begins, failures are
// reported in-band (wrapped in errStreamingStarted so the caller does not
// retry) rather than surfaced to the retry loop.
func (e *DispatchEngineImpl) dispatchStreaming(ctx context.Context, w http.ResponseWriter, req usecase.DispatchRequest, target *entity.Target, model string, vertexReq protocol.VertexGenerateContentRequest) error {
	events, err := e.vertex.StreamGenerateContent(ctx, target, model, vertexReq)
	if err != nil {
		return err
	}

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	if err := e.targets.MarkSuccess(target); err != nil {
		e.logger.Error(ctx, "failed to persist target success state", domain.NewField("targetId", target.ID()), domain.NewField("error", err.Error()))
	}
	e.recordSuccess(target.ID())

	id := newChatCompletionID()
	created := e.now().Unix()
	record := &entity.RequestLog{
		ID:             newChatCompletionID(),
		RequestID:      req.RequestID,
		TargetID:       target.ID(),
		Timestamp:      e.now(),
		RequestedModel: model,
		ModelUsed:      model,
		IsStreaming:    true,
		StatusCode:     http.StatusOK,
		ResponseTimeMs: e.now().Sub(req.StartTime).Milliseconds(),
		IPAddress:      req.IPAddress,
	}
	e.appendRequestLog(record)

	isFirst := true
	for ev := range events {
		if ev.Err != nil {
			e.writeSSEChunk(w, flusher, translatorStreamErrorChunk(ev.Err.Error()))
			e.writeSSEDone(w, flusher)
			e.logger.Error(ctx, "stream failed after response started",
				domain.NewField("requestId", req.RequestID),
				domain.NewField("targetId", target.ID()),
				domain.NewField("error", ev.Err.Error()))
			return fmt.Errorf("%w: %v", errStreamingStarted, ev.Err)
		}

		chunks, err := e.translator.FromVertexChunk(*ev.Chunk, id, created, model, isFirst)
		if err != nil {
			e.writeSSEChunk(w, flusher, translatorStreamErrorChunk(err.Error()))
			e.writeSSEDone(w, flusher)
			return fmt.Errorf("%w: %v", errStreamingStarted, err)
		}
		isFirst = false
		for _, chunk := range chunks {
			e.writeSSEChunk(w, flusher, chunk)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", errStreamingStarted, ctx.Err())
		default:
		}
	}

	e.writeSSEDone(w, flusher)
	return nil
}

func (e *DispatchEngineImpl) writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, chunk protocol.OpenAIChatChunk) {
	body, err := json.Marshal(chunk)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", body)
	if flusher != nil {
		flusher.Flush()
	}
}

func (e *DispatchEngineImpl) writeSSEDone(w http.ResponseWriter, flusher http.Flusher) {
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

func (e *DispatchEngineImpl) writeRequestLog(req usecase.DispatchRequest, targetID, model string, de *domain.DispatchError, attempt int) {
	record := &entity.RequestLog{
		ID:             newChatCompletionID(),
		RequestID:      req.RequestID,
		TargetID:       targetID,
		Timestamp:      e.now(),
		RequestedModel: model,
		ModelUsed:      model,
		IsStreaming:    false,
		StatusCode:     de.HTTPStatus(),
		IsError:        true,
		ErrorType:      string(de.Kind),
		ErrorMessage:   de.Message,
		ResponseTimeMs: e.now().Sub(req.StartTime).Milliseconds(),
		IPAddress:      req.IPAddress,
	}
	e.appendRequestLog(record)
}

func (e *DispatchEngineImpl) appendRequestLog(record *entity.RequestLog) {
	if e.requestLogs == nil {
		return
	}
	if err := e.requestLogs.Append(record); err != nil {
		e.logger.Error(context.Background(), "failed to append request log",
			domain.NewField("requestId", record.RequestID), domain.NewField("error", err.Error()))
	}
}
