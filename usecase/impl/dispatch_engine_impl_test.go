package impl

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ca-srg/tosage/domain"
	"github.com/ca-srg/tosage/domain/entity"
	"github.com/ca-srg/tosage/domain/protocol"
	"github.com/ca-srg/tosage/domain/repository"
	usecase "github.com/ca-srg/tosage/usecase/interface"
)

// fakeTranslator is a minimal stand-in for infrastructure/translator.Service
// so these tests stay within the usecase layer. It implements just enough
// of the OpenAI<->Vertex mapping to exercise the dispatch state machine.
type fakeTranslator struct{}

func (fakeTranslator) ToVertexRequest(req protocol.OpenAIChatRequest) (*protocol.VertexGenerateContentRequest, []string, error) {
	return &protocol.VertexGenerateContentRequest{}, nil, nil
}

func (fakeTranslator) FromVertexResponse(resp protocol.VertexGenerateContentResponse, id string, created int64, model string) (*protocol.OpenAIChatResponse, error) {
	var text strings.Builder
	if len(resp.Candidates) > 0 {
		for _, p := range resp.Candidates[0].Content.Parts {
			text.WriteString(p.Text)
		}
	}
	content := text.String()
	finish := "stop"
	return &protocol.OpenAIChatResponse{
		ID: id, Object: "chat.completion", Created: created, Model: model,
		Choices: []protocol.OpenAIChoice{{
			Index:        0,
			Message:      protocol.OpenAIChatMessage{Role: "assistant", Content: &content},
			FinishReason: &finish,
		}},
		Usage: protocol.OpenAIUsage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
	}, nil
}

func (fakeTranslator) FromVertexChunk(chunk protocol.VertexGenerateContentResponse, id string, created int64, model string, isFirst bool) ([]protocol.OpenAIChatChunk, error) {
	var out []protocol.OpenAIChatChunk
	var text strings.Builder
	var finishReason string
	if len(chunk.Candidates) > 0 {
		for _, p := range chunk.Candidates[0].Content.Parts {
			text.WriteString(p.Text)
		}
		finishReason = chunk.Candidates[0].FinishReason
	}
	if text.Len() > 0 {
		delta := protocol.OpenAIChunkDelta{Content: text.String()}
		if isFirst {
			delta.Role = "assistant"
		}
		out = append(out, protocol.OpenAIChatChunk{
			ID: id, Object: "chat.completion.chunk", Created: created, Model: model,
			Choices: []protocol.OpenAIChunkChoice{{Index: 0, Delta: delta}},
		})
	}
	if finishReason != "" {
		mapped := "stop"
		final := protocol.OpenAIChatChunk{
			ID: id, Object: "chat.completion.chunk", Created: created, Model: model,
			Choices: []protocol.OpenAIChunkChoice{{Index: 0, Delta: protocol.OpenAIChunkDelta{}, FinishReason: &mapped}},
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

var _ usecase.TranslatorService = fakeTranslator{}

// fakeVertexRepo lets each test script the upstream outcome per call.
type fakeVertexRepo struct {
	generate func(target *entity.Target) (*protocol.VertexGenerateContentResponse, error)
	stream   func(target *entity.Target) (<-chan repository.StreamEvent, error)
}

func (f *fakeVertexRepo) GenerateContent(ctx context.Context, target *entity.Target, model string, req protocol.VertexGenerateContentRequest) (*protocol.VertexGenerateContentResponse, error) {
	return f.generate(target)
}

func (f *fakeVertexRepo) StreamGenerateContent(ctx context.Context, target *entity.Target, model string, req protocol.VertexGenerateContentRequest) (<-chan repository.StreamEvent, error) {
	return f.stream(target)
}

var _ repository.VertexGenerativeRepository = (*fakeVertexRepo)(nil)

// fakeRequestLogRepo records every Append call for assertions.
type fakeRequestLogRepo struct {
	mu      sync.Mutex
	records []*entity.RequestLog
}

func (f *fakeRequestLogRepo) Append(r *entity.RequestLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, r)
	return nil
}

func (f *fakeRequestLogRepo) all() []*entity.RequestLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entity.RequestLog, len(f.records))
	copy(out, f.records)
	return out
}

func newTestEngine(t *testing.T, vertex *fakeVertexRepo, settings *entity.Settings, targets ...*entity.Target) (*DispatchEngineImpl, *mockTargetRepository, *fakeRequestLogRepo) {
	t.Helper()
	mgr, repo := newTestManager(t, settings, targets...)
	logs := &fakeRequestLogRepo{}
	settingsRepo := &mockSettingsRepository{settings: settings}
	if settings == nil {
		settingsRepo.settings = entity.DefaultSettings()
	}
	engine := NewDispatchEngineService(mgr, fakeTranslator{}, vertex, logs, settingsRepo, &mockLogger{}, nil)
	engine.sleep = func(ctx context.Context, d time.Duration) {} // no-op so retry tests run instantly
	return engine, repo, logs
}

func textResponse(text, finishReason string) *protocol.VertexGenerateContentResponse {
	return &protocol.VertexGenerateContentResponse{
		Candidates: []protocol.VertexCandidate{{
			Content:      protocol.VertexContent{Role: "model", Parts: []protocol.VertexPart{{Text: text}}},
			FinishReason: finishReason,
		}},
		UsageMetadata: &protocol.VertexUsageMetadata{PromptTokenCount: 1, CandidatesTokenCount: 1, TotalTokenCount: 2},
	}
}

func TestDispatchEngineImpl_Dispatch_UnarySuccess(t *testing.T) {
	tg := mustTarget(t, "a", "p1", nil)
	vertex := &fakeVertexRepo{
		generate: func(target *entity.Target) (*protocol.VertexGenerateContentResponse, error) {
			return textResponse("ok", "STOP"), nil
		},
	}
	engine, repo, logs := newTestEngine(t, vertex, nil, tg)
	metrics := &fakeMetricsRecorder{}
	engine.metrics = metrics

	body, _ := json.Marshal(protocol.OpenAIChatRequest{Model: "gemini-pro", Messages: []protocol.OpenAIMessage{{Role: "user", Content: json.RawMessage(`"hi"`)}}})
	w := httptest.NewRecorder()
	err := engine.Dispatch(context.Background(), w, usecase.DispatchRequest{Body: body, RequestID: "r1", StartTime: time.Now()})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"content":"ok"`) {
		t.Fatalf("expected body to contain translated content, got %s", w.Body.String())
	}
	if repo.targets["a"].RequestCount() != 1 {
		t.Fatalf("expected target requestCount incremented")
	}
	found := false
	for _, r := range logs.all() {
		if r.TargetID == "a" && r.StatusCode == 200 && !r.IsError {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a success RequestLog for target a, got %+v", logs.all())
	}
	if metrics.successes["a"] != 1 {
		t.Fatalf("expected one recorded success for target a, got %+v", metrics.successes)
	}
	if metrics.durations != 1 {
		t.Fatalf("expected one recorded duration observation, got %d", metrics.durations)
	}
}

type fakeMetricsRecorder struct {
	successes map[string]int
	errors    map[string]int
	durations int
}

func (f *fakeMetricsRecorder) RecordSuccess(targetID string) {
	if f.successes == nil {
		f.successes = map[string]int{}
	}
	f.successes[targetID]++
}

func (f *fakeMetricsRecorder) RecordError(targetID, errorKind string) {
	if f.errors == nil {
		f.errors = map[string]int{}
	}
	f.errors[targetID+":"+errorKind]++
}

func (f *fakeMetricsRecorder) ObserveDuration(streaming bool, d time.Duration) {
	f.durations++
}

func (f *fakeMetricsRecorder) InFlight(delta int) {}

func TestDispatchEngineImpl_Dispatch_RateLimitFailover(t *testing.T) {
	a := mustTarget(t, "a", "p1", nil)
	b := mustTarget(t, "b", "p2", nil)
	b.MarkSuccess(time.Now().Add(-time.Minute)) // so a (unused) is chosen first

	attempt := 0
	vertex := &fakeVertexRepo{
		generate: func(target *entity.Target) (*protocol.VertexGenerateContentResponse, error) {
			attempt++
			if target.ID() == "a" {
				return nil, domain.NewDispatchError(domain.KindRateLimit, "quota exceeded")
			}
			return textResponse("ok", "STOP"), nil
		},
	}
	settings := entity.DefaultSettings()
	settings.MaxRetries = 3
	engine, _, logs := newTestEngine(t, vertex, settings, a, b)

	body, _ := json.Marshal(protocol.OpenAIChatRequest{Model: "gemini-pro", Messages: []protocol.OpenAIMessage{{Role: "user", Content: json.RawMessage(`"hi"`)}}})
	w := httptest.NewRecorder()
	err := engine.Dispatch(context.Background(), w, usecase.DispatchRequest{Body: body, RequestID: "r2", StartTime: time.Now()})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if w.Code != 200 {
		t.Fatalf("expected eventual 200, got %d", w.Code)
	}
	if attempt != 2 {
		t.Fatalf("expected exactly 2 upstream attempts, got %d", attempt)
	}
	if a.RateLimitResetAt() == nil {
		t.Fatalf("expected a's rateLimitResetAt to be set after 429")
	}

	var sawRateLimitLog, sawSuccessLog bool
	for _, r := range logs.all() {
		if r.TargetID == "a" && r.ErrorType == string(domain.KindRateLimit) {
			sawRateLimitLog = true
		}
		if r.TargetID == "b" && r.StatusCode == 200 {
			sawSuccessLog = true
		}
	}
	if !sawRateLimitLog || !sawSuccessLog {
		t.Fatalf("expected one rate-limit log for a and one success log for b, got %+v", logs.all())
	}
}

func TestDispatchEngineImpl_Dispatch_NoTargetsAvailable(t *testing.T) {
	vertex := &fakeVertexRepo{
		generate: func(target *entity.Target) (*protocol.VertexGenerateContentResponse, error) { return nil, nil },
	}
	engine, _, logs := newTestEngine(t, vertex, nil)

	body, _ := json.Marshal(protocol.OpenAIChatRequest{Model: "gemini-pro", Messages: []protocol.OpenAIMessage{{Role: "user", Content: json.RawMessage(`"hi"`)}}})
	w := httptest.NewRecorder()
	err := engine.Dispatch(context.Background(), w, usecase.DispatchRequest{Body: body, RequestID: "r3", StartTime: time.Now()})
	de := domain.AsDispatchError(err)
	if de == nil || de.Kind != domain.KindNoTargetsAvailable {
		t.Fatalf("expected KindNoTargetsAvailable, got %v", err)
	}
	if de.HTTPStatus() != 503 {
		t.Fatalf("expected 503, got %d", de.HTTPStatus())
	}
	logged := logs.all()
	if len(logged) != 1 || logged[0].TargetID != entity.TargetUnavailable {
		t.Fatalf("expected one RequestLog with sentinel targetId, got %+v", logged)
	}
}

func TestDispatchEngineImpl_Dispatch_MaxRetriesExceeded(t *testing.T) {
	tg := mustTarget(t, "a", "p1", nil)
	vertex := &fakeVertexRepo{
		generate: func(target *entity.Target) (*protocol.VertexGenerateContentResponse, error) {
			return nil, domain.NewDispatchError(domain.KindUpstreamServer, "boom")
		},
	}
	settings := entity.DefaultSettings()
	settings.MaxRetries = 2
	settings.MaxFailureCount = 1000
	engine, _, logs := newTestEngine(t, vertex, settings, tg)

	body, _ := json.Marshal(protocol.OpenAIChatRequest{Model: "gemini-pro", Messages: []protocol.OpenAIMessage{{Role: "user", Content: json.RawMessage(`"hi"`)}}})
	w := httptest.NewRecorder()
	err := engine.Dispatch(context.Background(), w, usecase.DispatchRequest{Body: body, RequestID: "r4", StartTime: time.Now()})
	de := domain.AsDispatchError(err)
	if de == nil || de.Kind != domain.KindMaxRetriesExceeded {
		t.Fatalf("expected KindMaxRetriesExceeded, got %v", err)
	}

	logged := logs.all()
	if len(logged) != 2 {
		t.Fatalf("expected 2 attempt logs (maxRetries=2), got %d: %+v", len(logged), logged)
	}
	if logged[len(logged)-1].ErrorType != string(domain.KindMaxRetriesExceeded) {
		t.Fatalf("expected the terminal log to carry MaxRetriesExceeded, got %s", logged[len(logged)-1].ErrorType)
	}
}

func TestDispatchEngineImpl_Dispatch_Streaming(t *testing.T) {
	tg := mustTarget(t, "a", "p1", nil)
	vertex := &fakeVertexRepo{
		stream: func(target *entity.Target) (<-chan repository.StreamEvent, error) {
			ch := make(chan repository.StreamEvent, 2)
			ch <- repository.StreamEvent{Chunk: textResponse("ans", "")}
			ch <- repository.StreamEvent{Chunk: textResponse("", "STOP")}
			close(ch)
			return ch, nil
		},
	}
	engine, _, _ := newTestEngine(t, vertex, nil, tg)

	body, _ := json.Marshal(protocol.OpenAIChatRequest{Model: "gemini-pro", Stream: true, Messages: []protocol.OpenAIMessage{{Role: "user", Content: json.RawMessage(`"hi"`)}}})
	w := httptest.NewRecorder()
	err := engine.Dispatch(context.Background(), w, usecase.DispatchRequest{Body: body, RequestID: "r5", StartTime: time.Now()})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	out := w.Body.String()
	if !strings.Contains(out, `"content":"ans"`) {
		t.Fatalf("expected a content delta frame, got %s", out)
	}
	if !strings.Contains(out, `"finish_reason":"stop"`) {
		t.Fatalf("expected a finish-reason frame, got %s", out)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "data: [DONE]") {
		t.Fatalf("expected stream to end with [DONE], got %s", out)
	}
}

func TestDispatchEngineImpl_Dispatch_InvalidJSON(t *testing.T) {
	engine, _, logs := newTestEngine(t, &fakeVertexRepo{}, nil)
	w := httptest.NewRecorder()
	err := engine.Dispatch(context.Background(), w, usecase.DispatchRequest{Body: []byte("not json"), RequestID: "r6", StartTime: time.Now()})
	de := domain.AsDispatchError(err)
	if de == nil || de.Kind != domain.KindInvalidRequest {
		t.Fatalf("expected KindInvalidRequest, got %v", err)
	}
	if logged := logs.all(); len(logged) != 1 || logged[0].TargetID != entity.TargetUnknown {
		t.Fatalf("expected one RequestLog with TargetUnknown sentinel, got %+v", logged)
	}
}

func TestDispatchEngineImpl_Dispatch_MissingModel(t *testing.T) {
	engine, _, _ := newTestEngine(t, &fakeVertexRepo{}, nil)
	body, _ := json.Marshal(protocol.OpenAIChatRequest{Messages: []protocol.OpenAIMessage{{Role: "user", Content: json.RawMessage(`"hi"`)}}})
	w := httptest.NewRecorder()
	err := engine.Dispatch(context.Background(), w, usecase.DispatchRequest{Body: body, RequestID: "r7", StartTime: time.Now()})
	de := domain.AsDispatchError(err)
	if de == nil || de.Kind != domain.KindInvalidRequest {
		t.Fatalf("expected KindInvalidRequest for missing model, got %v", err)
	}
}
