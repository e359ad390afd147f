// Package translator implements the Protocol Translator (C5): stateless
// conversion between the OpenAI chat-completions wire shapes and Vertex
// AI's generateContent shapes.
package translator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ca-srg/tosage/domain"
	usecase "github.com/ca-srg/tosage/usecase/interface"
)

var _ usecase.TranslatorService = (*Service)(nil)

// Service implements usecase.TranslatorService. It is stateless and safe
// for concurrent use; warnings produced during a single call are returned
// to the caller, so the Dispatch Engine can attach them to the right
// requestId, and are also logged here when a logger is set.
type Service struct {
	logger domain.Logger
}

// NewService constructs a translator. A non-nil logger receives every
// translation warning as a best-effort diagnostic; a nil logger disables
// that logging. Translation never fails because of a logging error.
func NewService(logger domain.Logger) *Service {
	return &Service{logger: logger}
}

func (s *Service) logWarnings(warnings []string) {
	if s.logger == nil {
		return
	}
	ctx := context.Background()
	for _, w := range warnings {
		s.logger.Warn(ctx, "translation warning", domain.NewField("detail", w))
	}
}

// NewChatCompletionID mints the "chatcmpl-<uuid>" identifier used to stamp
// both unary responses and every frame of a streaming response (§4.2.2,
// §4.2.3).
func NewChatCompletionID() string {
	return fmt.Sprintf("chatcmpl-%s", uuid.NewString())
}
