// Package httpapi exposes the C6 Dispatch Engine over HTTP (§6.4).
package httpapi

import (
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ca-srg/tosage/domain"
	"github.com/ca-srg/tosage/interface/presenter"
	usecase "github.com/ca-srg/tosage/usecase/interface"
)

// ChatHandler serves POST /v1/chat/completions.
type ChatHandler struct {
	dispatch     usecase.DispatchService
	masterBearer string
	logger       domain.Logger
}

// NewChatHandler wires the chat-completions endpoint. masterBearer is the
// configured master credential; an empty value disables bearer
// authentication entirely, per §6.4's "when configured".
func NewChatHandler(dispatch usecase.DispatchService, masterBearer string, logger domain.Logger) *ChatHandler {
	return &ChatHandler{dispatch: dispatch, masterBearer: masterBearer, logger: logger}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !authorized(r, h.masterBearer) {
		presenter.WriteUnauthorized(w)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil {
		presenter.WriteError(w, domain.NewDispatchErrorWithCause(domain.KindInvalidRequest, "failed to read request body", err))
		return
	}

	req := usecase.DispatchRequest{
		Body:      body,
		RequestID: uuid.NewString(),
		IPAddress: clientIP(r),
		StartTime: time.Now(),
	}

	if err := h.dispatch.Dispatch(r.Context(), w, req); err != nil {
		de := domain.AsDispatchError(err)
		h.logger.Error(r.Context(), "dispatch failed", domain.NewField("requestId", req.RequestID), domain.NewField("kind", string(de.Kind)))
		presenter.WriteError(w, de)
	}
}

// authorized implements §6.4's bearer check: disabled when masterBearer is
// empty, otherwise an exact match against "Authorization: Bearer <value>".
func authorized(r *http.Request, masterBearer string) bool {
	if masterBearer == "" {
		return true
	}
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	return len(header) > len(prefix) && header[:len(prefix)] == prefix && header[len(prefix):] == masterBearer
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
