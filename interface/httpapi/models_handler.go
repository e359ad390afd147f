package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/ca-srg/tosage/domain"
	"github.com/ca-srg/tosage/domain/protocol"
	"github.com/ca-srg/tosage/interface/presenter"
	usecase "github.com/ca-srg/tosage/usecase/interface"
)

// ModelsHandler serves GET /v1/models.
type ModelsHandler struct {
	targets      usecase.TargetManagerService
	masterBearer string
}

// NewModelsHandler wires the models-listing endpoint.
func NewModelsHandler(targets usecase.TargetManagerService, masterBearer string) *ModelsHandler {
	return &ModelsHandler{targets: targets, masterBearer: masterBearer}
}

func (h *ModelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !authorized(r, h.masterBearer) {
		presenter.WriteUnauthorized(w)
		return
	}

	active, err := h.targets.ListActive()
	if err != nil {
		presenter.WriteError(w, domain.NewDispatchErrorWithCause(domain.KindUnknownUpstream, "failed to list targets", err))
		return
	}
	if len(active) == 0 {
		presenter.WriteError(w, domain.NewDispatchError(domain.KindNoTargetsAvailable, "no eligible targets available"))
		return
	}

	resp := protocol.OpenAIModelsResponse{Object: "list"}
	for _, target := range active {
		resp.Data = append(resp.Data, protocol.OpenAIModel{
			ID:      target.DisplayName(),
			Object:  "model",
			OwnedBy: "vertex-ai",
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
