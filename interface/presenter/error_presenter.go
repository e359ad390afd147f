// Package presenter renders domain results onto the wire — HTTP responses
// here, mirroring how the teacher's presenter package renders usecase
// results onto stdout/stderr.
package presenter

import (
	"encoding/json"
	"net/http"

	"github.com/ca-srg/tosage/domain"
	"github.com/ca-srg/tosage/domain/protocol"
)

// WriteError renders de as the §7 error envelope with its classified HTTP
// status, the way JSONPresenterImpl.PrintError renders a CLI error as a
// single JSON object.
func WriteError(w http.ResponseWriter, de *domain.DispatchError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(de.HTTPStatus())
	_ = json.NewEncoder(w).Encode(protocol.ErrorEnvelope{
		Error: protocol.ErrorBody{
			Message: de.Message,
			Type:    string(de.Kind),
		},
	})
}

// WriteUnauthorized renders the fixed 401 body §6.4 requires for a
// mismatched or missing master bearer token.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(protocol.ErrorEnvelope{
		Error: protocol.ErrorBody{Message: "Unauthorized", Type: "authentication_error"},
	})
}
