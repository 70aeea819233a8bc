package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "esupervision/pkg/domain-errors"
)

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondError maps the error taxonomy onto HTTP statuses: not-found → 404,
// invalid-state and validation → 400, upstream → 502, anything else → 500.
func respondError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case dErrors.CodeNotFound:
		status = http.StatusNotFound
	case dErrors.CodeInvalidState, dErrors.CodeValidation:
		status = http.StatusBadRequest
	case dErrors.CodeUpstream:
		status = http.StatusBadGateway
	}

	message := "internal error"
	var de *dErrors.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	respond(w, status, map[string]string{
		"error":   string(code),
		"message": message,
	})
}
