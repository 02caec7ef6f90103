package respond

import (
	"encoding/json"
	"log/slog"
	"net/http"

	apperrors "bookswap/pkg/errors"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "err", err)
		}
	}
}

// Error writes a JSON error response with the status derived from the error's code.
func Error(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatus(err)
	body := map[string]string{
		"error": err.Error(),
		"code":  string(apperrors.CodeOf(err)),
	}
	if status == http.StatusInternalServerError {
		// Don't leak internals to the caller.
		body["error"] = "internal error"
		slog.Error("request failed", "err", err)
	}
	JSON(w, status, body)
}

// BadRequest writes a plain 400 with the given message.
func BadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, map[string]string{
		"error": message,
		"code":  string(apperrors.CodeInvalidArgument),
	})
}

// Decode decodes a JSON request body into the given target.
func Decode(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}
