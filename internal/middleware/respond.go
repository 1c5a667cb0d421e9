package middleware

import (
	"encoding/json"
	"net/http"

	"civic-reporting-api/internal/apperr"
	"civic-reporting-api/internal/models"
)

func writeError(w http.ResponseWriter, err *apperr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.Status(err.Kind))
	_ = json.NewEncoder(w).Encode(models.Response{
		Success: false,
		Error:   err.Message,
		Code:    string(err.Kind),
	})
}
