package api

import (
	"encoding/json"
	"net/http"

	"github.com/jonwraymond/notegate/admission"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the shared error body with an explicit status code,
// for statuses the admission categories do not carry.
func writeError(w http.ResponseWriter, code int, category admission.Category, detail string) {
	writeJSON(w, code, admission.ErrorBody{Detail: detail, Category: category})
}
