package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/AnshRaj112/buildlog-backend/internal/apperr"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// envelope is the JSON body of every API response. writeOK and writeError
// fill in "success".
type envelope map[string]interface{}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Msg("write response")
	}
}

func writeOK(w http.ResponseWriter, status int, body envelope) {
	if body == nil {
		body = envelope{}
	}
	body["success"] = true
	writeJSON(w, status, body)
}

// writeError maps err to its status and the {success:false, message} envelope.
// Errors that are not *apperr.Error are reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Internal("Server error", err)
	}
	status := apperr.StatusOf(ae)

	if status >= http.StatusInternalServerError {
		log.Error().
			Err(ae.Cause).
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg(ae.Message)
	}

	body := envelope{}
	for k, v := range ae.Fields {
		body[k] = v
	}
	body["success"] = false
	body["message"] = ae.Message
	writeJSON(w, status, body)
}
