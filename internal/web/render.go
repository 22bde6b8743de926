package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/netgrid-io/netgrid/internal/errs"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeDomainError maps domain error categories onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrMetadataNotFound),
		errors.Is(err, errs.ErrApplicationNotFound),
		errors.Is(err, errs.ErrObjectNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrNotPermitted),
		errors.Is(err, errs.ErrBusinessRule):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrNotAuthorized):
		status = http.StatusUnauthorized
	}
	writeError(w, status, err.Error())
}
