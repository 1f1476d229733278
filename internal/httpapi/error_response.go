package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"jama-reports/internal/cache"
	"jama-reports/internal/report"
	"jama-reports/internal/snapshot"
	"jama-reports/internal/testrun"
)

// ErrorBody wraps the error object of a failed request.
type ErrorBody struct {
	Error ErrorItem `json:"error"`
}

type ErrorItem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// badRequest marks errors caused by invalid query parameters.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

// WriteError maps domain errors to HTTP statuses and a JSON body.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL"

	var br badRequest
	switch {
	case errors.As(err, &br), errors.Is(err, testrun.ErrUnknownStatus):
		status, code = http.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, report.ErrUnknownTestPlan):
		status, code = http.StatusNotFound, "UNKNOWN_TESTPLAN"
	case errors.Is(err, snapshot.ErrNoSnapshot):
		status, code = http.StatusNotFound, "NO_SNAPSHOT"
	case errors.Is(err, cache.ErrFetchFailed):
		status, code = http.StatusBadGateway, "FETCH_FAILED"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: ErrorItem{Code: code, Message: err.Error()}})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = encode(w, v)
}

func encode(w http.ResponseWriter, v any) error {
	return json.NewEncoder(w).Encode(v)
}
