// Package response writes JSON and RFC 7807 problem responses.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

const problemContentType = "application/problem+json"

// ErrorDetail locates one invalid input field.
type ErrorDetail struct {
	Location string `json:"location,omitempty"`
	Message  string `json:"message,omitempty"`
	Value    any    `json:"value,omitempty"`
}

// ProblemDetails is an RFC 7807 body. Type defaults to about:blank.
type ProblemDetails struct {
	Type     string        `json:"type,omitempty"`
	Title    string        `json:"title"`
	Status   int           `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Instance string        `json:"instance,omitempty"`
	Errors   []ErrorDetail `json:"errors,omitempty"`
}

// WriteProblem writes p with its own status code.
func WriteProblem(w http.ResponseWriter, p ProblemDetails) {
	if p.Type == "" {
		p.Type = "about:blank"
	}

	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}

	write(w, p.Status, problemContentType, p)
}

// RespondError writes a problem with an explicit title.
func RespondError(w http.ResponseWriter, statusCode int, title, detail string) {
	WriteProblem(w, ProblemDetails{Title: title, Status: statusCode, Detail: detail})
}

func RespondBadRequest(w http.ResponseWriter, detail string) {
	WriteProblem(w, ProblemDetails{Status: http.StatusBadRequest, Detail: detail})
}

func RespondUnauthorized(w http.ResponseWriter, detail string) {
	WriteProblem(w, ProblemDetails{Status: http.StatusUnauthorized, Detail: detail})
}

func RespondNotFound(w http.ResponseWriter, detail string) {
	WriteProblem(w, ProblemDetails{Status: http.StatusNotFound, Detail: detail})
}

func RespondInternalServerError(w http.ResponseWriter, detail string) {
	WriteProblem(w, ProblemDetails{Status: http.StatusInternalServerError, Detail: detail})
}

// RespondServiceUnavailable is used when an optional subsystem (the job queue) is switched off.
func RespondServiceUnavailable(w http.ResponseWriter, detail string) {
	WriteProblem(w, ProblemDetails{Status: http.StatusServiceUnavailable, Detail: detail})
}

// RespondJSON writes data as the whole body, unwrapped.
func RespondJSON(w http.ResponseWriter, statusCode int, data any) {
	write(w, statusCode, "application/json", data)
}

func write(w http.ResponseWriter, status int, contentType string, body any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "status", status, "error", err)
	}
}
