// Package problem writes RFC 7807 problem documents.
package problem

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	contentType = "application/problem+json"
	baseTypeURL = "https://errors.wallet-ledger.dev/"
	traceHeader = "X-Trace-ID"
)

// Details is the RFC 7807 body. RequestID carries the trace id so a client
// report can be matched to server logs.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Type expands a slug such as "wallet/insufficient-funds" to a type URI.
// Absolute URIs and about:blank pass through.
func Type(slug string) string {
	if slug == "" || slug == "about:blank" || strings.Contains(slug, "://") {
		return slug
	}
	return baseTypeURL + strings.TrimPrefix(slug, "/")
}

// Write sends the problem with status. An empty title defaults to the status text.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	d := Details{
		Type:      problemType,
		Title:     title,
		Status:    status,
		Detail:    detail,
		RequestID: w.Header().Get(traceHeader),
	}
	if d.Type == "" {
		d.Type = "about:blank"
	}
	if d.Title == "" {
		d.Title = http.StatusText(status)
	}
	if r != nil {
		d.Instance = r.URL.Path
		if d.RequestID == "" {
			d.RequestID = r.Header.Get(traceHeader)
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(d)
}
