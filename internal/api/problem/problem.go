package problem

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	ContentType = "application/problem+json"
	// TraceHeader carries the request trace id; it doubles as request_id in problem documents.
	TraceHeader = "X-Trace-ID"
	baseTypeURL = "https://errors.concert-ticketing.dev/"
)

// Details represents RFC 7807 Problem Details.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	RequestID string `json:"request_id"`
}

// Type expands a slug such as "concerts/not-found" into an absolute problem type URI.
// Values that are already absolute, or about:blank, are returned unchanged.
func Type(slug string) string {
	if slug == "" || slug == "about:blank" || strings.HasPrefix(slug, "http") {
		return slug
	}
	return baseTypeURL + strings.TrimPrefix(slug, "/")
}

// New builds a problem document for the request.
func New(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) Details {
	if title == "" {
		title = http.StatusText(status)
	}
	if problemType == "" {
		problemType = "about:blank"
	}
	d := Details{
		Type:   problemType,
		Title:  title,
		Status: status,
		Detail: detail,
	}
	if r != nil {
		d.Instance = r.URL.Path
		d.RequestID = r.Header.Get(TraceHeader)
	}
	if d.RequestID == "" && w != nil {
		d.RequestID = w.Header().Get(TraceHeader)
	}
	return d
}

// Write sends RFC 7807-compliant errors.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	WriteDocument(w, status, New(w, r, status, problemType, title, detail))
}

// WriteDocument sends any problem document, including ones extended with extra members.
func WriteDocument(w http.ResponseWriter, status int, doc any) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(doc)
}
