package hxpage

import (
	"net/http"
	"strings"

	"github.com/a-h/templ"
)

// Render writes a templ component to the HTTP response.
//
// Use this for routes that sit next to the pipeline and render a component
// directly:
//
//	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
//	    hxpage.Render(w, r, healthView())
//	})
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// IsHTMX returns true if the request originated from HTMX (HX-Request: true).
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// IsBoosted returns true if the request is a boosted navigation (hx-boost).
// Boosted requests swap the whole body, so they always get the full page.
func IsBoosted(r *http.Request) bool {
	return r.Header.Get("HX-Boosted") == "true"
}

// TargetID returns the id of the element that will receive the response
// (hx-target), without a leading '#'. Empty if not present.
func TargetID(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("HX-Target"), "#")
}

// PartialSlot returns the layout slot an HTMX request asks for, or "" when
// the full page should be rendered.
func PartialSlot(r *http.Request) string {
	if !IsHTMX(r) || IsBoosted(r) {
		return ""
	}
	return TargetID(r)
}
