package hxpage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
)

// TestResult holds the output of a widget or pipeline run for testing.
//
// Provides convenience methods for asserting on HTML content, headers,
// status codes, child widgets and widget failures.
type TestResult struct {
	HTML       string
	StatusCode int
	Headers    http.Header

	// Children lists the child widgets a rendered widget declared.
	Children []ChildRef

	// Failures lists node-local widget failures of a pipeline run.
	Failures []*WidgetError
}

// TestRender fetches and renders a single widget with env.
//
// Use this for unit tests of a widget's fetch and view when you don't need
// the scheduler. Children are not resolved: their insertion points are
// removed from HTML and listed in Children.
//
//	result, err := hxpage.TestRender(articleWidget, hxpage.NewEnv(map[string]any{
//	    "params": map[string]string{"id": "42"},
//	}))
//	if !result.HTMLContains("Hello") {
//	    t.Fatal("missing expected content")
//	}
func TestRender(def Definition, env Env) (*TestResult, error) {
	return TestRenderWithContext(context.Background(), def, env)
}

// TestRenderWithContext renders a widget with a custom context.
//
//	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
//	defer cancel()
//	result, err := hxpage.TestRenderWithContext(ctx, def, env)
func TestRenderWithContext(ctx context.Context, def Definition, env Env) (*TestResult, error) {
	data, err := newExecutor(0).Execute(ctx, def, env)
	if err != nil {
		return nil, err
	}
	frag, err := newRenderer().Render(ctx, def, data)
	if err != nil {
		return nil, err
	}

	return &TestResult{
		HTML:       fillSlots(frag.HTML(), func(string) (string, bool) { return "", false }, nil),
		StatusCode: http.StatusOK,
		Headers:    make(http.Header),
		Children:   frag.Children(),
	}, nil
}

// TestServe runs h through the pipeline with env, bypassing HTTP.
//
//	result, err := hxpage.TestServe(p, showArticle, env)
//	if len(result.Failures) > 0 {
//	    t.Fatalf("widget failures: %v", result.Failures)
//	}
func TestServe(p *Pipeline, h Handler, env Env) (*TestResult, error) {
	out, err := p.Serve(context.Background(), env, h)
	if err != nil {
		return nil, err
	}

	result := &TestResult{
		HTML:       string(out.Body),
		StatusCode: out.Status,
		Headers:    out.Header.Clone(),
	}
	if out.ContentType != "" {
		result.Headers.Set("Content-Type", out.ContentType)
	}
	if out.Tree != nil {
		result.Failures = out.Tree.Failures()
	}
	return result, nil
}

// TestRequest sends a request to the pipeline's routes.
//
// Set HX-Request and HX-Target in headers to exercise partial rendering:
//
//	result := hxpage.TestRequest(p, http.MethodGet, "/articles/42", map[string]string{
//	    "HX-Request": "true",
//	    "HX-Target":  "main",
//	})
func TestRequest(p *Pipeline, method, url string, headers map[string]string) *TestResult {
	req := httptest.NewRequest(method, url, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, req)

	return &TestResult{
		HTML:       rec.Body.String(),
		StatusCode: rec.Code,
		Headers:    rec.Header(),
	}
}

// HTMLContains checks if the HTML contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the HTML contains all the given substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HasChild checks if a child widget was declared in slot.
func (r *TestResult) HasChild(slot, widget string) bool {
	for _, c := range r.Children {
		if c.Slot == slot && c.Widget == widget {
			return true
		}
	}
	return false
}

// HasFailure checks if the named widget failed.
func (r *TestResult) HasFailure(widget string) bool {
	for _, f := range r.Failures {
		if f.Widget == widget {
			return true
		}
	}
	return false
}

// IsOK checks if the status code is 200.
func (r *TestResult) IsOK() bool {
	return r.StatusCode == http.StatusOK
}

// HasStatus checks if the status code matches.
func (r *TestResult) HasStatus(code int) bool {
	return r.StatusCode == code
}

// HasHeader checks if a header is set with the given value.
func (r *TestResult) HasHeader(key, value string) bool {
	return r.Headers.Get(key) == value
}

// GetHeader returns the value of a header.
func (r *TestResult) GetHeader(key string) string {
	return r.Headers.Get(key)
}
