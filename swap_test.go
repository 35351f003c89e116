package hxpage

import (
	"context"
	"net/http"
	"testing"
)

func TestResponseHTMXHeaders(t *testing.T) {
	tests := []struct {
		name   string
		resp   Response
		header string
		want   string
	}{
		{"swap", Nothing().Swap(SwapInner), "HX-Reswap", "innerHTML"},
		{"retarget slot", Nothing().Retarget("main"), "HX-Retarget", "#main"},
		{"retarget selector", Nothing().Retarget(".sidebar"), "HX-Retarget", ".sidebar"},
		{"trigger", Nothing().Trigger("saved"), "HX-Trigger", "saved"},
		{"trigger accumulates", Nothing().Trigger("saved").Trigger("refresh", "toast"), "HX-Trigger", "saved, refresh, toast"},
		{"push url", Page("page").PushURL("/articles/1"), "HX-Push-Url", "/articles/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.GetHeaders()[tt.header]; got != tt.want {
				t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestTriggerWithoutEvents(t *testing.T) {
	r := Nothing().Trigger()
	if _, ok := r.GetHeaders()["HX-Trigger"]; ok {
		t.Error("Trigger() with no events set a header")
	}
}

func TestHTMXHeadersWritten(t *testing.T) {
	p := NewPipeline(NewRegistry(), DefaultConfig())
	p.Handle("POST /save", func(ctx context.Context, env Env) (Response, error) {
		return Nothing().Swap(SwapNone).Trigger("saved"), nil
	})

	result := TestRequest(p, http.MethodPost, "/save", map[string]string{"HX-Request": "true"})
	if !result.IsOK() {
		t.Fatalf("status = %d", result.StatusCode)
	}
	if !result.HasHeader("HX-Reswap", "none") || !result.HasHeader("HX-Trigger", "saved") {
		t.Errorf("headers = %v", result.Headers)
	}
}
