package hxpage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
)

// newTestPipeline registers a page layout with header/main-content/footer,
// static header and footer widgets, and the given widgets.
func newTestPipeline(t *testing.T, cfg Config, widgets ...Definition) *Pipeline {
	t.Helper()
	reg := NewRegistry()
	reg.Add(
		textWidget("site-header", func(ctx context.Context, env Env) (string, error) {
			return "<nav>site</nav>", nil
		}),
		textWidget("site-footer", func(ctx context.Context, env Env) (string, error) {
			return "<small>footer</small>", nil
		}),
	)
	reg.Add(widgets...)
	reg.AddLayout(NewLayout("page", pageTemplate("header", "main-content", "footer")).
		Default("header", "site-header").
		Default("footer", "site-footer"))
	if cfg.DefaultLayout == "" {
		cfg.DefaultLayout = "page"
	}
	return NewPipeline(reg, cfg)
}

func TestPipeline_ComposesStaticAndDynamicSlots(t *testing.T) {
	article := textWidget("article", func(ctx context.Context, env Env) (string, error) {
		return "<article>hello</article>", nil
	})
	p := newTestPipeline(t, DefaultConfig(), article)

	out, err := p.Serve(context.Background(), NewEnv(nil), func(ctx context.Context, env Env) (Response, error) {
		return Page("").Slot("main-content", UseWidget("article")), nil
	})
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	want := "<body>" +
		"<header><nav>site</nav></header>" +
		"<main-content><article>hello</article></main-content>" +
		"<footer><small>footer</small></footer>" +
		"</body>"
	if string(out.Body) != want {
		t.Errorf("Body = %q, want %q", out.Body, want)
	}
	if out.ContentType != "text/html; charset=utf-8" {
		t.Errorf("ContentType = %q", out.ContentType)
	}
	wantPhases := []Phase{PhaseIdle, PhaseDispatching, PhaseAwaitingWidgets, PhaseComposing, PhaseDone}
	if !reflect.DeepEqual(out.Phases, wantPhases) {
		t.Errorf("Phases = %v, want %v", out.Phases, wantPhases)
	}
}

func TestPipeline_HandlerSlotOverridesDefault(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig())

	out, err := p.Serve(context.Background(), NewEnv(nil), func(ctx context.Context, env Env) (Response, error) {
		return Page("page").
			Slot("header", HTMLContent("<h1>custom</h1>")).
			Slot("main-content", HTMLContent("body")), nil
	})
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	body := string(out.Body)
	if !strings.Contains(body, "<header><h1>custom</h1></header>") {
		t.Errorf("Body = %q, want custom header", body)
	}
	if strings.Contains(body, "<nav>site</nav>") {
		t.Errorf("Body = %q, default header rendered despite override", body)
	}
}

func TestPipeline_WidgetFailureDegradesPage(t *testing.T) {
	broken := textWidget("broken", func(ctx context.Context, env Env) (string, error) {
		return "", errors.New("db down")
	})
	var reported atomic.Int32
	p := newTestPipeline(t, DefaultConfig(), broken)
	p.OnWidgetError = func(ctx context.Context, err *WidgetError) { reported.Add(1) }

	out, err := p.Serve(context.Background(), NewEnv(nil), func(ctx context.Context, env Env) (Response, error) {
		return Page("").Slot("main-content", UseWidget("broken")), nil
	})
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	body := string(out.Body)
	if !strings.Contains(body, "<nav>site</nav>") || !strings.Contains(body, "hxpage-error") {
		t.Errorf("Body = %q, want header and error fragment", body)
	}
	if out.Status != http.StatusOK {
		t.Errorf("Status = %d, want 200", out.Status)
	}
	if reported.Load() != 1 {
		t.Errorf("OnWidgetError called %d times, want 1", reported.Load())
	}
	if len(out.Tree.Failures()) != 1 {
		t.Errorf("Failures() = %v", out.Tree.Failures())
	}
}

func TestPipeline_NilDefinitionFailsSlot(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig())

	out, err := p.Serve(context.Background(), NewEnv(nil), func(ctx context.Context, env Env) (Response, error) {
		return Page("").Slot("main-content", UseDefinition(nil)), nil
	})
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if !strings.Contains(string(out.Body), "hxpage-error") {
		t.Errorf("Body = %q, want error fragment", out.Body)
	}
	failures := out.Tree.Failures()
	if len(failures) != 1 || !errors.Is(failures[0], ErrUnknownWidget) {
		t.Errorf("Failures() = %v, want one ErrUnknownWidget", failures)
	}
}

func TestPipeline_JSONBypassesWidgets(t *testing.T) {
	var fetches atomic.Int32
	counted := textWidget("counted", func(ctx context.Context, env Env) (string, error) {
		fetches.Add(1)
		return "x", nil
	})
	p := newTestPipeline(t, DefaultConfig(), counted)

	value := map[string]any{
		"title": "hello <world>",
		"tags":  []string{"b", "a"},
		"count": 3,
		"meta":  map[string]any{"z": true, "a": nil},
	}
	out, err := p.Serve(context.Background(), NewEnv(nil), func(ctx context.Context, env Env) (Response, error) {
		return JSON(value).Slot("main-content", UseWidget("counted")).Layout("page"), nil
	})
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	want, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if string(out.Body) != string(want) {
		t.Errorf("Body = %s, want %s", out.Body, want)
	}
	if fetches.Load() != 0 {
		t.Errorf("widget fetched %d times in json mode", fetches.Load())
	}
	if out.Tree != nil {
		t.Error("json response has a widget tree")
	}
	if out.ContentType != "application/json" {
		t.Errorf("ContentType = %q", out.ContentType)
	}
	wantPhases := []Phase{PhaseIdle, PhaseDispatching, PhaseSerializing, PhaseDone}
	if !reflect.DeepEqual(out.Phases, wantPhases) {
		t.Errorf("Phases = %v, want %v", out.Phases, wantPhases)
	}
}

func TestPipeline_Nothing(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig())
	out, err := p.Serve(context.Background(), NewEnv(nil), func(ctx context.Context, env Env) (Response, error) {
		return Nothing().Status(http.StatusNoContent).Header("X-Done", "1"), nil
	})
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if len(out.Body) != 0 {
		t.Errorf("Body = %q, want empty", out.Body)
	}
	if out.Status != http.StatusNoContent {
		t.Errorf("Status = %d", out.Status)
	}
	if out.Header.Get("X-Done") != "1" {
		t.Errorf("X-Done = %q", out.Header.Get("X-Done"))
	}
}

func TestPipeline_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		resp    Response
		wantErr error
	}{
		{"unknown render mode", DefaultConfig(), WithMode("xml"), ErrUnknownRenderMode},
		{"zero response", DefaultConfig(), Response{}, ErrUnknownRenderMode},
		{"unknown layout", DefaultConfig(), Page("nope"), ErrUnknownLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, tt.cfg)
			_, err := p.Serve(context.Background(), NewEnv(nil), func(ctx context.Context, env Env) (Response, error) {
				return tt.resp, nil
			})
			if !IsConfigurationError(err) || !errors.Is(err, tt.wantErr) {
				t.Errorf("Serve() error = %v, want configuration error wrapping %v", err, tt.wantErr)
			}
		})
	}

	t.Run("missing layout", func(t *testing.T) {
		p := NewPipeline(NewRegistry(), DefaultConfig())
		_, err := p.Serve(context.Background(), NewEnv(nil), func(ctx context.Context, env Env) (Response, error) {
			return Page(""), nil
		})
		if !IsConfigurationError(err) || !errors.Is(err, ErrMissingLayout) {
			t.Errorf("Serve() error = %v, want ErrMissingLayout", err)
		}
	})
}

func TestPipeline_MissingSlotPolicy(t *testing.T) {
	reg := NewRegistry()
	reg.AddLayout(NewLayout("bare", pageTemplate("main-content", "sidebar")))
	cfg := DefaultConfig()
	cfg.MissingSlot = MissingSlotFail
	p := NewPipeline(reg, cfg)

	_, err := p.Serve(context.Background(), NewEnv(nil), func(ctx context.Context, env Env) (Response, error) {
		return Page("bare").Slot("main-content", HTMLContent("x")), nil
	})
	var ce *CompositionError
	if !errors.As(err, &ce) || ce.Slot != "sidebar" {
		t.Errorf("Serve() error = %v, want CompositionError for sidebar", err)
	}
}

func TestPipeline_HandlerError(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig())
	boom := errors.New("boom")
	_, err := p.Serve(context.Background(), NewEnv(nil), func(ctx context.Context, env Env) (Response, error) {
		return Response{}, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Serve() error = %v, want boom", err)
	}
}

func TestPipeline_Middleware(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig())
	var calls []string
	p.Use(recordCalls("first", &calls), recordCalls("second", &calls))

	_, err := p.Serve(context.Background(), NewEnv(nil), func(ctx context.Context, env Env) (Response, error) {
		calls = append(calls, "handler")
		return Nothing(), nil
	})
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	want := []string{"second:in", "first:in", "handler", "first:out", "second:out"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestPipeline_HTTP(t *testing.T) {
	article := textWidget("article", func(ctx context.Context, env Env) (string, error) {
		return "<article>" + env.Param("id") + "</article>", nil
	}).Inputs(EnvParams)
	p := newTestPipeline(t, DefaultConfig(), article)
	p.Handle("GET /articles/{id}", func(ctx context.Context, env Env) (Response, error) {
		return Page("").Slot("main-content", UseWidget("article")), nil
	})
	p.Handle("GET /broken", func(ctx context.Context, env Env) (Response, error) {
		return WithMode("csv"), nil
	})

	t.Run("full page", func(t *testing.T) {
		rec := httptest.NewRecorder()
		p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/articles/42", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
		}
		body := rec.Body.String()
		if !strings.Contains(body, "<article>42</article>") || !strings.Contains(body, "<nav>site</nav>") {
			t.Errorf("body = %q", body)
		}
		if rec.Header().Get("X-Request-Id") == "" {
			t.Error("missing X-Request-Id")
		}
		if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
			t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
		}
	})

	t.Run("request id is propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/articles/1", nil)
		req.Header.Set("X-Request-Id", "abc")
		rec := httptest.NewRecorder()
		p.ServeHTTP(rec, req)
		if got := rec.Header().Get("X-Request-Id"); got != "abc" {
			t.Errorf("X-Request-Id = %q, want abc", got)
		}
	})

	t.Run("htmx partial", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/articles/7", nil)
		req.Header.Set("HX-Request", "true")
		req.Header.Set("HX-Target", "main-content")
		rec := httptest.NewRecorder()
		p.ServeHTTP(rec, req)

		if got := rec.Body.String(); got != "<article>7</article>" {
			t.Errorf("body = %q, want only the main-content slot", got)
		}
	})

	t.Run("htmx unknown target renders full page", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/articles/7", nil)
		req.Header.Set("HX-Request", "true")
		req.Header.Set("HX-Target", "somewhere-else")
		rec := httptest.NewRecorder()
		p.ServeHTTP(rec, req)

		if !strings.HasPrefix(rec.Body.String(), "<body>") {
			t.Errorf("body = %q, want full page", rec.Body.String())
		}
	})

	t.Run("configuration error is 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/broken", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})
}

func TestPipeline_CacheSharedAcrossRequests(t *testing.T) {
	var fetches atomic.Int32
	article := textWidget("article", func(ctx context.Context, env Env) (string, error) {
		fetches.Add(1)
		return "<article>" + env.Param("id") + "</article>", nil
	}).Inputs(EnvParams)
	p := newTestPipeline(t, DefaultConfig(), article)
	p.Handle("GET /articles/{id}", func(ctx context.Context, env Env) (Response, error) {
		return Page("").Slot("main-content", UseWidget("article")), nil
	})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		p.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/articles/42", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if n := fetches.Load(); n != 1 {
		t.Errorf("article fetched %d times across requests, want 1", n)
	}
	if p.Cache().Stats().Hits == 0 {
		t.Error("cache recorded no hits")
	}
}

func TestPipeline_MsgpackSerializer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Serializer = "msgpack"
	p := newTestPipeline(t, cfg)

	out, err := p.Serve(context.Background(), NewEnv(nil), func(ctx context.Context, env Env) (Response, error) {
		return JSON(map[string]int{"a": 1}), nil
	})
	if err != nil {
		t.Fatalf("Serve() error = %v", err)
	}
	if out.ContentType != "application/msgpack" || len(out.Body) == 0 {
		t.Errorf("ContentType = %q, body len %d", out.ContentType, len(out.Body))
	}
}

func TestWildcards(t *testing.T) {
	tests := []struct {
		pattern string
		want    []string
	}{
		{"GET /", nil},
		{"GET /articles/{id}", []string{"id"}},
		{"/files/{dir}/{path...}", []string{"dir", "path"}},
		{"GET /exact/{$}", nil},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			if got := wildcards(tt.pattern); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("wildcards() = %v, want %v", got, tt.want)
			}
		})
	}
}
