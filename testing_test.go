package hxpage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/a-h/templ"
)

type greeting struct {
	Name string
}

// greetingWidget implements WidgetImpl[greeting].
type greetingWidget struct {
	fetchErr error
}

func (g greetingWidget) Fetch(ctx context.Context, env Env) (greeting, error) {
	if g.fetchErr != nil {
		return greeting{}, g.fetchErr
	}
	return greeting{Name: env.String("name")}, nil
}

func (g greetingWidget) View(ctx context.Context, d greeting) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<div class="greeting">Hello, `+d.Name+`!`); err != nil {
			return err
		}
		if err := Embed("badge", "badge", map[string]any{"for": d.Name}).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</div>`)
		return err
	})
}

func TestTestRender_Success(t *testing.T) {
	def := Define[greeting]("greeting", greetingWidget{})

	result, err := TestRender(def, NewEnv(map[string]any{"name": "World"}))
	if err != nil {
		t.Fatalf("TestRender() error = %v", err)
	}

	if result == nil {
		t.Fatal("TestRender() returned nil result")
	}
	if result.HTML != `<div class="greeting">Hello, World!</div>` {
		t.Errorf("HTML = %q", result.HTML)
	}
	if !result.HasChild("badge", "badge") {
		t.Errorf("Children = %+v, want badge", result.Children)
	}
	if !result.IsOK() {
		t.Errorf("StatusCode = %d", result.StatusCode)
	}
}

func TestTestRender_FetchError(t *testing.T) {
	boom := errors.New("fetch failed")
	def := Define[greeting]("greeting", greetingWidget{fetchErr: boom})

	_, err := TestRender(def, NewEnv(nil))
	if !errors.Is(err, boom) {
		t.Errorf("TestRender() error = %v, want %v", err, boom)
	}
}

func TestTestRenderWithContext_Cancelled(t *testing.T) {
	def := textWidget("waits", func(ctx context.Context, env Env) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := TestRenderWithContext(ctx, def, NewEnv(nil)); !errors.Is(err, context.Canceled) {
		t.Errorf("TestRenderWithContext() error = %v, want context.Canceled", err)
	}
}

func TestTestServe(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig(),
		Define[greeting]("greeting", greetingWidget{}),
		textWidget("badge", func(ctx context.Context, env Env) (string, error) {
			return "<span>★</span>", nil
		}),
	)

	result, err := TestServe(p, func(ctx context.Context, env Env) (Response, error) {
		return Page("").Slot("main-content", UseWidget("greeting")).Header("X-Page", "greeting"), nil
	}, NewEnv(map[string]any{"name": "Ada"}))
	if err != nil {
		t.Fatalf("TestServe() error = %v", err)
	}

	if !result.HTMLContainsAll("Hello, Ada!<span>★</span>", "<nav>site</nav>") {
		t.Errorf("HTML = %q", result.HTML)
	}
	if !result.HasHeader("X-Page", "greeting") {
		t.Errorf("X-Page = %q", result.GetHeader("X-Page"))
	}
	if result.GetHeader("Content-Type") != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", result.GetHeader("Content-Type"))
	}
	if len(result.Failures) != 0 {
		t.Errorf("Failures = %v", result.Failures)
	}
}

func TestTestServe_ReportsFailures(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig(),
		Define[greeting]("greeting", greetingWidget{fetchErr: errors.New("down")}))

	result, err := TestServe(p, func(ctx context.Context, env Env) (Response, error) {
		return Page("").Slot("main-content", UseWidget("greeting")), nil
	}, NewEnv(nil))
	if err != nil {
		t.Fatalf("TestServe() error = %v", err)
	}
	if !result.HasFailure("greeting") {
		t.Errorf("Failures = %v, want greeting", result.Failures)
	}
}

func TestTestRequest(t *testing.T) {
	p := newTestPipeline(t, DefaultConfig())
	p.Handle("GET /ping", func(ctx context.Context, env Env) (Response, error) {
		return JSON(map[string]string{"pong": env.Query("q")}), nil
	})

	result := TestRequest(p, http.MethodGet, "/ping?q=1", nil)
	if !result.HasStatus(http.StatusOK) {
		t.Fatalf("StatusCode = %d", result.StatusCode)
	}
	if result.HTML != `{"pong":"1"}` {
		t.Errorf("body = %q", result.HTML)
	}
	if !result.HasHeader("Content-Type", "application/json") {
		t.Errorf("Content-Type = %q", result.GetHeader("Content-Type"))
	}

	missing := TestRequest(p, http.MethodGet, "/nowhere", nil)
	if !missing.HasStatus(http.StatusNotFound) {
		t.Errorf("StatusCode = %d, want 404", missing.StatusCode)
	}
}
