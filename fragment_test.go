package hxpage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/a-h/templ"
)

func TestEmbed_CollectsChildren(t *testing.T) {
	ctx, collector := withCollector(context.Background())
	c := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if err := Embed("left", "menu", nil).Render(ctx, w); err != nil {
			return err
		}
		return Embed("right", "ads", map[string]any{"zone": "top"}).Render(ctx, w)
	})

	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := []ChildRef{
		{Slot: "left", Widget: "menu"},
		{Slot: "right", Widget: "ads", Values: map[string]any{"zone": "top"}},
	}
	if !reflect.DeepEqual(collector.children, want) {
		t.Errorf("children = %+v, want %+v", collector.children, want)
	}
	if buf.String() != marker("left")+marker("right") {
		t.Errorf("markup = %q", buf.String())
	}
}

func TestEmbed_DuplicateSlot(t *testing.T) {
	ctx, _ := withCollector(context.Background())
	var buf bytes.Buffer
	if err := Embed("x", "a", nil).Render(ctx, &buf); err != nil {
		t.Fatalf("first Embed error = %v", err)
	}
	if err := Embed("x", "b", nil).Render(ctx, &buf); !errors.Is(err, ErrDuplicateSlot) {
		t.Errorf("second Embed error = %v, want ErrDuplicateSlot", err)
	}
}

func TestEmbed_OutsideRender(t *testing.T) {
	var buf bytes.Buffer
	if err := Embed("x", "a", nil).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Embed error = %v", err)
	}
	if buf.String() != marker("x") {
		t.Errorf("markup = %q", buf.String())
	}
}

func TestErrorFragment(t *testing.T) {
	err := errors.New(`bad <script>`)

	tests := []struct {
		name       string
		showDetail bool
		contains   []string
		excludes   []string
	}{
		{"hidden detail", false, []string{`data-widget="w&lt;1&gt;"`}, []string{"bad"}},
		{"escaped detail", true, []string{"bad &lt;script&gt;"}, []string{"<script>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := ErrorFragment("w<1>", err, tt.showDetail).HTML()
			for _, s := range tt.contains {
				if !strings.Contains(html, s) {
					t.Errorf("HTML %q missing %q", html, s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(html, s) {
					t.Errorf("HTML %q contains %q", html, s)
				}
			}
		})
	}
}

func TestFillSlots(t *testing.T) {
	doc := "a" + marker("x") + "b" + marker("y") + "c" + markerOpen + "not valid" + markerClose
	var missing []string
	got := fillSlots(doc, func(name string) (string, bool) {
		if name == "x" {
			return "X", true
		}
		return "", false
	}, func(name string) { missing = append(missing, name) })

	want := "aXbc" + markerOpen + "not valid" + markerClose
	if got != want {
		t.Errorf("fillSlots() = %q, want %q", got, want)
	}
	if !reflect.DeepEqual(missing, []string{"y"}) {
		t.Errorf("missing = %v, want [y]", missing)
	}
}

func TestSlotNames(t *testing.T) {
	doc := marker("header") + "<p>" + marker("main.body") + markerOpen + "bad name" + markerClose + markerOpen + "unterminated"
	want := []string{"header", "main.body"}
	if got := slotNames(doc); !reflect.DeepEqual(got, want) {
		t.Errorf("slotNames() = %v, want %v", got, want)
	}
}

func TestFragment_ChildrenCopied(t *testing.T) {
	f := NewFragment("x", ChildRef{Slot: "a", Widget: "w"})
	kids := f.Children()
	kids[0].Slot = "mutated"
	if f.Children()[0].Slot != "a" {
		t.Error("Children() exposed internal slice")
	}
}
