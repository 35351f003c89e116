package hxpage

import "strings"

// SwapMode defines HTMX swap strategies for how response HTML replaces the target.
//
// Each mode corresponds to an HTMX hx-swap value.
//
// See https://htmx.org/attributes/hx-swap/ for visual examples.
type SwapMode string

const (
	// SwapOuter replaces the entire element including its tag (outerHTML).
	SwapOuter SwapMode = "outerHTML"

	// SwapInner replaces only the element's contents (innerHTML). Slot
	// partials are the contents of their slot, so this is what a partial
	// request expects.
	SwapInner SwapMode = "innerHTML"

	// SwapBeforeEnd appends the response to the end of the target's contents.
	SwapBeforeEnd SwapMode = "beforeend"

	// SwapAfterEnd inserts the response after the target element.
	SwapAfterEnd SwapMode = "afterend"

	// SwapBeforeBegin inserts the response before the target element.
	SwapBeforeBegin SwapMode = "beforebegin"

	// SwapAfterBegin prepends the response to the start of the target's contents.
	SwapAfterBegin SwapMode = "afterbegin"

	// SwapDelete removes the target element entirely.
	SwapDelete SwapMode = "delete"

	// SwapNone performs no swap. Useful with Nothing responses that only
	// trigger events.
	SwapNone SwapMode = "none"
)

// Swap overrides the client's hx-swap for this response (HX-Reswap).
func (r Response) Swap(mode SwapMode) Response {
	return r.Header("HX-Reswap", string(mode))
}

// Retarget points the swap at another element (HX-Retarget). A bare slot
// name is turned into an id selector.
func (r Response) Retarget(target string) Response {
	if !strings.ContainsAny(target, "#.[ ") {
		target = "#" + target
	}
	return r.Header("HX-Retarget", target)
}

// Trigger fires client-side events once the response is swapped
// (HX-Trigger). Repeated calls accumulate.
func (r Response) Trigger(events ...string) Response {
	if len(events) == 0 {
		return r
	}
	if prev := r.headers["HX-Trigger"]; prev != "" {
		events = append([]string{prev}, events...)
	}
	return r.Header("HX-Trigger", strings.Join(events, ", "))
}

// PushURL sets the browser location after the swap (HX-Push-Url).
func (r Response) PushURL(url string) Response {
	return r.Header("HX-Push-Url", url)
}
