package hxpage

import "strings"

const (
	markerOpen  = "<!--hxpage:slot:"
	markerClose = "-->"
)

func marker(name string) string {
	return markerOpen + name + markerClose
}

func validSlotName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// slotNames lists the insertion points in doc in document order.
func slotNames(doc string) []string {
	var names []string
	rest := doc
	for {
		i := strings.Index(rest, markerOpen)
		if i < 0 {
			return names
		}
		rest = rest[i+len(markerOpen):]
		j := strings.Index(rest, markerClose)
		if j < 0 {
			return names
		}
		if name := rest[:j]; validSlotName(name) {
			names = append(names, name)
		}
		rest = rest[j+len(markerClose):]
	}
}

// fillSlots replaces every insertion point in doc with fill(name). When fill
// reports false the marker is dropped and the name is passed to missing.
func fillSlots(doc string, fill func(name string) (string, bool), missing func(name string)) string {
	var sb strings.Builder
	sb.Grow(len(doc))
	rest := doc
	for {
		i := strings.Index(rest, markerOpen)
		if i < 0 {
			sb.WriteString(rest)
			return sb.String()
		}
		j := strings.Index(rest[i+len(markerOpen):], markerClose)
		if j < 0 {
			sb.WriteString(rest)
			return sb.String()
		}
		name := rest[i+len(markerOpen) : i+len(markerOpen)+j]
		end := i + len(markerOpen) + j + len(markerClose)
		if !validSlotName(name) {
			// Not one of ours; copy verbatim.
			sb.WriteString(rest[:end])
			rest = rest[end:]
			continue
		}
		sb.WriteString(rest[:i])
		if s, ok := fill(name); ok {
			sb.WriteString(s)
		} else if missing != nil {
			missing(name)
		}
		rest = rest[end:]
	}
}
