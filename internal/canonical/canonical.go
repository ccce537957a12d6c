// Package canonical maps recognized or user-edited line text to the
// normalized comparison form used for change detection. Cosmetic
// recognition variance (checkbox glyphs, spacing) and task-state edits made
// in the note database must normalize to the same canonical string, so that
// re-recognition of unchanged handwriting is always a no-op.
package canonical

import "strings"

// Task-state markers Logseq layers on top of recognized text. These carry
// user intent (checking off a task) and are stripped before comparison,
// never compared.
var taskMarkers = []string{
	"TODO", "DOING", "DONE", "LATER", "NOW", "WAITING", "CANCELED", "CANCELLED",
}

// Checkbox glyphs the recognition service or the user may produce, folded
// to fixed ASCII forms before marker stripping.
var glyphReplacer = strings.NewReplacer(
	"☐", "[ ]",
	"□", "[ ]",
	"◻", "[ ]",
	"▢", "[ ]",
	"❏", "[ ]",
	"☑", "[x]",
	"☒", "[x]",
	"◼", "[x]",
	"■", "[x]",
	"✓", "[x]",
	"✔", "[x]",
)

// Canonicalize returns the normalized comparison form of text: checkbox
// glyphs folded, leading task-state and checkbox markers stripped,
// whitespace collapsed, and the result trimmed. It is idempotent.
func Canonicalize(text string) string {
	text = glyphReplacer.Replace(text)
	fields := strings.Fields(text)

	// Strip any run of leading markers so a double-marked line ("DONE [x]
	// Review mockups") still reduces in one call.
	for len(fields) > 0 && isMarker(fields[0]) {
		fields = fields[1:]
	}

	return strings.Join(fields, " ")
}

func isMarker(tok string) bool {
	if tok == "[" || tok == "[]" || tok == "[x]" || tok == "[X]" {
		return true
	}
	// "[ ]" splits into two fields; the lone "]" after a stripped "[" is
	// handled here.
	if tok == "]" {
		return true
	}
	for _, m := range taskMarkers {
		if tok == m {
			return true
		}
	}
	return false
}

// Marker extracts the task-state marker from display text, or "" when the
// text carries none. Used by the persistence adapter to re-apply completion
// state after an UPDATE rewrites a block's text.
func Marker(text string) string {
	fields := strings.Fields(glyphReplacer.Replace(text))
	if len(fields) == 0 {
		return ""
	}
	switch fields[0] {
	case "[x]", "[X]":
		return "DONE"
	case "[]":
		return "TODO"
	case "[":
		if len(fields) > 1 && fields[1] == "]" {
			return "TODO"
		}
		return ""
	}
	for _, m := range taskMarkers {
		if fields[0] == m {
			return m
		}
	}
	return ""
}

// Apply prefixes text with the given task-state marker, replacing whatever
// marker the text already carries. An empty marker strips without adding.
func Apply(marker, text string) string {
	body := Canonicalize(text)
	if marker == "" || body == "" {
		return body
	}
	return marker + " " + body
}

// Display converts raw recognized text into note-database display text:
// handwritten checkbox glyphs become task markers, everything else is the
// canonical body.
func Display(raw string) string {
	return Apply(Marker(raw), raw)
}
