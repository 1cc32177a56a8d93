package transcript

import "strings"

const strongDelim = "**"

// Span is a run of text with a single presentation style.
type Span struct {
	Text   string
	Strong bool
}

// Render splits raw entry text into plain and strong spans. A pair of "**"
// delimiters marks a strong span; the shortest match wins, so "**a** and
// **b**" yields two strong spans. An unmatched opening delimiter is kept as
// plain text, which keeps half-streamed deltas readable.
func Render(text string) []Span {
	var spans []Span
	rest := text
	for rest != "" {
		open := strings.Index(rest, strongDelim)
		if open < 0 {
			break
		}
		closeAt := strings.Index(rest[open+len(strongDelim):], strongDelim)
		if closeAt < 0 {
			break
		}
		if open > 0 {
			spans = append(spans, Span{Text: rest[:open]})
		}
		inner := rest[open+len(strongDelim) : open+len(strongDelim)+closeAt]
		if inner != "" {
			spans = append(spans, Span{Text: inner, Strong: true})
		}
		rest = rest[open+2*len(strongDelim)+closeAt:]
	}
	if rest != "" {
		spans = append(spans, Span{Text: rest})
	}
	return spans
}

// Format renders text by passing each span through plain or strong. It is
// the hook presentation layers use to apply their own styles.
func Format(text string, plain, strong func(string) string) string {
	var b strings.Builder
	for _, span := range Render(text) {
		if span.Strong {
			b.WriteString(strong(span.Text))
			continue
		}
		b.WriteString(plain(span.Text))
	}
	return b.String()
}
