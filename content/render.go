package content

import (
	"html"
	"strings"

	"auto_wordpress_post_publisher/draft"
)

// Render builds the initial editor document from the chat log.
//
// With showPrompt every entry becomes a left balloon holding the prompt
// immediately followed by a right balloon holding the completion. Without it
// only completions are emitted, one paragraph each. Order follows the log.
func Render(log []draft.ChatEntry, showPrompt bool) string {
	var b strings.Builder
	for i, e := range log {
		if i > 0 {
			b.WriteByte('\n')
		}
		if showPrompt {
			b.WriteString(LeftPrefix)
			b.WriteString(escapeText(e.Prompt))
			b.WriteString(LeftSuffix)
			b.WriteString(RightPrefix)
			b.WriteString(escapeText(e.Completion))
			b.WriteString(RightSuffix)
			continue
		}
		b.WriteString("<p>")
		b.WriteString(escapeText(e.Completion))
		b.WriteString("</p>")
	}
	return b.String()
}

// RenderMarkdown is the paragraph layout with each completion rendered as
// Markdown. Completions from instruction models are often Markdown already.
func RenderMarkdown(log []draft.ChatEntry) (string, error) {
	var b strings.Builder
	for _, e := range log {
		out, err := MarkdownToHTML(e.Completion)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}
	return b.String(), nil
}

// escapeText makes entry text safe to place between markers: it can't open a
// tag or comment, and line breaks survive the newline stripping in Convert.
func escapeText(s string) string {
	s = strings.TrimSpace(s)
	s = html.EscapeString(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "<br>")
}
