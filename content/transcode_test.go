package content

import (
	"fmt"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auto_wordpress_post_publisher/draft"
)

var markers = []string{LeftPrefix, LeftSuffix, RightPrefix, RightSuffix}

func chatLog(n int) []draft.ChatEntry {
	log := make([]draft.ChatEntry, 0, n)
	for i := 0; i < n; i++ {
		log = append(log, draft.ChatEntry{
			ID:          fmt.Sprintf("cmpl-%d", i),
			Prompt:      fmt.Sprintf("question %d\nwith  two lines & <b>tags</b>", i),
			Completion:  fmt.Sprintf("\n\nanswer %d: \"quoted\"   text", i),
			TotalTokens: 10 + i,
		})
	}
	return log
}

func countBalloonBlocks(t *testing.T, out string) int {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	return doc.Find("div.wp-block-word-balloon-word-balloon-block").Length()
}

func TestToPublishable_MarkerIntegrity(t *testing.T) {
	for n := 0; n <= 6; n++ {
		t.Run(fmt.Sprintf("%d entries", n), func(t *testing.T) {
			out := ToPublishable(Render(chatLog(n), true))

			for _, m := range markers {
				assert.NotContains(t, out, m)
			}
			assert.NotContains(t, out, "baloon-")
			assert.NotContains(t, out, "\n")
			assert.Equal(t, n, strings.Count(out, `position="L"`))
			assert.Equal(t, n, strings.Count(out, `[word_balloon id="2" size="M" position="R"`))
			assert.Equal(t, 2*n, countBalloonBlocks(t, out))
		})
	}
}

func TestToPublishable_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"<p>plain</p>",
		"<p>  leading</p>\n   <div>x</div>  ",
		"<p>a  b</p>",
		"text only\nwith\r\nbreaks",
		`<!-- baloon-left-prefix -->  <div class="baloon_left">Hi</div>`,
		ToPublishable(Render(chatLog(3), true)),
		Convert(Render(chatLog(2), true), StylePlain),
	}
	for i, in := range inputs {
		t.Run(fmt.Sprintf("input %d", i), func(t *testing.T) {
			once := ToPublishable(in)
			assert.Equal(t, once, ToPublishable(once))
		})
	}
}

func TestToPublishable_Empty(t *testing.T) {
	assert.Equal(t, "", ToPublishable(""))
	assert.Equal(t, "", ToPublishable("\n\n"))
}

func TestCollapseTagWhitespace(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<p>a  b</p>", "<p>a  b</p>"},
		{"<p>  a</p>", "<p>a</p>"},
		{"<p>a \t</p>", "<p>a</p>"},
		{"<p> a </p>", "<p> a </p>"},
		{"</div>    <div>", "</div><div>"},
		{"  x", "x"},
		{"x  ", "x"},
		{"<p>　　全角</p>", "<p>全角</p>"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, collapseTagWhitespace(tt.in), "input %q", tt.in)
	}
}

func TestHelloScenario_ShowPrompt(t *testing.T) {
	log := []draft.ChatEntry{{ID: "1", Prompt: "Hi", Completion: "Hello", TotalTokens: 5}}

	doc := Render(log, true)
	left := strings.Index(doc, LeftPrefix+"Hi"+LeftSuffix)
	right := strings.Index(doc, RightPrefix+"Hello"+RightSuffix)
	require.GreaterOrEqual(t, left, 0)
	require.Greater(t, right, left)

	out := ToPublishable(doc)
	assert.Contains(t, out, BalloonLeftOpen+"Hi"+BalloonLeftClose)
	assert.Contains(t, out, BalloonRightOpen+"Hello"+BalloonRightClose)
	assert.Equal(t, 2, strings.Count(out, "[word_balloon "))
	assert.Equal(t, 2, strings.Count(out, "[/word_balloon]"))
	assert.NotContains(t, out, "\n")
}

func TestHelloScenario_CompletionsOnly(t *testing.T) {
	log := []draft.ChatEntry{{ID: "1", Prompt: "Hi", Completion: "Hello", TotalTokens: 5}}

	doc := Render(log, false)
	assert.Equal(t, "<p>Hello</p>", doc)
	assert.NotContains(t, doc, "Hi")
	assert.Equal(t, "<p>Hello</p>", ToPublishable(doc))
}

func TestRender_EscapesMarkersInContent(t *testing.T) {
	log := []draft.ChatEntry{{Prompt: LeftPrefix, Completion: RightSuffix + "\nnext line"}}

	out := ToPublishable(Render(log, true))
	assert.Equal(t, 1, strings.Count(out, BalloonLeftOpen))
	assert.Equal(t, 1, strings.Count(out, BalloonRightOpen))
	assert.Equal(t, 2, strings.Count(out, "[/word_balloon]"))
	assert.Contains(t, out, "&lt;!-- baloon-left-prefix --&gt;")
	assert.Contains(t, out, "<br>next line")
}

func TestConvert_PlainStyle(t *testing.T) {
	log := []draft.ChatEntry{{Prompt: "Hi", Completion: "Hello"}}

	out := Convert(Render(log, true), StylePlain)
	assert.Equal(t, `<p>Hi</p><p>Hello</p>`, out)
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown([]draft.ChatEntry{
		{Completion: "Hello"},
		{Completion: "- one\n- **two**"},
	})
	require.NoError(t, err)
	assert.Equal(t, "<p>Hello</p><ul><li>one</li><li><strong>two</strong></li></ul>", ToPublishable(out))
}

func TestMarkdownToHTML_OmitsRawHTML(t *testing.T) {
	out, err := MarkdownToHTML(LeftPrefix + "x")
	require.NoError(t, err)
	assert.NotContains(t, out, LeftPrefix)
}

func TestParseStyle(t *testing.T) {
	s, ok := ParseStyle("")
	assert.True(t, ok)
	assert.Equal(t, StyleBalloon, s)

	s, ok = ParseStyle("plain")
	assert.True(t, ok)
	assert.Equal(t, StylePlain, s)

	_, ok = ParseStyle("bubble")
	assert.False(t, ok)
}
