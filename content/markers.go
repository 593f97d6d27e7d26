package content

// Editor-side markers. They wrap prompt and completion blocks in the document
// handed to the rich-text editor. Entry text is always HTML-escaped before it
// is placed between markers, so "<!--" can never originate from user content.
const (
	LeftPrefix  = `<!-- baloon-left-prefix --><div class="baloon_left">`
	LeftSuffix  = `</div><!-- baloon-left-suffix -->`
	RightPrefix = `<!-- baloon-right-prefix --><div class="completion"><div class="baloon_right">`
	RightSuffix = `</div></div><!-- baloon-right-suffix -->`
)

// Word Balloon plugin block templates. Kept on a single line with single
// spaces so the whitespace pass leaves them untouched.
const (
	BalloonLeftOpen   = `<!-- wp:word-balloon/word-balloon-block {"innerblocks_mode":false} --><div class="wp-block-word-balloon-word-balloon-block">[word_balloon id="1" size="M" position="L" radius="true" name="" balloon="talk" balloon_shadow="true"]<p>`
	BalloonLeftClose  = `</p>[/word_balloon]</div><!-- /wp:word-balloon/word-balloon-block -->`
	BalloonRightOpen  = `<!-- wp:word-balloon/word-balloon-block {"avatar_id":"2","position":"R","name_position":"under_avatar","innerblocks_mode":false} --><div class="wp-block-word-balloon-word-balloon-block">[word_balloon id="2" size="M" position="R" radius="true" name="" balloon="talk" balloon_shadow="true"]<p>`
	BalloonRightClose = `</p>[/word_balloon]</div><!-- /wp:word-balloon/word-balloon-block -->`
)

// Style selects what the markers are converted into.
type Style int

const (
	// StyleBalloon emits Word Balloon blocks.
	StyleBalloon Style = iota
	// StylePlain drops the balloon chrome and keeps each side as a paragraph.
	StylePlain
)

func (s Style) String() string {
	switch s {
	case StyleBalloon:
		return "balloon"
	case StylePlain:
		return "plain"
	default:
		return "unknown"
	}
}

// ParseStyle maps the wire name of a style; empty means balloon.
func ParseStyle(name string) (Style, bool) {
	switch name {
	case "", "balloon":
		return StyleBalloon, true
	case "plain":
		return StylePlain, true
	default:
		return StyleBalloon, false
	}
}

type markerKind int

const (
	markerLeftPrefix markerKind = iota
	markerLeftSuffix
	markerRightPrefix
	markerRightSuffix
)

type marker struct {
	kind markerKind
	text string
}

// vocabulary is checked in order at every position. No marker is a prefix of
// another, so order only matters for speed.
var vocabulary = []marker{
	{markerLeftPrefix, LeftPrefix},
	{markerLeftSuffix, LeftSuffix},
	{markerRightPrefix, RightPrefix},
	{markerRightSuffix, RightSuffix},
}

func (s Style) replacement(k markerKind) string {
	switch s {
	case StylePlain:
		switch k {
		case markerLeftPrefix, markerRightPrefix:
			return "<p>"
		case markerLeftSuffix, markerRightSuffix:
			return "</p>"
		}
	default:
		switch k {
		case markerLeftPrefix:
			return BalloonLeftOpen
		case markerLeftSuffix:
			return BalloonLeftClose
		case markerRightPrefix:
			return BalloonRightOpen
		case markerRightSuffix:
			return BalloonRightClose
		}
	}
	return ""
}
