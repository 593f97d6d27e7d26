package draft

// ChatEntry 一次 prompt/completion 往返。
type ChatEntry struct {
	ID          string `json:"id"`
	Prompt      string `json:"prompt"`
	Completion  string `json:"completion"`
	TotalTokens int    `json:"total_tokens"`
}

// Draft is the record threaded through one wizard session.
type Draft struct {
	ChatLog    []ChatEntry `json:"chat_log"`
	ShowPrompt bool        `json:"show_prompt"`

	editedMarkup      string
	publishableMarkup string
	// 最近一次渲染时 ChatLog 的长度，用于回退后追加新条目。
	renderedEntries int
}

// New returns an empty draft. Prompts are shown by default.
func New() *Draft {
	return &Draft{ShowPrompt: true}
}

// Append adds an entry at the end of the chat log.
func (d *Draft) Append(e ChatEntry) {
	d.ChatLog = append(d.ChatLog, e)
}

// EditedMarkup is the last document body handed back by the editor.
func (d *Draft) EditedMarkup() string { return d.editedMarkup }

// PublishableMarkup is only valid right after Transcode; it is cleared by
// every SetEditedMarkup.
func (d *Draft) PublishableMarkup() string { return d.publishableMarkup }

// SetEditedMarkup stores editor output and invalidates the publishable form.
func (d *Draft) SetEditedMarkup(markup string) {
	if markup != d.editedMarkup {
		d.publishableMarkup = ""
	}
	d.editedMarkup = markup
}

// SetPublishableMarkup records the output of a transcoding pass over the
// current edited markup.
func (d *Draft) SetPublishableMarkup(markup string) {
	d.publishableMarkup = markup
}

// RenderedEntries reports how many chat entries the editor document already
// contains.
func (d *Draft) RenderedEntries() int { return d.renderedEntries }

// MarkRendered records that the first n entries are part of the document.
func (d *Draft) MarkRendered(n int) { d.renderedEntries = n }

// Pending returns entries appended after the last render.
func (d *Draft) Pending() []ChatEntry {
	if d.renderedEntries >= len(d.ChatLog) {
		return nil
	}
	return d.ChatLog[d.renderedEntries:]
}
