package wizard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"auto_wordpress_post_publisher/content"
	"auto_wordpress_post_publisher/draft"
	"auto_wordpress_post_publisher/generator"
	"auto_wordpress_post_publisher/publisher"
)

var (
	// ErrInvalidTransition is returned for an action the current step
	// doesn't offer.
	ErrInvalidTransition = errors.New("wizard: action not available in this step")
	// ErrNoEditor means "next" was pressed before the editor was ready.
	ErrNoEditor = errors.New("wizard: editor content is not available")
	// ErrBusy means the step already has an operation in flight.
	ErrBusy = errors.New("wizard: operation in progress")
	// ErrCancelled is returned to callers whose operation outlived the wizard.
	ErrCancelled = errors.New("wizard: cancelled")
)

// Collector produces chat entries. *generator.Collector implements it.
type Collector interface {
	Request(ctx context.Context, prompt string, params generator.ModelParams) (draft.ChatEntry, error)
}

// Publisher creates posts and media. *publisher.Publisher implements it.
type Publisher interface {
	Publish(ctx context.Context, site publisher.Site, req publisher.PublishRequest) (publisher.Post, error)
	UploadMedia(ctx context.Context, site publisher.Site, filename string, r io.Reader) (publisher.Media, error)
}

// Options configure a Controller. All fields are optional.
type Options struct {
	Logger *zap.Logger
	// OnPublished runs once after a successful publish, outside the
	// controller's lock, with the site record already carrying the new post.
	OnPublished func(site publisher.Site, post publisher.Post)
}

// Layout picks how the chat log becomes the first editor document.
type Layout struct {
	ShowPrompt bool `json:"show_prompt"`
	// Markdown renders completions as Markdown. Only used without prompts.
	Markdown bool `json:"markdown"`
}

// PublishMeta is what the user fills in on the last step.
type PublishMeta struct {
	Title    string  `json:"title"`
	Category int64   `json:"category"`
	Tags     []int64 `json:"tags"`
}

// Snapshot is a copy of the controller state for display.
type Snapshot struct {
	Step              Step                    `json:"step"`
	Site              string                  `json:"site"`
	ChatLog           []draft.ChatEntry       `json:"chat_log"`
	ShowPrompt        bool                    `json:"show_prompt"`
	EditedMarkup      string                  `json:"edited_markup"`
	PublishableMarkup string                  `json:"publishable_markup"`
	Completion        Result[draft.ChatEntry] `json:"completion"`
	Publish           Result[publisher.Post]  `json:"publish"`
	Media             Result[publisher.Media] `json:"media"`
	Affordances       Affordances             `json:"affordances"`
}

// Controller drives one authoring session from the first prompt to the
// published post. It is safe for concurrent use; remote calls run without
// the lock held and their results are dropped if the wizard was cancelled
// meanwhile.
type Controller struct {
	mu sync.Mutex

	step      Step
	draft     *draft.Draft
	site      publisher.Site
	collector Collector
	publisher Publisher
	logger    *zap.Logger
	onPublish func(publisher.Site, publisher.Post)

	completion Result[draft.ChatEntry]
	publish    Result[publisher.Post]
	media      Result[publisher.Media]
}

// New opens a wizard for site. The site token is used as is; refresh it
// before calling New.
func New(site publisher.Site, collector Collector, pub Publisher, opts Options) (*Controller, error) {
	if collector == nil || pub == nil {
		return nil, errors.New("wizard: collector and publisher are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		step:      Collecting,
		draft:     draft.New(),
		site:      site,
		collector: collector,
		publisher: pub,
		logger:    logger.With(zap.String("site", site.BaseURL())),
		onPublish: opts.OnPublished,
	}, nil
}

// Step returns the current step.
func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Site returns the wizard's copy of the target site.
func (c *Controller) Site() publisher.Site {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.site
}

// RequestCompletion sends prompt and appends the answer to the chat log.
// Remote failures come back as a Failed result, not as an error; errors are
// reserved for actions the wizard refuses.
func (c *Controller) RequestCompletion(ctx context.Context, prompt string, params generator.ModelParams) (Result[draft.ChatEntry], error) {
	c.mu.Lock()
	if c.step != Collecting {
		c.mu.Unlock()
		return Result[draft.ChatEntry]{}, c.refuse("completion")
	}
	if c.completion.Status == Pending {
		c.mu.Unlock()
		return pending[draft.ChatEntry](), ErrBusy
	}
	c.completion = pending[draft.ChatEntry]()
	c.mu.Unlock()

	entry, err := c.collector.Request(ctx, prompt, params)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step == Cancelled {
		c.logger.Debug("completion discarded after cancel")
		return Result[draft.ChatEntry]{}, ErrCancelled
	}
	if err != nil {
		c.completion = failed[draft.ChatEntry](generator.UserMessage(err))
		return c.completion, nil
	}
	c.draft.Append(entry)
	c.completion = succeeded(entry)
	c.logger.Info("chat entry added", zap.Int("entries", len(c.draft.ChatLog)))
	return c.completion, nil
}

// FinishCollecting moves to Editing and returns the editor document. If the
// user already edited a document it is kept and only entries collected since
// are rendered and appended to it.
func (c *Controller) FinishCollecting(layout Layout) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step != Collecting {
		return "", c.refuse("next")
	}
	if c.completion.Status == Pending {
		return "", ErrBusy
	}

	fresh, err := render(c.draft.Pending(), layout)
	if err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	doc := fresh
	if prev := c.draft.EditedMarkup(); prev != "" {
		doc = prev
		if fresh != "" {
			doc += "\n" + fresh
		}
	}
	c.draft.ShowPrompt = layout.ShowPrompt
	c.draft.SetEditedMarkup(doc)
	c.draft.MarkRendered(len(c.draft.ChatLog))
	c.transition(Editing)
	return doc, nil
}

func render(entries []draft.ChatEntry, layout Layout) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}
	if layout.Markdown && !layout.ShowPrompt {
		return content.RenderMarkdown(entries)
	}
	return content.Render(entries, layout.ShowPrompt), nil
}

// FinishEditing stores the editor content, transcodes it and moves to
// Reviewing. edited is nil when the editor never produced content.
func (c *Controller) FinishEditing(edited *string, style content.Style) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step != Editing {
		return "", c.refuse("next")
	}
	if edited == nil {
		return "", ErrNoEditor
	}
	if c.media.Status == Pending {
		return "", ErrBusy
	}
	c.draft.SetEditedMarkup(*edited)
	publishable := content.Convert(*edited, style)
	c.draft.SetPublishableMarkup(publishable)
	c.publish = Result[publisher.Post]{}
	c.transition(Reviewing)
	return publishable, nil
}

// Back retreats one step. From Editing, edited (if not nil) replaces the
// stored document so the user's changes survive the round trip.
func (c *Controller) Back(edited *string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.step {
	case Reviewing:
		if c.publish.Status == Pending {
			return ErrBusy
		}
		c.draft.SetPublishableMarkup("")
		c.transition(Editing)
		return nil
	case Editing:
		if c.media.Status == Pending {
			return ErrBusy
		}
		if edited != nil {
			c.draft.SetEditedMarkup(*edited)
		}
		c.transition(Collecting)
		return nil
	case Collecting, Done, Cancelled:
		return c.refuse("back")
	default:
		return c.refuse("back")
	}
}

// Publish submits the reviewed document. On success the wizard is Done and
// the result carries the post link; on failure it stays in Reviewing.
func (c *Controller) Publish(ctx context.Context, meta PublishMeta) (Result[publisher.Post], error) {
	c.mu.Lock()
	if c.step != Reviewing {
		c.mu.Unlock()
		return Result[publisher.Post]{}, c.refuse("publish")
	}
	if c.publish.Status == Pending {
		c.mu.Unlock()
		return pending[publisher.Post](), ErrBusy
	}
	if strings.TrimSpace(meta.Title) == "" {
		c.publish = failed[publisher.Post](publisher.UserMessage(publisher.ErrTitleRequired))
		res := c.publish
		c.mu.Unlock()
		return res, nil
	}
	req := publisher.PublishRequest{
		Title:   meta.Title,
		Content: c.draft.PublishableMarkup(),
		Excerpt: c.draft.PublishableMarkup(),
		Status:  publisher.StatusPublish,
		Tags:    meta.Tags,
	}
	if meta.Category > 0 {
		req.Categories = []int64{meta.Category}
	}
	site := c.site
	c.publish = pending[publisher.Post]()
	c.mu.Unlock()

	post, err := c.publisher.Publish(ctx, site, req)

	c.mu.Lock()
	if c.step == Cancelled {
		c.mu.Unlock()
		if err == nil {
			c.logger.Warn("post published after cancel", zap.Int64("post_id", post.ID))
		}
		return Result[publisher.Post]{}, ErrCancelled
	}
	if err != nil {
		c.publish = failed[publisher.Post](publisher.UserMessage(err))
		res := c.publish
		c.mu.Unlock()
		c.logger.Warn("publish failed", zap.Error(err))
		return res, nil
	}
	c.site.Posts = append(c.site.Posts, post)
	c.publish = succeeded(post)
	c.transition(Done)
	res, updated, hook := c.publish, c.site, c.onPublish
	c.mu.Unlock()

	if hook != nil {
		hook(updated, post)
	}
	return res, nil
}

// UploadMedia adds an image to the site's media library while editing and
// returns its URL for the editor to insert.
func (c *Controller) UploadMedia(ctx context.Context, filename string, r io.Reader) (Result[publisher.Media], error) {
	c.mu.Lock()
	if c.step != Editing {
		c.mu.Unlock()
		return Result[publisher.Media]{}, c.refuse("media")
	}
	if c.media.Status == Pending {
		c.mu.Unlock()
		return pending[publisher.Media](), ErrBusy
	}
	site := c.site
	c.media = pending[publisher.Media]()
	c.mu.Unlock()

	media, err := c.publisher.UploadMedia(ctx, site, filename, r)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step == Cancelled {
		return Result[publisher.Media]{}, ErrCancelled
	}
	if err != nil {
		c.media = failed[publisher.Media](publisher.UserMessage(err))
		return c.media, nil
	}
	c.media = succeeded(media)
	return c.media, nil
}

// Cancel closes the wizard and discards the draft. Cancelling a finished
// wizard does nothing.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.step.Terminal() {
		return
	}
	c.draft = draft.New()
	c.completion = Result[draft.ChatEntry]{}
	c.media = Result[publisher.Media]{}
	c.publish = Result[publisher.Post]{}
	c.transition(Cancelled)
}

// Affordances reports which controls apply right now.
func (c *Controller) Affordances() Affordances {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.affordances()
}

func (c *Controller) affordances() Affordances {
	switch c.step {
	case Collecting:
		idle := c.completion.Status != Pending
		return Affordances{Next: idle, Cancel: true}
	case Editing:
		idle := c.media.Status != Pending
		return Affordances{Next: idle, Back: idle, Cancel: true}
	case Reviewing:
		idle := c.publish.Status != Pending
		return Affordances{Back: idle, Publish: idle, Cancel: true}
	case Done, Cancelled:
		return Affordances{}
	default:
		return Affordances{}
	}
}

// Snapshot copies the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	log := make([]draft.ChatEntry, len(c.draft.ChatLog))
	copy(log, c.draft.ChatLog)
	return Snapshot{
		Step:              c.step,
		Site:              c.site.BaseURL(),
		ChatLog:           log,
		ShowPrompt:        c.draft.ShowPrompt,
		EditedMarkup:      c.draft.EditedMarkup(),
		PublishableMarkup: c.draft.PublishableMarkup(),
		Completion:        c.completion,
		Publish:           c.publish,
		Media:             c.media,
		Affordances:       c.affordances(),
	}
}

// transition must be called with mu held.
func (c *Controller) transition(to Step) {
	c.logger.Debug("wizard step", zap.Stringer("from", c.step), zap.Stringer("to", to))
	c.step = to
}

func (c *Controller) refuse(action string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, action, c.step)
}
