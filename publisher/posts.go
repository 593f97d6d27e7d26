package publisher

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// PostFilter narrows /wp/v2/posts. Zero values mean "no constraint".
type PostFilter struct {
	Search    string
	Category  int64
	Tags      []int64
	After     time.Time
	Before    time.Time
	OrderBy   string // date, title or author
	Ascending bool
	Page      int
}

// Query encodes the filter. Parameters equal to WordPress defaults are left
// out (orderby=date, order=desc, page=1).
func (f PostFilter) Query() url.Values {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Category > 0 {
		q.Set("categories", strconv.FormatInt(f.Category, 10))
	}
	if len(f.Tags) > 0 {
		q.Set("tags", joinIDs(f.Tags))
	}
	if !f.After.IsZero() {
		q.Set("after", f.After.Format(time.RFC3339))
	}
	if !f.Before.IsZero() {
		q.Set("before", f.Before.Format(time.RFC3339))
	}
	if f.Ascending {
		q.Set("order", "asc")
	}
	if f.OrderBy != "" && f.OrderBy != "date" {
		q.Set("orderby", f.OrderBy)
	}
	if f.Page > 1 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	return q
}

// FetchPosts lists posts of site matching filter.
func (p *Publisher) FetchPosts(ctx context.Context, siteURL string, filter PostFilter) ([]Post, error) {
	raw := Site{URL: siteURL}.BaseURL() + postsPath
	if q := filter.Query().Encode(); q != "" {
		raw += "?" + q
	}
	var out []Post
	if err := p.getJSON(ctx, raw, &out); err != nil {
		return nil, wrapFetch("posts", err)
	}
	return out, nil
}
