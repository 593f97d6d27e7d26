package publisher

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Site is a WordPress installation the user saved. Password and Token never
// leave the server.
type Site struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	UserName    string     `json:"user_name"`
	Password    string     `json:"-"`
	Token       string     `json:"-"`
	TokenExpire time.Time  `json:"token_expire"`
	DisplayName string     `json:"display_name"`
	UserEmail   string     `json:"user_email"`
	Name        string     `json:"name"`
	Categories  []Category `json:"categories"`
	Tags        []Tag      `json:"tags"`
	Posts       []Post     `json:"posts"`
}

// BaseURL is the site URL without trailing slashes.
func (s Site) BaseURL() string {
	return strings.TrimRight(s.URL, "/")
}

type Category struct {
	ID     int64  `json:"id"`
	Count  int    `json:"count"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
	Link   string `json:"link"`
	Parent int64  `json:"parent"`
}

type Tag struct {
	ID    int64  `json:"id"`
	Count int    `json:"count"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Link  string `json:"link"`
}

// Rendered is WordPress' {rendered: "..."} wrapper.
type Rendered struct {
	Rendered string `json:"rendered"`
}

type Post struct {
	ID         int64    `json:"id"`
	Link       string   `json:"link"`
	Date       string   `json:"date"`
	Status     string   `json:"status"`
	Title      Rendered `json:"title"`
	Excerpt    Rendered `json:"excerpt"`
	Categories []int64  `json:"categories"`
	Tags       []int64  `json:"tags"`
}

// Media is the subset of /wp/v2/media the editor needs.
type Media struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
}

// StatusPublish is the only status the wizard sends.
const StatusPublish = "publish"

// PublishRequest is the body of a new post.
type PublishRequest struct {
	Title      string
	Content    string
	Excerpt    string
	Status     string
	Categories []int64
	Tags       []int64
}

// ErrTitleRequired is a validation failure; nothing is sent.
var ErrTitleRequired = errors.New("title is required")

func (r PublishRequest) validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrTitleRequired
	}
	return nil
}

// APIError is the {code, data:{status}, message} body WordPress returns on
// failure. Message is shown to the user unmodified.
type APIError struct {
	Code string `json:"code"`
	Data struct {
		Status int `json:"status"`
	} `json:"data"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wordpress api error: %s (%s, status %d)", e.Message, e.Code, e.Data.Status)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
