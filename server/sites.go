package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"auto_wordpress_post_publisher/publisher"
	"auto_wordpress_post_publisher/store"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.LoadSettings(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var settings store.Settings
	if err := decodeBody(r, &settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if settings.Temperature < 0 || settings.Temperature > 2 {
		writeError(w, http.StatusBadRequest, "temperature must be between 0 and 2")
		return
	}
	if settings.MaxTokens < 0 {
		writeError(w, http.StatusBadRequest, "maxTokens must not be negative")
		return
	}
	if err := s.store.SaveSettings(r.Context(), userFrom(r.Context()), settings); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.store.ListSites(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sites)
}

type addSiteReq struct {
	URL      string `json:"url"`
	UserName string `json:"user_name"`
	Password string `json:"password"`
}

// handleAddSite logs in to the site before saving it, so only working
// credentials are stored.
func (s *Server) handleAddSite(w http.ResponseWriter, r *http.Request) {
	var req addSiteReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.URL = strings.TrimSpace(req.URL)
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		writeError(w, http.StatusBadRequest, "url must start with http:// or https://")
		return
	}
	if req.UserName == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "user_name and password are required")
		return
	}

	ctx, cancel := withTimeout(r)
	defer cancel()
	tok, err := s.wp.FetchToken(ctx, req.URL, req.UserName, req.Password)
	if err != nil {
		writeError(w, http.StatusBadGateway, publisher.UserMessage(err))
		return
	}
	site := publisher.Site{
		URL:         req.URL,
		UserName:    req.UserName,
		Password:    req.Password,
		Token:       tok.Token,
		TokenExpire: tok.Expire,
		DisplayName: tok.DisplayName,
		UserEmail:   tok.UserEmail,
	}
	if err := s.wp.RefreshTaxonomy(ctx, &site); err != nil {
		writeError(w, http.StatusBadGateway, publisher.UserMessage(err))
		return
	}
	added, err := s.store.AddSite(r.Context(), userFrom(r.Context()), site)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	site, err := s.store.GetSite(r.Context(), userFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSite(r.Context(), userFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRefreshSite renews the token if needed and reloads name and taxonomy.
func (s *Server) handleRefreshSite(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r.Context())
	site, err := s.store.GetSite(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		s.storeError(w, err)
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()
	if _, err := s.wp.EnsureToken(ctx, &site); err != nil {
		writeError(w, http.StatusBadGateway, publisher.UserMessage(err))
		return
	}
	if err := s.wp.RefreshTaxonomy(ctx, &site); err != nil {
		writeError(w, http.StatusBadGateway, publisher.UserMessage(err))
		return
	}
	if err := s.store.SaveSite(r.Context(), userID, site); err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r.Context())
	site, err := s.store.GetSite(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		s.storeError(w, err)
		return
	}
	filter, err := parsePostFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()
	posts, err := s.wp.FetchPosts(ctx, site.URL, filter)
	if err != nil {
		writeError(w, http.StatusBadGateway, publisher.UserMessage(err))
		return
	}
	site.Posts = posts
	if err := s.store.SaveSite(r.Context(), userID, site); err != nil {
		s.logger.Warn("cache post list", zap.String("site", site.ID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, posts)
}

// parsePostFilter reads search, category, tags (comma separated), after,
// before (RFC 3339 or YYYY-MM-DD), orderby, order and page.
func parsePostFilter(r *http.Request) (publisher.PostFilter, error) {
	q := r.URL.Query()
	f := publisher.PostFilter{
		Search:    q.Get("search"),
		OrderBy:   q.Get("orderby"),
		Ascending: q.Get("order") == "asc",
	}
	var err error
	if v := q.Get("category"); v != "" {
		if f.Category, err = strconv.ParseInt(v, 10, 64); err != nil {
			return f, errors.New("category must be an id")
		}
	}
	if v := q.Get("tags"); v != "" {
		for _, part := range strings.Split(v, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return f, errors.New("tags must be comma separated ids")
			}
			f.Tags = append(f.Tags, id)
		}
	}
	if f.After, err = parseDate(q.Get("after")); err != nil {
		return f, errors.New("after must be a date")
	}
	if f.Before, err = parseDate(q.Get("before")); err != nil {
		return f, errors.New("before must be a date")
	}
	if v := q.Get("page"); v != "" {
		if f.Page, err = strconv.Atoi(v); err != nil || f.Page < 1 {
			return f, errors.New("page must be a positive number")
		}
	}
	switch f.OrderBy {
	case "", "date", "title", "author", "modified", "id":
	default:
		return f, errors.New("orderby not supported")
	}
	return f, nil
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "site not found")
	case errors.Is(err, store.ErrDuplicateSite):
		writeError(w, http.StatusConflict, "site already registered")
	default:
		s.logger.Error("store failure", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
