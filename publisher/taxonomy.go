package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const taxonomyPageSize = "?per_page=100"

type wpName struct {
	Name string `json:"name"`
}

// FetchName returns the site title from the REST index.
func (p *Publisher) FetchName(ctx context.Context, siteURL string) (string, error) {
	var data wpName
	raw := Site{URL: siteURL}.BaseURL() + "/wp-json?_fields=name"
	if err := p.getJSON(ctx, raw, &data); err != nil {
		return "", wrapFetch("name", err)
	}
	if data.Name == "" {
		return "", &RequestError{UserMessage: "Error: fetch name", Err: errors.New("response has no name")}
	}
	return data.Name, nil
}

// FetchCategories lists categories, served from cache when fresh.
func (p *Publisher) FetchCategories(ctx context.Context, siteURL string) ([]Category, error) {
	key := "categories:" + Site{URL: siteURL}.BaseURL()
	if v, ok := p.cache.Get(key); ok {
		return v.([]Category), nil
	}
	var out []Category
	if err := p.getJSON(ctx, Site{URL: siteURL}.BaseURL()+"/wp-json/wp/v2/categories"+taxonomyPageSize, &out); err != nil {
		return nil, wrapFetch("category", err)
	}
	p.cache.Set(key, out, cache.DefaultExpiration)
	return out, nil
}

// FetchTags lists tags, served from cache when fresh.
func (p *Publisher) FetchTags(ctx context.Context, siteURL string) ([]Tag, error) {
	key := "tags:" + Site{URL: siteURL}.BaseURL()
	if v, ok := p.cache.Get(key); ok {
		return v.([]Tag), nil
	}
	var out []Tag
	if err := p.getJSON(ctx, Site{URL: siteURL}.BaseURL()+"/wp-json/wp/v2/tags"+taxonomyPageSize, &out); err != nil {
		return nil, wrapFetch("tag", err)
	}
	p.cache.Set(key, out, cache.DefaultExpiration)
	return out, nil
}

// InvalidateTaxonomy drops cached categories and tags of a site.
func (p *Publisher) InvalidateTaxonomy(siteURL string) {
	base := Site{URL: siteURL}.BaseURL()
	p.cache.Delete("categories:" + base)
	p.cache.Delete("tags:" + base)
}

// RefreshTaxonomy reloads name, categories and tags of site concurrently and
// stores them on site. site is left untouched if any fetch fails.
func (p *Publisher) RefreshTaxonomy(ctx context.Context, site *Site) error {
	p.InvalidateTaxonomy(site.URL)

	var (
		name       string
		categories []Category
		tags       []Tag
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		name, err = p.FetchName(gctx, site.URL)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = p.FetchCategories(gctx, site.URL)
		return err
	})
	g.Go(func() error {
		var err error
		tags, err = p.FetchTags(gctx, site.URL)
		return err
	})
	if err := g.Wait(); err != nil {
		p.logger.Warn("taxonomy refresh failed", zap.String("site", site.BaseURL()), zap.Error(err))
		return err
	}
	site.Name = name
	site.Categories = categories
	site.Tags = tags
	return nil
}

func wrapFetch(what string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &RequestError{UserMessage: fmt.Sprintf("Unknown Error: fetch %s", what), Err: err}
}
