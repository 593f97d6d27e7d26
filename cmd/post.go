package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"auto_wordpress_post_publisher/content"
	"auto_wordpress_post_publisher/publisher"
)

var (
	postMD       string
	postTitle    string
	postSite     string
	postUser     string
	postCategory int64
	postTags     []int64
)

// postCmd publishes a Markdown file directly, uploading local images first.
var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Publish a Markdown file to a WordPress site",
	RunE:  runPost,
}

func init() {
	f := postCmd.Flags()
	f.StringVar(&postMD, "md", "", "path to markdown file")
	f.StringVar(&postTitle, "title", "", "post title")
	f.StringVar(&postSite, "site", "", "site URL (defaults to wordpress.url)")
	f.StringVar(&postUser, "user", "", "WordPress user (defaults to wordpress.user_name)")
	f.Int64Var(&postCategory, "category", 0, "category id")
	f.Int64SliceVar(&postTags, "tags", nil, "tag ids")
}

func runPost(cmd *cobra.Command, _ []string) error {
	if postMD == "" || postTitle == "" {
		return errors.New("--md and --title are required")
	}
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	site := publisher.Site{URL: postSite, UserName: postUser}
	if wp := cfg.WordPress; wp != nil {
		if site.URL == "" {
			site.URL = wp.URL
		}
		if site.UserName == "" {
			site.UserName = wp.UserName
		}
		site.Password = wp.Password
	}
	if site.Password == "" {
		site.Password = os.Getenv("WPWIZ_WP_PASSWORD")
	}
	if site.URL == "" || site.UserName == "" || site.Password == "" {
		return errors.New("site url, user name and password are required (flags, wordpress config or WPWIZ_WP_PASSWORD)")
	}

	raw, err := os.ReadFile(postMD)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	wp := publisher.New(nil, logger.Named("publisher"))
	token, err := wp.FetchToken(ctx, site.BaseURL(), site.UserName, site.Password)
	if err != nil {
		return errors.New(publisher.UserMessage(err))
	}
	site.Token = token.Token

	md, err := wp.ReplaceMarkdownImages(ctx, site, string(raw), postMD)
	if err != nil {
		return err
	}
	html, err := content.MarkdownToHTML(md)
	if err != nil {
		return err
	}

	req := publisher.PublishRequest{
		Title:   postTitle,
		Content: html,
		Excerpt: html,
		Tags:    postTags,
	}
	if postCategory > 0 {
		req.Categories = []int64{postCategory}
	}
	logger.Info("publishing", zap.String("title", postTitle), zap.String("md", postMD))
	post, err := wp.Publish(ctx, site, req)
	if err != nil {
		return errors.New(publisher.UserMessage(err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), post.Link)
	return nil
}
