package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// MaxMediaBytes is the largest file the editor may upload.
const MaxMediaBytes = 2_000_000

var ErrMediaTooLarge = errors.New("File size is too large")

// UploadMedia uploads one file to the media library and returns its public
// URL. An upload that later turns out unused is left on the site.
func (p *Publisher) UploadMedia(ctx context.Context, site Site, filename string, r io.Reader) (Media, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxMediaBytes+1))
	if err != nil {
		return Media{}, &RequestError{UserMessage: UploadFailedMessage, Err: err}
	}
	if len(data) > MaxMediaBytes {
		return Media{}, ErrMediaTooLarge
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return Media{}, &RequestError{UserMessage: UploadFailedMessage, Err: err}
	}
	if _, err := part.Write(data); err != nil {
		return Media{}, &RequestError{UserMessage: UploadFailedMessage, Err: err}
	}
	if err := writer.Close(); err != nil {
		return Media{}, &RequestError{UserMessage: UploadFailedMessage, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, site.BaseURL()+mediaPath, &body)
	if err != nil {
		return Media{}, &RequestError{UserMessage: UploadFailedMessage, Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+site.Token)

	raw, err := p.do(req)
	if err != nil {
		return Media{}, &RequestError{UserMessage: UploadFailedMessage, Err: err}
	}
	var media Media
	if err := decodeObject(raw, "source_url", &media); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return Media{}, apiErr
		}
		return Media{}, &RequestError{UserMessage: UploadFailedMessage, Err: err}
	}
	p.logger.Info("media uploaded", zap.String("file", filename), zap.String("url", media.SourceURL))
	return media, nil
}

// UploadMediaFile uploads a local file.
func (p *Publisher) UploadMediaFile(ctx context.Context, site Site, path string) (Media, error) {
	file, err := os.Open(path)
	if err != nil {
		return Media{}, err
	}
	defer file.Close()
	return p.UploadMedia(ctx, site, path, file)
}

var imgPattern = regexp.MustCompile(`!\[[^\]]*\]\(([^)]+)\)`)

// ReplaceMarkdownImages uploads every local image referenced from md and
// rewrites the reference to the uploaded URL. Remote and data: URLs are kept.
// Relative paths resolve against the working directory first, then against
// the Markdown file's directory.
func (p *Publisher) ReplaceMarkdownImages(ctx context.Context, site Site, md, mdPath string) (string, error) {
	matches := imgPattern.FindAllStringSubmatchIndex(md, -1)
	if len(matches) == 0 {
		return md, nil
	}

	baseDir := filepath.Dir(mdPath)
	var builder strings.Builder
	last := 0
	for _, match := range matches {
		if len(match) < 4 {
			continue
		}
		start, end := match[2], match[3]
		builder.WriteString(md[last:start])
		imgRef := strings.TrimSpace(md[start:end])
		if strings.HasPrefix(imgRef, "http://") || strings.HasPrefix(imgRef, "https://") || strings.HasPrefix(imgRef, "data:") {
			builder.WriteString(imgRef)
			last = end
			continue
		}
		localPath := imgRef
		if !filepath.IsAbs(localPath) {
			if _, statErr := os.Stat(localPath); statErr != nil {
				localPath = filepath.Join(baseDir, imgRef)
			}
		}
		media, err := p.UploadMediaFile(ctx, site, localPath)
		if err != nil {
			return "", fmt.Errorf("upload %s: %w", imgRef, err)
		}
		builder.WriteString(media.SourceURL)
		last = end
	}
	builder.WriteString(md[last:])
	return builder.String(), nil
}
