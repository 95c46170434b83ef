package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"codeberg.org/readeck/go-readability/v2"
	"golang.org/x/sync/singleflight"
)

// maxBodyBytes bounds how much of a page is read.
const maxBodyBytes = 8 << 20

// WebLoader fetches http(s) references. HTML pages are reduced to their main
// article text with readability; other text content is returned as is.
// Results are cached per URL.
type WebLoader struct {
	client *http.Client

	cache   map[string]string
	cacheMu sync.RWMutex
	group   singleflight.Group
}

// NewWebLoader uses client, or http.DefaultClient when client is nil.
func NewWebLoader(client *http.Client) *WebLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebLoader{
		client: client,
		cache:  make(map[string]string),
	}
}

func (l *WebLoader) LoadText(ctx context.Context, ref string) (string, error) {
	l.cacheMu.RLock()
	if cached, ok := l.cache[ref]; ok {
		l.cacheMu.RUnlock()
		return cached, nil
	}
	l.cacheMu.RUnlock()

	result, err, _ := l.group.Do(ref, func() (any, error) {
		text, err := l.fetch(ctx, ref)
		if err != nil {
			return "", err
		}
		l.cacheMu.Lock()
		l.cache[ref] = text
		l.cacheMu.Unlock()
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (l *WebLoader) fetch(ctx context.Context, ref string) (string, error) {
	pageURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("failed to fetch url: %s", resp.Status)
	}
	body := io.LimitReader(resp.Body, maxBodyBytes)

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "text/html"):
		article, err := readability.FromReader(body, pageURL)
		if err != nil {
			return "", fmt.Errorf("failed to parse html: %w", err)
		}
		var builder strings.Builder
		if err := article.RenderText(&builder); err != nil {
			return "", fmt.Errorf("failed to render article text: %w", err)
		}
		return builder.String(), nil
	case contentType == "", strings.HasPrefix(contentType, "text/"), strings.Contains(contentType, "json"):
		data, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unsupported content type %q", contentType)
	}
}
