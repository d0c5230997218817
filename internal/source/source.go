// Package source loads scanner programs from local files and URLs.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	nurl "net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/yangwenmai/scanforge/internal/model"
)

// DefaultMaxBytes caps the size of a loaded scanner.
const DefaultMaxBytes = 1 << 20

var (
	// ErrTooLarge is returned when a scanner exceeds the size limit.
	ErrTooLarge = errors.New("source exceeds size limit")
	// ErrEmpty is returned when nothing usable was loaded.
	ErrEmpty = errors.New("source is empty")
)

// Loader reads scanner source from a path or an http(s) URL. HTML pages are
// reduced to their main text with readability, so a scanner shared as a
// rendered page loads the same as its raw file.
type Loader struct {
	client   *http.Client
	maxBytes int64
	attempts int
	backoff  time.Duration
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient sets the client used for URLs.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		if c != nil {
			l.client = c
		}
	}
}

// WithMaxBytes sets the size limit.
func WithMaxBytes(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// WithRetry sets the fetch attempts and the linear backoff between them.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(l *Loader) {
		if attempts > 0 {
			l.attempts = attempts
		}
		if backoff >= 0 {
			l.backoff = backoff
		}
	}
}

// NewLoader creates a Loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: DefaultMaxBytes,
		attempts: 3,
		backoff:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsURL reports whether ref should be fetched rather than read from disk.
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Load returns the scanner at ref.
func (l *Loader) Load(ctx context.Context, ref string) (model.SourceArtifact, error) {
	if IsURL(ref) {
		return l.fetch(ctx, ref)
	}
	return l.readFile(ref)
}

func (l *Loader) readFile(name string) (model.SourceArtifact, error) {
	f, err := os.Open(name)
	if err != nil {
		return model.SourceArtifact{}, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	body, err := l.readLimited(f)
	if err != nil {
		return model.SourceArtifact{}, fmt.Errorf("read %s: %w", name, err)
	}
	return l.artifact(string(body), filepath.Base(name))
}

// fetch downloads ref, retrying network errors and 5xx responses.
func (l *Loader) fetch(ctx context.Context, ref string) (model.SourceArtifact, error) {
	var lastErr error
	for attempt := 0; attempt < l.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return model.SourceArtifact{}, ctx.Err()
			case <-time.After(time.Duration(attempt) * l.backoff):
			}
		}

		src, retry, err := l.fetchOnce(ctx, ref)
		if err == nil {
			return src, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			return model.SourceArtifact{}, err
		}
	}
	return model.SourceArtifact{}, fmt.Errorf("after %d attempts: %w", l.attempts, lastErr)
}

func (l *Loader) fetchOnce(ctx context.Context, ref string) (model.SourceArtifact, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return model.SourceArtifact{}, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/x-python,text/plain,text/html;q=0.9,*/*;q=0.8")

	resp, err := l.client.Do(req)
	if err != nil {
		return model.SourceArtifact{}, true, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.SourceArtifact{}, resp.StatusCode >= 500, fmt.Errorf("HTTP %d for %s", resp.StatusCode, ref)
	}

	body, err := l.readLimited(resp.Body)
	if err != nil {
		return model.SourceArtifact{}, false, fmt.Errorf("read body: %w", err)
	}

	u, _ := nurl.Parse(ref)
	code := string(body)
	if isHTML(resp.Header.Get("Content-Type"), body) {
		article, err := readability.FromReader(bytes.NewReader(body), u)
		if err != nil {
			return model.SourceArtifact{}, false, fmt.Errorf("readability: %w", err)
		}
		code = article.TextContent
	}

	src, err := l.artifact(code, path.Base(u.Path))
	return src, false, err
}

// readLimited reads at most maxBytes and fails when there is more.
func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > l.maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, l.maxBytes)
	}
	return body, nil
}

func (l *Loader) artifact(code, filename string) (model.SourceArtifact, error) {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	if strings.TrimSpace(code) == "" {
		return model.SourceArtifact{}, ErrEmpty
	}
	if filename == "." || filename == "/" {
		filename = ""
	}
	return model.NewSourceArtifact(code, filename), nil
}

func isHTML(contentType string, body []byte) bool {
	if strings.Contains(contentType, "html") {
		return true
	}
	head := bytes.ToLower(bytes.TrimSpace(body[:min(len(body), 512)]))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}
