// Package ingest turns a file path or URL into the document text that gets audited.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/factaudit/internal/model"
)

// ErrUnsupportedType is returned for documents that are not text, markdown or HTML
var ErrUnsupportedType = errors.New("unsupported document type")

// Loader loads documents from local files and http(s) URLs
type Loader struct {
	fetcher  *Fetcher
	maxBytes int64
}

// NewLoader creates a loader. fetcher may be nil to disable URL sources.
func NewLoader(fetcher *Fetcher, maxBytes int64) *Loader {
	return &Loader{
		fetcher:  fetcher,
		maxBytes: maxBytes,
	}
}

// Load returns the document behind source
func (l *Loader) Load(ctx context.Context, source string) (*model.Document, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, errors.New("empty source")
	}

	if IsURL(source) {
		return l.loadURL(ctx, source)
	}
	return l.loadFile(source)
}

// IsURL reports whether source is an http(s) URL
func IsURL(source string) bool {
	parsed, err := url.Parse(source)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func (l *Loader) loadURL(ctx context.Context, source string) (*model.Document, error) {
	if l.fetcher == nil {
		return nil, fmt.Errorf("URL sources are not enabled: %s", source)
	}

	res, err := l.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", source, err)
	}

	doc, err := Parse(res.Body, mediaType(res.ContentType, res.FinalURL), res.FinalURL)
	if err != nil {
		return nil, err
	}
	doc.Source = source
	return doc, nil
}

func (l *Loader) loadFile(path string) (*model.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open document: %s is a directory", path)
	}
	if l.maxBytes > 0 && info.Size() > l.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrTooLarge, path, info.Size())
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	doc, err := Parse(content, mediaType("", path), path)
	if err != nil {
		return nil, err
	}
	doc.Source = path
	return doc, nil
}

// Parse converts raw content of the given media type into a document.
// source is only used to derive a title when the content has none.
func Parse(content []byte, mediaType, source string) (*model.Document, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: content is not UTF-8 text", ErrUnsupportedType)
	}

	doc := &model.Document{ContentType: mediaType}

	switch mediaType {
	case "text/html", "application/xhtml+xml":
		title, text, err := HTMLText(content)
		if err != nil {
			return nil, fmt.Errorf("parse html: %w", err)
		}
		doc.Title, doc.Text = title, text
	case "text/markdown":
		doc.Text = strings.TrimSpace(string(content))
		doc.Title = markdownTitle(doc.Text)
	case "text/plain":
		doc.Text = strings.TrimSpace(string(content))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mediaType)
	}

	if doc.Title == "" {
		doc.Title = subjectFromSource(source)
	}

	return doc, nil
}

// mediaType picks the media type from the Content-Type header, falling back to the
// file extension of name
func mediaType(contentType, name string) string {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}

	if parsed, err := url.Parse(name); err == nil && parsed.Host != "" {
		name = parsed.Path
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm", ".xhtml":
		return "text/html"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt", ".text", "":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
