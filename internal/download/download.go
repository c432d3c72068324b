package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wallwatch/wallwatch/pkg/httpclient"
)

// Package download fetches image bytes and writes them into target
// directories.

// DefaultMaxBytes caps a single image transfer.
const DefaultMaxBytes = 50 << 20 // 50 MiB

// ErrNotImage marks responses that could not be resolved to image content.
var ErrNotImage = errors.New("response is not image content")

// knownTypes maps image content types to file extensions.
var knownTypes = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
	"image/x-icon":  ".ico",
	"image/bmp":     ".bmp",
	"image/apng":    ".apng",
}

var knownExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".svg": true, ".ico": true, ".bmp": true, ".apng": true,
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

const maxFilenameStem = 128

// Downloader retrieves images over HTTP.
type Downloader struct {
	client   httpclient.Client
	maxBytes int
}

// New builds a downloader on the shared HTTP client. maxBytes <= 0 selects
// DefaultMaxBytes.
func New(client httpclient.Client, maxBytes int) *Downloader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Downloader{client: client, maxBytes: maxBytes}
}

// Fetch downloads the image at rawURL and returns its bytes plus the file
// extension to store it under. When the URL serves an HTML page instead of
// image bytes, its og:image reference is followed once.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	return d.fetch(ctx, rawURL, true)
}

func (d *Downloader) fetch(ctx context.Context, rawURL string, followHTML bool) ([]byte, string, error) {
	resp, err := d.client.GetStream(ctx, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	reader := resp.Reader()
	defer reader.Close()

	if resp.StatusCode() != 200 {
		return nil, "", fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode())
	}

	body, err := readCapped(reader, d.maxBytes)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	contentType := normalizeContentType(resp.Header("Content-Type"))

	if contentType == "text/html" {
		if !followHTML {
			return nil, "", fmt.Errorf("fetch %s: %w", rawURL, ErrNotImage)
		}
		imageURL, err := ogImageURL(body, rawURL)
		if err != nil {
			return nil, "", fmt.Errorf("fetch %s: %w", rawURL, err)
		}
		return d.fetch(ctx, imageURL, false)
	}

	ext, err := imageExtension(rawURL, contentType)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	return body, ext, nil
}

// readCapped reads at most max bytes from r, failing as soon as the stream
// exceeds the cap so oversized transfers are abandoned mid-stream instead of
// buffered whole.
func readCapped(r io.Reader, max int) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, int64(max)+1))
	if err != nil {
		return nil, err
	}
	if len(data) > max {
		return nil, fmt.Errorf("transfer exceeds %d byte limit", max)
	}
	return data, nil
}

// Save writes image bytes into dir under the post id. Existing files are
// kept; the new file gets a numeric infix instead.
func (d *Downloader) Save(dir, postID, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create target directory %s: %w", dir, err)
	}

	stem := safeFilename(postID)
	location := filepath.Join(dir, stem+ext)
	count := 1
	for {
		if _, err := os.Stat(location); os.IsNotExist(err) {
			break
		}
		location = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, count, ext))
		count++
	}

	if err := os.WriteFile(location, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", location, err)
	}
	return location, nil
}

func normalizeContentType(header string) string {
	contentType := header
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// imageExtension picks the stored extension: the URL path extension when it
// is a recognized image extension, the content type mapping otherwise.
func imageExtension(rawURL, contentType string) (string, error) {
	if parsed, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(parsed.Path)); knownExtensions[ext] {
			return ext, nil
		}
	}
	if ext, ok := knownTypes[contentType]; ok {
		return ext, nil
	}
	return "", fmt.Errorf("content type %q: %w", contentType, ErrNotImage)
}

// ogImageURL extracts the og:image meta property from an HTML document.
func ogImageURL(body []byte, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	node := doc.Find(`meta[property="og:image"]`).First()
	raw, ok := node.Attr("content")
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return "", fmt.Errorf("page has no og:image: %w", ErrNotImage)
	}

	resolved, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse og:image url: %w", err)
	}
	if !resolved.IsAbs() {
		base, err := url.Parse(pageURL)
		if err != nil {
			return "", fmt.Errorf("parse page url: %w", err)
		}
		resolved = base.ResolveReference(resolved)
	}
	return resolved.String(), nil
}

// safeFilename strips characters that are unsafe in filenames and caps the
// length.
func safeFilename(name string) string {
	cleaned := unsafeFilenameChars.ReplaceAllString(name, "")
	if len(cleaned) > maxFilenameStem {
		cleaned = cleaned[:maxFilenameStem]
	}
	if cleaned == "" {
		cleaned = "post"
	}
	return cleaned
}
