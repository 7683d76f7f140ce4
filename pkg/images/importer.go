package images

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Importer copies a remote image into local storage and returns the stored
// path. Callers treat import failures as best-effort: an event is created or
// updated without a banner rather than failing the whole upsert.
type Importer interface {
	ImportFromUrl(ctx context.Context, imageUrl string) (string, error)
}

type HttpImporter struct {
	dir        string
	httpClient *http.Client
}

func NewHttpImporter(dir string) *HttpImporter {
	return &HttpImporter{
		dir:        dir,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (i *HttpImporter) ImportFromUrl(ctx context.Context, imageUrl string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageUrl, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("image host returned non-OK status: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(i.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	filename := uuid.NewString() + extensionFor(resp.Header.Get("Content-Type"))
	path := filepath.Join(i.dir, filename)

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		// Leave no partial file behind.
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	log.Debugf("imported image %s to %s", imageUrl, path)
	return path, nil
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".img"
	}
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".img"
	}
}
