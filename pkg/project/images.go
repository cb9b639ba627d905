package project

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF デコーダを登録
	_ "image/jpeg" // JPEG デコーダを登録
	_ "image/png"  // PNG デコーダを登録
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"  // BMP デコーダを登録
	_ "golang.org/x/image/webp" // WebP デコーダを登録

	"github.com/zurustar/dimscript/pkg/fileutil"
	"github.com/zurustar/dimscript/pkg/logger"
)

var (
	// ErrImageNotFound is returned for a name that is not in the library.
	ErrImageNotFound = errors.New("image not found")

	// ErrInvalidDataURL is returned for a malformed data: URL.
	ErrInvalidDataURL = errors.New("invalid data URL")
)

// EncodeDataURL returns data as a base64 data: URL. The media type is
// sniffed from the content.
func EncodeDataURL(data []byte) string {
	mediaType := http.DetectContentType(data)
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL returns the payload and media type of a data: URL.
func DecodeDataURL(raw string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: missing comma", ErrInvalidDataURL)
	}

	mediaType, isBase64 := strings.CutSuffix(header, ";base64")
	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
		}
		return data, mediaType, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return []byte(s), mediaType, nil
}

// Library is the named image set of a bundle. Decoded images are cached.
// Library is safe for concurrent use.
type Library struct {
	bundle *Bundle
	cache  map[string]image.Image
	mu     sync.Mutex
	log    *slog.Logger
}

// NewLibrary creates a Library over b.Images. Changes made through the
// Library are written back to b.
func NewLibrary(b *Bundle) *Library {
	if b.Images == nil {
		b.Images = make(map[string]string)
	}
	return &Library{
		bundle: b,
		cache:  make(map[string]image.Image),
		log:    logger.GetLogger(),
	}
}

// Image returns the decoded image called name. Images that fail to decode
// are reported as missing.
func (l *Library) Image(name string) (image.Image, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if img, ok := l.cache[name]; ok {
		return img, true
	}
	raw, ok := l.bundle.Images[name]
	if !ok {
		return nil, false
	}

	data, _, err := DecodeDataURL(raw)
	if err != nil {
		l.log.Warn("failed to decode image data URL", "name", name, "error", err)
		return nil, false
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		l.log.Warn("failed to decode image", "name", name, "error", err)
		return nil, false
	}

	l.cache[name] = img
	l.log.Debug("image decoded", "name", name, "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return img, true
}

// Names returns the image names in order.
func (l *Library) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, 0, len(l.bundle.Images))
	for name := range l.bundle.Images {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddImage stores data under name, replacing any image of that name. The
// data must decode as an image.
func (l *Library) AddImage(name string, data []byte) error {
	if name == "" {
		return errors.New("image name is empty")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode image %s: %w", name, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.bundle.Images[name] = EncodeDataURL(data)
	l.cache[name] = img
	return nil
}

// AddImageFile reads file from fsys and stores it under name. An empty
// name uses the file name without its extension.
func (l *Library) AddImageFile(fsys fileutil.FileSystem, file, name string) (string, error) {
	data, err := fsys.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("failed to read image %s: %w", file, err)
	}
	if name == "" {
		base := filepath.Base(file)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return name, l.AddImage(name, data)
}

// RemoveImage deletes name.
func (l *Library) RemoveImage(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.bundle.Images[name]; !ok {
		return fmt.Errorf("%w: %s", ErrImageNotFound, name)
	}
	delete(l.bundle.Images, name)
	delete(l.cache, name)
	return nil
}
