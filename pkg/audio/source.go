package audio

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/zurustar/dimscript/pkg/fileutil"
)

// ErrSoundNotFound is returned when a sound source cannot be read.
var ErrSoundNotFound = errors.New("sound not found")

// maxDownload bounds http(s) sounds.
const maxDownload = 64 << 20

// format names a decoder.
type format string

const (
	formatWAV    format = "wav"
	formatMP3    format = "mp3"
	formatVorbis format = "ogg"
	formatMIDI   format = "midi"
)

// source is fetched sound data.
type source struct {
	data   []byte
	format format
}

// fetch reads url from a data: URL, over http(s), or from the file system.
func (p *Player) fetch(ctx context.Context, raw string) (*source, error) {
	switch {
	case strings.HasPrefix(raw, "data:"):
		return parseDataURL(raw)
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return p.download(ctx, raw)
	default:
		return p.readFile(raw)
	}
}

func (p *Player) readFile(name string) (*source, error) {
	data, err := p.fs.ReadFile(name)
	if err != nil {
		if errors.Is(err, fileutil.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSoundNotFound, name)
		}
		return nil, fmt.Errorf("failed to read sound file: %w", err)
	}
	return &source{data: data, format: formatFromName(name)}, nil
}

func (p *Player) download(ctx context.Context, raw string) (*source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid sound URL: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download sound: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s (%s)", ErrSoundNotFound, raw, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownload))
	if err != nil {
		return nil, fmt.Errorf("failed to download sound: %w", err)
	}

	f := formatFromMIME(resp.Header.Get("Content-Type"))
	if f == "" {
		if u, err := url.Parse(raw); err == nil {
			f = formatFromName(u.Path)
		}
	}
	return &source{data: data, format: f}, nil
}

// parseDataURL decodes data:[<mediatype>][;base64],<data>.
func parseDataURL(raw string) (*source, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data URL", ErrInvalidFormat)
	}

	mediaType := header
	isBase64 := false
	if mt, found := strings.CutSuffix(header, ";base64"); found {
		mediaType, isBase64 = mt, true
	}

	var data []byte
	if isBase64 {
		b, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		data = b
	} else {
		s, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
		}
		data = []byte(s)
	}
	return &source{data: data, format: formatFromMIME(mediaType)}, nil
}

func formatFromName(name string) format {
	switch strings.ToLower(path.Ext(name)) {
	case ".wav", ".wave":
		return formatWAV
	case ".mp3":
		return formatMP3
	case ".ogg", ".oga":
		return formatVorbis
	case ".mid", ".midi", ".smf":
		return formatMIDI
	}
	return ""
}

func formatFromMIME(mediaType string) format {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return ""
	}
	switch mt {
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		return formatWAV
	case "audio/mpeg", "audio/mp3":
		return formatMP3
	case "audio/ogg", "audio/vorbis", "application/ogg":
		return formatVorbis
	case "audio/midi", "audio/mid", "audio/x-midi":
		return formatMIDI
	}
	return ""
}
