// Package audio plays the sounds requested by the sound command.
// Sources are project files, http(s) URLs and data: URLs; WAV, MP3, Ogg
// Vorbis and MIDI are decoded through Ebitengine/audio and go-meltysynth.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/sinshu/go-meltysynth/meltysynth"
	"github.com/zurustar/dimscript/pkg/fileutil"
	"github.com/zurustar/dimscript/pkg/logger"
)

// SampleRate is the output sample rate. Decoded streams are 16-bit stereo.
const SampleRate = 44100

// bytesPerSample is one 16-bit stereo frame.
const bytesPerSample = 4

var (
	// ErrUnsupportedFormat is returned for sounds that are not WAV, MP3,
	// Ogg Vorbis or MIDI.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrNoSoundFont is returned when a MIDI file is played without a
	// SoundFont.
	ErrNoSoundFont = errors.New("SoundFont file is required for MIDI playback")

	// ErrSoundFontNotFound is returned when the SoundFont file cannot be read.
	ErrSoundFontNotFound = errors.New("SoundFont file not found")

	// ErrInvalidFormat is returned when a file cannot be decoded.
	ErrInvalidFormat = errors.New("invalid audio data")
)

// Player plays one sound per Play call and returns when it has finished.
// Without an audio context it runs headless: sounds are decoded and Play
// waits for their duration in silence. Player is safe for concurrent use;
// concurrent sounds are mixed by Ebitengine.
type Player struct {
	audioCtx *audio.Context
	fs       fileutil.FileSystem
	client   *http.Client

	soundFontPath string
	soundFontFS   fileutil.FileSystem
	soundFont     *meltysynth.SoundFont
	soundFontErr  error
	soundFontOnce sync.Once

	log *slog.Logger
}

// Option is a functional option for configuring the Player.
type Option func(*Player)

// WithContext plays through an Ebitengine audio context. Without one the
// player is headless.
func WithContext(c *audio.Context) Option {
	return func(p *Player) {
		p.audioCtx = c
	}
}

// WithFileSystem sets where relative sound paths are looked up.
func WithFileSystem(fs fileutil.FileSystem) Option {
	return func(p *Player) {
		p.fs = fs
	}
}

// WithHTTPClient replaces http.DefaultClient for http(s) sounds.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Player) {
		p.client = c
	}
}

// WithSoundFont sets the SoundFont used to render MIDI. fs may be nil for
// the regular file system. The file is loaded on the first MIDI sound.
func WithSoundFont(fs fileutil.FileSystem, path string) Option {
	return func(p *Player) {
		p.soundFontFS = fs
		p.soundFontPath = path
	}
}

// WithLogger sets a custom logger.
func WithLogger(log *slog.Logger) Option {
	return func(p *Player) {
		p.log = log
	}
}

// NewPlayer creates a Player.
func NewPlayer(opts ...Option) *Player {
	p := &Player{
		fs:     fileutil.NewRealFS(""),
		client: http.DefaultClient,
		log:    logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Headless reports whether the player has no audio device.
func (p *Player) Headless() bool {
	return p.audioCtx == nil
}

// Play fetches, decodes and plays url, returning when playback has
// finished, ctx is done, or an error occurs.
//
// Parameters:
//   - ctx: Cancels the fetch and stops playback
//   - url: A file path, http(s) URL or data: URL
//
// Returns:
//   - error: Fetch or decode failure, or ctx.Err() if cancelled
func (p *Player) Play(ctx context.Context, url string) error {
	src, err := p.fetch(ctx, url)
	if err != nil {
		return err
	}

	stream, err := p.decode(src)
	if err != nil {
		return err
	}

	p.log.Debug("sound", "url", truncate(url, 64), "format", src.format, "duration", stream.duration, "headless", p.Headless())

	if p.Headless() {
		return sleep(ctx, stream.duration)
	}
	return p.playDevice(ctx, stream)
}

// playDevice plays stream and polls until it ends.
func (p *Player) playDevice(ctx context.Context, stream *decoded) error {
	player, err := p.audioCtx.NewPlayer(stream.r)
	if err != nil {
		return fmt.Errorf("failed to create audio player: %w", err)
	}
	defer player.Close()

	player.Play()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
			if !player.IsPlaying() {
				return nil
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// decoded is a 16-bit stereo stream at SampleRate and its length.
type decoded struct {
	r        io.Reader
	duration time.Duration
}

func durationOf(bytes int64) time.Duration {
	return time.Duration(bytes/bytesPerSample) * time.Second / SampleRate
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
