package audio

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/zurustar/dimscript/pkg/fileutil"
)

// makeWAV builds a silent 16-bit stereo PCM WAV file of n frames.
func makeWAV(n int) []byte {
	dataLen := n * bytesPerSample
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+dataLen))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&b, binary.LittleEndian, uint16(2)) // stereo
	binary.Write(&b, binary.LittleEndian, uint32(SampleRate))
	binary.Write(&b, binary.LittleEndian, uint32(SampleRate*bytesPerSample))
	binary.Write(&b, binary.LittleEndian, uint16(bytesPerSample))
	binary.Write(&b, binary.LittleEndian, uint16(16))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(dataLen))
	b.Write(make([]byte, dataLen))
	return b.Bytes()
}

func newTestPlayer(opts ...Option) *Player {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewPlayer(opts...)
}

func TestPlayHeadless(t *testing.T) {
	t.Run("data URL", func(t *testing.T) {
		url := "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(makeWAV(441))
		p := newTestPlayer()
		start := time.Now()
		if err := p.Play(context.Background(), url); err != nil {
			t.Fatalf("Play failed: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
			t.Errorf("Play returned after %v, want at least 10ms", elapsed)
		}
	})

	t.Run("project file in any case", func(t *testing.T) {
		fsys := fstest.MapFS{"sounds/Beep.WAV": {Data: makeWAV(10)}}
		p := newTestPlayer(WithFileSystem(fileutil.NewFS(fsys)))
		if err := p.Play(context.Background(), "sounds/beep.wav"); err != nil {
			t.Fatalf("Play failed: %v", err)
		}
	})

	t.Run("http", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/ding" {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "audio/x-wav")
			w.Write(makeWAV(10))
		}))
		defer srv.Close()

		p := newTestPlayer(WithHTTPClient(srv.Client()))
		if err := p.Play(context.Background(), srv.URL+"/ding"); err != nil {
			t.Fatalf("Play failed: %v", err)
		}
		if err := p.Play(context.Background(), srv.URL+"/missing.wav"); !errors.Is(err, ErrSoundNotFound) {
			t.Errorf("Play missing = %v, want ErrSoundNotFound", err)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		url := "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(makeWAV(SampleRate*5))
		p := newTestPlayer()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		start := time.Now()
		if err := p.Play(ctx, url); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Play = %v, want DeadlineExceeded", err)
		}
		if time.Since(start) > 2*time.Second {
			t.Error("Play did not stop on cancel")
		}
	})
}

func TestPlayErrors(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want error
	}{
		{"missing file", "nope.wav", ErrSoundNotFound},
		{"unknown format", "data:text/plain,hello", ErrUnsupportedFormat},
		{"corrupt wav", "data:audio/wav;base64," + base64.StdEncoding.EncodeToString([]byte("RIFFxxxxWAVEjunk")), ErrInvalidFormat},
		{"bad base64", "data:audio/wav;base64,!!!", ErrInvalidFormat},
		{"no comma", "data:audio/wav", ErrInvalidFormat},
	}

	p := newTestPlayer(WithFileSystem(fileutil.NewFS(fstest.MapFS{})))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.Play(context.Background(), tt.url); !errors.Is(err, tt.want) {
				t.Errorf("Play = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFormatDetection(t *testing.T) {
	names := map[string]format{
		"a.wav":        formatWAV,
		"A.WAV":        formatWAV,
		"b.mp3":        formatMP3,
		"c.ogg":        formatVorbis,
		"d.mid":        formatMIDI,
		"e.MIDI":       formatMIDI,
		"f.txt":        "",
		"no-extension": "",
	}
	for name, want := range names {
		if got := formatFromName(name); got != want {
			t.Errorf("formatFromName(%q) = %q, want %q", name, got, want)
		}
	}

	mimes := map[string]format{
		"audio/mpeg":           formatMP3,
		"audio/wav; charset=x": formatWAV,
		"audio/ogg":            formatVorbis,
		"audio/midi":           formatMIDI,
		"image/png":            "",
		"":                     "",
	}
	for mt, want := range mimes {
		if got := formatFromMIME(mt); got != want {
			t.Errorf("formatFromMIME(%q) = %q, want %q", mt, got, want)
		}
	}

	sniffs := []struct {
		data []byte
		want format
	}{
		{makeWAV(1), formatWAV},
		{[]byte("OggS\x00\x02"), formatVorbis},
		{[]byte("MThd\x00\x00\x00\x06"), formatMIDI},
		{[]byte("ID3\x03"), formatMP3},
		{[]byte{0xFF, 0xFB, 0x90}, formatMP3},
		{[]byte("plain"), ""},
	}
	for _, tt := range sniffs {
		if got := sniff(tt.data); got != tt.want {
			t.Errorf("sniff(%q) = %q, want %q", tt.data[:min(4, len(tt.data))], got, tt.want)
		}
	}
}

func TestParseDataURL(t *testing.T) {
	src, err := parseDataURL("data:audio/midi,MThd%00")
	if err != nil {
		t.Fatal(err)
	}
	if src.format != formatMIDI || string(src.data) != "MThd\x00" {
		t.Errorf("src = %+v", src)
	}
}

func TestSoundFont(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadSoundFontFS(nil, filepath.Join(t.TempDir(), "none.sf2"))
		if !errors.Is(err, ErrSoundFontNotFound) {
			t.Errorf("err = %v, want ErrSoundFontNotFound", err)
		}
	})

	t.Run("invalid data", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.sf2")
		if err := os.WriteFile(path, []byte("not a soundfont"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadSoundFontFS(nil, path); err == nil {
			t.Error("expected a parse error")
		}
	})

	t.Run("missing in file system", func(t *testing.T) {
		_, err := ReadSoundFontFS(fileutil.NewFS(fstest.MapFS{}), "GeneralUser-GS.sf2")
		if !errors.Is(err, ErrSoundFontNotFound) {
			t.Errorf("err = %v, want ErrSoundFontNotFound", err)
		}
	})

	t.Run("not configured", func(t *testing.T) {
		p := newTestPlayer()
		if _, err := p.loadSoundFont(); !errors.Is(err, ErrNoSoundFont) {
			t.Errorf("err = %v, want ErrNoSoundFont", err)
		}
	})
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"data:audio/wav", 4, "data..."},
		{"звук", 3, "з..."},
		{"звук", 4, "зв..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestHeadless(t *testing.T) {
	if !newTestPlayer().Headless() {
		t.Error("expected a player without context to be headless")
	}
	if got := durationOf(SampleRate * bytesPerSample * 2); got != 2*time.Second {
		t.Errorf("durationOf = %v, want 2s", got)
	}
}
