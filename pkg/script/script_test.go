package script

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/zurustar/dimscript/pkg/fileutil"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

func TestParse(t *testing.T) {
	s := Parse("main", "  print a  \r\n\r\n// note\r\n\tset x = 1\n")

	want := []string{"print a", "", "// note", "set x = 1"}
	if s.Len() != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), s.Len())
	}
	for i, w := range want {
		if got := s.Line(i); got != w {
			t.Errorf("line %d: expected %q, got %q", i, w, got)
		}
	}
	if s.Line(-1) != "" || s.Line(99) != "" {
		t.Error("out of range lines must be empty")
	}
	if s.Source() != "print a\n\n// note\nset x = 1" {
		t.Errorf("unexpected source %q", s.Source())
	}
}

func TestIsSkippable(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"", true},
		{"// comment", true},
		{"//", true},
		{"print // not a comment", false},
		{"/ nope", false},
	}
	for _, tt := range tests {
		if got := IsSkippable(tt.line); got != tt.want {
			t.Errorf("IsSkippable(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestTokenize(t *testing.T) {
	got := Tokenize("button  10 20\tGo_on print hi")
	want := []string{"button", "10", "20", "Go_on", "print", "hi"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if Command("while  x < 3") != "while" {
		t.Errorf("unexpected command %q", Command("while  x < 3"))
	}
	if Command("end") != "end" {
		t.Errorf("unexpected command %q", Command("end"))
	}
}

func TestDecode(t *testing.T) {
	t.Run("utf-8 passes through", func(t *testing.T) {
		got, err := Decode([]byte("print привет"), "")
		if err != nil || got != "print привет" {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("utf-8 BOM is stripped", func(t *testing.T) {
		got, err := Decode(append([]byte{0xEF, 0xBB, 0xBF}, "print hi"...), "auto")
		if err != nil || got != "print hi" {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("invalid utf-8 falls back to windows-1251", func(t *testing.T) {
		data, _, err := transform.Bytes(charmap.Windows1251.NewEncoder(), []byte("print привет"))
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		got, err := Decode(data, "")
		if err != nil || got != "print привет" {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("explicit shift_jis", func(t *testing.T) {
		data, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte("print こんにちは"))
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		got, err := Decode(data, "shift_jis")
		if err != nil || got != "print こんにちは" {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("explicit koi8-r", func(t *testing.T) {
		data, _, err := transform.Bytes(charmap.KOI8R.NewEncoder(), []byte("мир"))
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		got, err := Decode(data, "KOI8-R")
		if err != nil || got != "мир" {
			t.Errorf("got %q, %v", got, err)
		}
	})

	t.Run("unknown encoding", func(t *testing.T) {
		_, err := Decode([]byte("x"), "klingon")
		if !errors.Is(err, ErrUnknownEncoding) {
			t.Errorf("expected ErrUnknownEncoding, got %v", err)
		}
	})
}

func TestLoader(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "Demo.DMS"), []byte("print 1\nprint 2\n"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	loader := NewLoader(fileutil.NewRealFS(tmpDir), "auto")
	s, err := loader.Load("demo.dms")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Name != "demo.dms" || s.Len() != 2 || s.Line(1) != "print 2" {
		t.Errorf("unexpected script %q with %d lines", s.Name, s.Len())
	}

	if _, err := loader.Load("missing.dms"); !errors.Is(err, fileutil.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
