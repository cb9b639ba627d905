// Package script holds DimScript source: loading files in legacy encodings,
// splitting text into indexed lines and tokenizing a line into a command and
// its arguments.
package script

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/zurustar/dimscript/pkg/fileutil"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnknownEncoding is returned for an encoding name that is not a WHATWG
// label.
var ErrUnknownEncoding = errors.New("unknown encoding")

// DefaultFallback decodes files that are neither BOM-marked nor valid UTF-8.
var DefaultFallback encoding.Encoding = charmap.Windows1251

// Script はスクリプトを表す。行番号（0始まり）がジャンプ先になる
type Script struct {
	Name  string
	lines []string
}

// Parse はテキストを行に分割する。各行は前後の空白を除去して保持する
func Parse(name, text string) *Script {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSpace(text)

	raw := strings.Split(text, "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimSpace(l)
	}
	return &Script{Name: name, lines: lines}
}

// Len returns the number of lines.
func (s *Script) Len() int { return len(s.lines) }

// Line returns line i, or "" when i is out of range.
func (s *Script) Line(i int) string {
	if i < 0 || i >= len(s.lines) {
		return ""
	}
	return s.lines[i]
}

// Source joins the lines back into text.
func (s *Script) Source() string {
	return strings.Join(s.lines, "\n")
}

// IsSkippable reports whether a trimmed line is blank or a // comment.
func IsSkippable(line string) bool {
	return line == "" || strings.HasPrefix(line, "//")
}

// Tokenize splits a line on whitespace.
func Tokenize(line string) []string {
	return strings.Fields(line)
}

// Command returns the first token of a line, or "".
func Command(line string) string {
	line = strings.TrimSpace(line)
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		return line[:i]
	}
	return line
}

// Loader はスクリプトファイルの読み込みを行う
type Loader struct {
	fs       fileutil.FileSystem
	encoding string
}

// NewLoader Loaderを作成。encoding が空または "auto" の場合は自動判定する
func NewLoader(fsys fileutil.FileSystem, encoding string) *Loader {
	return &Loader{fs: fsys, encoding: encoding}
}

// Load はファイルを読み込み、UTF-8に変換してパースする
func (l *Loader) Load(name string) (*Script, error) {
	data, err := l.fs.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read script %s: %w", name, err)
	}
	text, err := Decode(data, l.encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to decode script %s: %w", name, err)
	}
	return Parse(name, text), nil
}

// Decode はバイト列をUTF-8文字列に変換する
//
// encoding が空または "auto" の場合:
//   - BOM があればそれに従う（UTF-8 / UTF-16）
//   - 妥当なUTF-8ならそのまま
//   - それ以外は DefaultFallback で変換
//
// それ以外の場合は WHATWG のラベル（"shift_jis", "koi8-r" など）として解釈する
func Decode(data []byte, name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		if hasBOM(data) {
			return transformString(data, unicode.BOMOverride(DefaultFallback.NewDecoder()))
		}
		if utf8.Valid(data) {
			return string(data), nil
		}
		return transformString(data, DefaultFallback.NewDecoder())
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownEncoding, name)
	}
	return transformString(data, enc.NewDecoder())
}

func transformString(data []byte, t transform.Transformer) (string, error) {
	out, _, err := transform.Bytes(t, data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func hasBOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(data, []byte{0xFE, 0xFF}) ||
		bytes.HasPrefix(data, []byte{0xFF, 0xFE})
}
