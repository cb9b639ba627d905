// Package project reads and writes DimScript project bundles: the script
// source plus the named images it places, stored as one JSON document.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zurustar/dimscript/pkg/fileutil"
	"github.com/zurustar/dimscript/pkg/script"
)

// Extension is the file extension of project bundles.
const Extension = ".dimscript"

// ErrInvalidBundle is returned for a file that is not a project bundle.
var ErrInvalidBundle = errors.New("invalid project bundle")

// Bundle はプロジェクトファイルの内容。Images は画像名から data: URL への対応
type Bundle struct {
	Code   string            `json:"code"`
	Images map[string]string `json:"images"`
}

// New returns an empty bundle for code.
func New(code string) *Bundle {
	return &Bundle{Code: code, Images: make(map[string]string)}
}

// Read decodes a bundle from r.
func Read(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if b.Images == nil {
		b.Images = make(map[string]string)
	}
	return &b, nil
}

// Write encodes b to w.
func (b *Bundle) Write(w io.Writer) error {
	images := b.Images
	if images == nil {
		images = map[string]string{}
	}
	return json.NewEncoder(w).Encode(Bundle{Code: b.Code, Images: images})
}

// Save writes b to path.
func (b *Bundle) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create project file: %w", err)
	}
	if err := b.Write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write project file: %w", err)
	}
	return f.Close()
}

// Script parses the bundle's code.
func (b *Bundle) Script(name string) *script.Script {
	return script.Parse(name, b.Code)
}

// Load opens a project. Files ending in .dimscript are bundles; anything
// else is read as a plain script in the given encoding and gets an empty
// image set.
//
// Parameters:
//   - fsys: The project directory
//   - name: The file to open, relative to fsys (case-insensitive)
//   - encoding: Script encoding for plain scripts ("" or "auto" to detect)
//
// Returns:
//   - *Bundle: The loaded project
//   - error: Read, decode or bundle format error
func Load(fsys fileutil.FileSystem, name, encoding string) (*Bundle, error) {
	data, err := fsys.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read project %s: %w", name, err)
	}

	if strings.EqualFold(filepath.Ext(name), Extension) {
		b, err := Read(strings.NewReader(string(data)))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return b, nil
	}

	text, err := script.Decode(data, encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to decode script %s: %w", name, err)
	}
	return New(text), nil
}

// ExportName is the default file name for a bundle exported on date.
func ExportName(date time.Time) string {
	return "dimscript_project_" + date.Format("2006-01-02") + Extension
}
