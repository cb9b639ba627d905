package app

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zurustar/dimscript/pkg/fileutil"
)

// SoundFontLocation represents the location of a SoundFont file.
type SoundFontLocation struct {
	// Path is the path to the SoundFont file
	Path string
	// FileSystem is the FileSystem to use for loading (nil for external files)
	FileSystem fileutil.FileSystem
	// IsEmbedded indicates whether the SoundFont is embedded
	IsEmbedded bool
}

// DefaultSoundFontName is the default SoundFont filename to search for.
const DefaultSoundFontName = "GeneralUser-GS.sf2"

// findSoundFont searches for a SoundFont file in the following order:
// 1. The configured path (--soundfont or DIMSCRIPT_SOUNDFONT)
// 2. Embedded soundfonts directory
// 3. Current directory (external)
// 4. Project directory (external)
//
// Parameters:
//   - assets: The embedded file system (may be nil)
//   - configured: The SoundFont path given by the user (may be empty)
//   - projectDir: Directory of the project file
//
// Returns:
//   - *SoundFontLocation: Location of the SoundFont file, or nil if not found
func findSoundFont(assets fs.FS, configured, projectDir string) *SoundFontLocation {
	// 1. 指定されたパス。見つからなくてもそのまま使い、読み込み時にエラーにする
	if configured != "" {
		return &SoundFontLocation{Path: configured}
	}

	// 2. 埋め込みの soundfonts ディレクトリ
	if assets != nil {
		if sub, err := fs.Sub(assets, "soundfonts"); err == nil {
			if data, err := fs.ReadFile(sub, DefaultSoundFontName); err == nil && len(data) > 0 {
				return &SoundFontLocation{
					Path:       DefaultSoundFontName,
					FileSystem: fileutil.NewFS(sub),
					IsEmbedded: true,
				}
			}
		}
	}

	// 3. カレントディレクトリ
	if _, err := os.Stat(DefaultSoundFontName); err == nil {
		return &SoundFontLocation{Path: DefaultSoundFontName}
	}

	// 4. プロジェクトのディレクトリ
	if projectDir != "" {
		p := filepath.Join(projectDir, DefaultSoundFontName)
		if _, err := os.Stat(p); err == nil {
			return &SoundFontLocation{Path: p}
		}
	}

	return nil
}
