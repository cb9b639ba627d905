package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config はコマンドライン引数から解析された設定を保持する
type Config struct {
	ProjectPath string        // プロジェクト（.dimscript）またはスクリプトのパス
	ProjectDir  string        // 相対パスの画像・音声を探すディレクトリ
	Timeout     time.Duration // タイムアウト時間（0は無制限）
	LogLevel    string        // ログレベル（debug, info, warn, error）
	LogFormat   string        // ログ形式（text, json）
	Headless    bool          // ヘッドレスモード
	SoundFont   string        // MIDI再生用のSoundFont（.sf2）
	Encoding    string        // スクリプトの文字コード（auto または WHATWG ラベル）
	ConfigFile  string        // YAML設定ファイル
	ExportPath  string        // 読み込んだプロジェクトの書き出し先
	ShowHelp    bool          // ヘルプ表示フラグ
}

// fileConfig is the YAML config file. Unset keys keep the defaults.
type fileConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	Headless  *bool  `yaml:"headless"`
	Timeout   *int   `yaml:"timeout"`
	SoundFont string `yaml:"soundfont"`
	Encoding  string `yaml:"encoding"`
}

// ErrNoProject is returned when no project path is given and help was not
// requested.
var ErrNoProject = errors.New("no project file given")

// boolFlags never take the following argument as their value.
var boolFlags = map[string]bool{
	"-h": true, "-help": true, "--help": true,
	"-headless": true, "--headless": true,
}

// ParseArgs コマンドライン引数を解析してConfigを返す
//
// 優先順位は 既定値 < 設定ファイル < 環境変数 < コマンドライン
func ParseArgs(args []string) (*Config, error) {
	// 引数を並べ替え：フラグを前に、位置引数を後ろに
	reorderedArgs := reorderArgs(args)

	fs := flag.NewFlagSet("dimscript", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	config := &Config{}

	var timeoutSec int
	fs.IntVar(&timeoutSec, "timeout", 0, "タイムアウト時間（秒）")
	fs.IntVar(&timeoutSec, "t", 0, "タイムアウト時間（秒）（短縮形）")
	fs.StringVar(&config.LogLevel, "log-level", "info", "ログレベル（debug, info, warn, error）")
	fs.StringVar(&config.LogLevel, "l", "info", "ログレベル（短縮形）")
	fs.StringVar(&config.LogFormat, "log-format", "text", "ログ形式（text, json）")
	fs.BoolVar(&config.Headless, "headless", false, "ヘッドレスモード")
	fs.StringVar(&config.SoundFont, "soundfont", "", "SoundFontファイル")
	fs.StringVar(&config.Encoding, "encoding", "auto", "スクリプトの文字コード")
	fs.StringVar(&config.ConfigFile, "config", "", "YAML設定ファイル")
	fs.StringVar(&config.ExportPath, "export", "", "プロジェクトの書き出し先")
	fs.BoolVar(&config.ShowHelp, "help", false, "ヘルプを表示")
	fs.BoolVar(&config.ShowHelp, "h", false, "ヘルプを表示（短縮形）")

	if err := fs.Parse(reorderedArgs); err != nil {
		return nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	flagSet := func(names ...string) bool {
		for _, n := range names {
			if set[n] {
				return true
			}
		}
		return false
	}

	// 設定ファイル（コマンドライン・環境変数が優先）
	if config.ConfigFile != "" {
		fc, err := loadConfigFile(config.ConfigFile)
		if err != nil {
			return nil, err
		}
		if fc.LogLevel != "" && !flagSet("log-level", "l") {
			config.LogLevel = strings.ToLower(fc.LogLevel)
		}
		if fc.LogFormat != "" && !flagSet("log-format") {
			config.LogFormat = strings.ToLower(fc.LogFormat)
		}
		if fc.Headless != nil && !flagSet("headless") {
			config.Headless = *fc.Headless
		}
		if fc.Timeout != nil && !flagSet("timeout", "t") {
			timeoutSec = *fc.Timeout
		}
		if fc.SoundFont != "" && !flagSet("soundfont") {
			config.SoundFont = fc.SoundFont
		}
		if fc.Encoding != "" && !flagSet("encoding") {
			config.Encoding = fc.Encoding
		}
	}

	// 環境変数からの設定（コマンドラインフラグが優先）
	if !flagSet("headless") {
		if headlessEnv := os.Getenv("HEADLESS"); headlessEnv != "" {
			config.Headless = headlessEnv == "1" || strings.ToLower(headlessEnv) == "true"
		}
	}

	// 環境変数からタイムアウトを取得（コマンドラインフラグが優先）
	if !flagSet("timeout", "t") {
		if timeoutEnv := os.Getenv("TIMEOUT"); timeoutEnv != "" {
			if t, err := strconv.Atoi(timeoutEnv); err == nil && t > 0 {
				timeoutSec = t
			}
		}
	}

	// 環境変数からログレベルを取得（コマンドラインフラグが優先）
	if !flagSet("log-level", "l") {
		if logLevelEnv := os.Getenv("LOG_LEVEL"); logLevelEnv != "" {
			config.LogLevel = strings.ToLower(logLevelEnv)
		}
	}

	if !flagSet("soundfont") {
		if sf := os.Getenv("DIMSCRIPT_SOUNDFONT"); sf != "" {
			config.SoundFont = sf
		}
	}

	// タイムアウトの検証
	if timeoutSec < 0 {
		return nil, fmt.Errorf("timeout must be non-negative, got %d", timeoutSec)
	}
	config.Timeout = time.Duration(timeoutSec) * time.Second

	// ログレベルの検証
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.LogLevel] {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.LogLevel)
	}
	if config.LogFormat != "text" && config.LogFormat != "json" {
		return nil, fmt.Errorf("invalid log format: %s (must be text or json)", config.LogFormat)
	}

	// 位置引数（プロジェクトのパス）
	if fs.NArg() > 0 {
		config.ProjectPath = fs.Arg(0)
		config.ProjectDir = filepath.Dir(config.ProjectPath)
	} else if !config.ShowHelp {
		return nil, ErrNoProject
	}

	return config, nil
}

func loadConfigFile(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &fc, nil
}

// reorderArgs 引数を並べ替えて、フラグを前に、位置引数を後ろに配置する
func reorderArgs(args []string) []string {
	var flags []string
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		// フラグかどうかを判定（-または--で始まる）
		if len(arg) > 0 && arg[0] == '-' {
			flags = append(flags, arg)

			// -t 5 のように値が次の引数にある場合
			if strings.Contains(arg, "=") || boolFlags[arg] {
				continue
			}
			if i+1 < len(args) && len(args[i+1]) > 0 && args[i+1][0] != '-' {
				i++
				flags = append(flags, args[i])
			}
		} else {
			// 位置引数
			positional = append(positional, arg)
		}
	}

	// フラグを前に、位置引数を後ろに配置
	return append(flags, positional...)
}

// PrintHelp ヘルプメッセージを表示
func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `dimscript - DimScript interpreter

Usage:
  dimscript [options] <project>

Arguments:
  project       プロジェクトファイル（.dimscript）またはスクリプトファイル
                画像・音声の相対パスはこのファイルのディレクトリから探す

Options:
  -t, --timeout <seconds>     指定秒数後にプログラムを終了（デフォルト: 無制限）
  -l, --log-level <level>     ログレベル: debug, info, warn, error（デフォルト: info）
  --log-format <format>       ログ形式: text, json（デフォルト: text）
  --headless                  ヘッドレスモード（GUIなし、音声は無音で再生時間だけ待つ）
  --soundfont <path>          MIDI再生用のSoundFont（.sf2）
  --encoding <name>           スクリプトの文字コード（デフォルト: auto）
  --config <path>             YAML設定ファイル
  --export <path>             読み込んだプロジェクトを .dimscript として書き出して終了
  -h, --help                  このヘルプを表示

Environment Variables:
  HEADLESS=1                  ヘッドレスモードを有効化
  TIMEOUT=<seconds>           タイムアウト時間（秒）
  LOG_LEVEL=<level>           ログレベル
  DIMSCRIPT_SOUNDFONT=<path>  SoundFontファイル

Examples:
  dimscript game.dimscript                 プロジェクトを実行
  dimscript --headless -t 5 hello.dms      ヘッドレスで5秒間実行
  dimscript --export out.dimscript a.dms   スクリプトをプロジェクトに変換
  HEADLESS=1 dimscript game.dimscript      環境変数でヘッドレスモード
`)
}
