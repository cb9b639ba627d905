package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"
	"unicode/utf8"

	ebaudio "github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/zurustar/dimscript/pkg/audio"
	"github.com/zurustar/dimscript/pkg/cli"
	"github.com/zurustar/dimscript/pkg/dialog"
	"github.com/zurustar/dimscript/pkg/fileutil"
	"github.com/zurustar/dimscript/pkg/logger"
	"github.com/zurustar/dimscript/pkg/project"
	"github.com/zurustar/dimscript/pkg/script"
	"github.com/zurustar/dimscript/pkg/surface"
	"github.com/zurustar/dimscript/pkg/vm"
	"github.com/zurustar/dimscript/pkg/window"
)

// Application はアプリケーションのメインロジックを管理する
type Application struct {
	config *cli.Config
	log    *slog.Logger
	assets fs.FS // 埋め込みアセット（soundfonts/ など）。nil可

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time
}

// Option is a functional option for configuring the Application.
type Option func(*Application)

// WithIO replaces the process standard streams. Headless console output
// and dialogs use stdin/stdout; logs go to stderr.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(app *Application) {
		app.stdin = stdin
		app.stdout = stdout
		app.stderr = stderr
	}
}

// New Applicationを作成
func New(assets fs.FS, opts ...Option) *Application {
	app := &Application{
		assets: assets,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(app)
	}
	return app
}

// Run アプリケーションを実行
func (app *Application) Run(args []string) error {
	// 1. コマンドライン引数の解析
	config, err := cli.ParseArgs(args)
	if err != nil {
		if errors.Is(err, cli.ErrNoProject) {
			cli.PrintHelp(app.stdout)
		}
		return fmt.Errorf("failed to parse args: %w", err)
	}
	app.config = config

	if config.ShowHelp {
		cli.PrintHelp(app.stdout)
		return nil
	}

	// 2. ロガーの初期化
	if err := logger.InitLogger(config.LogLevel, config.LogFormat, app.stderr); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.log = logger.GetLogger()
	app.log.Info("Application started", "project", config.ProjectPath, "headless", config.Headless)

	// 3. プロジェクトの読み込み
	projectFS := fileutil.NewRealFS(config.ProjectDir)
	bundle, err := project.Load(projectFS, filepath.Base(config.ProjectPath), config.Encoding)
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	app.log.Info("Project loaded", "images", len(bundle.Images))
	app.log.Debug("Script preview", "code", truncate(bundle.Code, 100))

	// 4. 書き出しのみ
	if config.ExportPath != "" {
		return app.export(bundle)
	}

	// 5. 実行
	s := bundle.Script(filepath.Base(config.ProjectPath))
	if config.Headless {
		return app.runHeadless(bundle, projectFS, s)
	}
	return app.runWindow(bundle, projectFS, s)
}

// export writes bundle to the export path. A directory gets the default
// export file name.
func (app *Application) export(bundle *project.Bundle) error {
	path := app.config.ExportPath
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, project.ExportName(app.now()))
	}
	if err := bundle.Save(path); err != nil {
		return fmt.Errorf("failed to export project: %w", err)
	}
	app.log.Info("Project exported", "path", path)
	return nil
}

// newMachine wires a VM to scene and the project's images, sounds and
// dialogs.
func (app *Application) newMachine(bundle *project.Bundle, projectFS fileutil.FileSystem, scene *surface.Scene, audioCtx *ebaudio.Context) *vm.VM {
	playerOpts := []audio.Option{audio.WithFileSystem(projectFS)}
	if audioCtx != nil {
		playerOpts = append(playerOpts, audio.WithContext(audioCtx))
	}
	if sf := findSoundFont(app.assets, app.config.SoundFont, app.config.ProjectDir); sf != nil {
		app.log.Debug("SoundFont found", "path", sf.Path, "embedded", sf.IsEmbedded)
		playerOpts = append(playerOpts, audio.WithSoundFont(sf.FileSystem, sf.Path))
	} else {
		app.log.Debug("No SoundFont found, MIDI sounds will fail")
	}

	return vm.New(scene, scene,
		vm.WithAudio(audio.NewPlayer(playerOpts...)),
		vm.WithDialog(dialog.NewTerminal(app.stdin, app.stdout)),
		vm.WithImages(project.NewLibrary(bundle)),
	)
}

// runHeadless runs the script with console output on stdout. After the
// script ends, timers and handlers stay live until the timeout; without a
// timeout the program ends with the script.
func (app *Application) runHeadless(bundle *project.Bundle, projectFS fileutil.FileSystem, s *script.Script) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if app.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, app.config.Timeout)
		defer cancel()
	}

	scene := surface.NewScene(surface.WithMirror(app.stdout))
	machine := app.newMachine(bundle, projectFS, scene, nil)
	defer machine.Close()

	err := machine.Run(ctx, s)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}

	if app.config.Timeout > 0 && ctx.Err() == nil {
		app.log.Info("Script finished, waiting for timeout", "duration", app.config.Timeout)
		<-ctx.Done()
	}
	app.log.Info("Application terminated normally")
	return nil
}

// runWindow runs the script behind an Ebitengine window. Closing the
// window resets the VM so a blocked wait or sound returns.
func (app *Application) runWindow(bundle *project.Bundle, projectFS fileutil.FileSystem, s *script.Script) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scene := surface.NewScene()
	machine := app.newMachine(bundle, projectFS, scene, ebaudio.NewContext(audio.SampleRate))
	defer machine.Close()

	game := window.NewGame(scene, machine, app.config.Timeout)
	game.SetStartFunc(func() {
		if err := machine.Run(ctx, s); err != nil && !errors.Is(err, context.Canceled) {
			app.log.Error("Script run failed", "error", err)
		}
	})
	game.SetOnExit(machine.Reset)

	if err := window.Run(game, "dimscript - "+s.Name); err != nil {
		return err
	}
	cancel()
	app.log.Info("Application terminated normally")
	return nil
}

// truncate 文字列を指定した長さで切り詰める
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
