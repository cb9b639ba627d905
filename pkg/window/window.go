// Package window shows a surface.Scene in an Ebitengine window and feeds
// mouse and touch input back to the VM as pointer events.
package window

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/zurustar/dimscript/pkg/logger"
	"github.com/zurustar/dimscript/pkg/surface"
	"github.com/zurustar/dimscript/pkg/vm"
	"golang.org/x/image/font/basicfont"
)

// 画面サイズ
const (
	ScreenWidth  = 1024
	ScreenHeight = 768
)

// Flow console layout
const (
	consoleX      = 8
	consoleY      = 8
	lineHeight    = 16
	swatchSize    = 14
	maxShownLines = (ScreenHeight - consoleY) / lineHeight
)

var (
	backgroundColor = color.RGBA{0x1E, 0x1E, 0x1E, 0xFF}
	consoleColor    = color.RGBA{0x00, 0xFF, 0x88, 0xFF}
	buttonTextColor = color.RGBA{0x10, 0x10, 0x10, 0xFF}
	// デフォルトフォント
	defaultFace = text.NewGoXFace(basicfont.Face7x13)
)

// Scene is what the window draws.
type Scene interface {
	Entries() []surface.Entry
	Elements() []*surface.Element
}

// PointerPusher receives input. *vm.VM implements it.
type PointerPusher interface {
	PushPointer(ev vm.PointerEvent)
}

// Game はEbitengineのゲームインターフェースを実装する
type Game struct {
	scene     Scene
	pusher    PointerPusher
	timeout   time.Duration
	startTime time.Time

	// VM startup control
	startFunc func() // 最初のUpdateで一度だけ呼ぶ
	started   bool
	onExit    func()

	// Input state
	lastX, lastY float64
	hasCursor    bool
	touches      map[ebiten.TouchID]touchPoint

	images map[image.Image]*ebiten.Image
	mu     sync.Mutex
}

type touchPoint struct {
	x, y float64
}

// NewGame Gameを作成。timeoutが0なら無制限
func NewGame(scene Scene, pusher PointerPusher, timeout time.Duration) *Game {
	return &Game{
		scene:     scene,
		pusher:    pusher,
		timeout:   timeout,
		startTime: time.Now(),
		touches:   make(map[ebiten.TouchID]touchPoint),
		images:    make(map[image.Image]*ebiten.Image),
	}
}

// SetStartFunc sets the function that starts the script. It is called on
// the first Update so Ebitengine is fully initialized before the script
// runs.
func (g *Game) SetStartFunc(start func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.startFunc = start
}

// SetOnExit sets the function called when the user closes the window with
// Escape.
func (g *Game) SetOnExit(exit func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onExit = exit
}

// Update ゲームロジックの更新（Ebitengineが毎フレーム呼び出す）
func (g *Game) Update() error {
	if g.timedOut(time.Now()) {
		return ebiten.Termination
	}

	g.mu.Lock()
	if !g.started && g.startFunc != nil {
		g.started = true
		go g.startFunc()
	}
	onExit := g.onExit
	g.mu.Unlock()

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		if onExit != nil {
			onExit()
		}
		return ebiten.Termination
	}

	g.handleInput(readInput())
	return nil
}

func (g *Game) timedOut(now time.Time) bool {
	return g.timeout > 0 && now.Sub(g.startTime) >= g.timeout
}

// frameInput is the pointer state sampled in one frame.
type frameInput struct {
	cursorX, cursorY int
	cursorIn         bool
	clicked          bool // left button released
	touches          map[ebiten.TouchID]touchPoint
	released         []ebiten.TouchID
}

func readInput() frameInput {
	in := frameInput{touches: make(map[ebiten.TouchID]touchPoint)}
	in.cursorX, in.cursorY = ebiten.CursorPosition()
	in.cursorIn = in.cursorX >= 0 && in.cursorY >= 0 && in.cursorX < ScreenWidth && in.cursorY < ScreenHeight
	in.clicked = inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft)

	for _, id := range ebiten.AppendTouchIDs(nil) {
		x, y := ebiten.TouchPosition(id)
		in.touches[id] = touchPoint{float64(x), float64(y)}
	}
	in.released = inpututil.AppendJustReleasedTouchIDs(nil)
	return in
}

// handleInput turns one frame of input into pointer events: cursor moves
// become PointerMove, a left-button release a PointerClick, touch moves
// TouchMove, and a lifted finger TouchEnd followed by a click where it was
// lifted.
func (g *Game) handleInput(in frameInput) {
	if g.pusher == nil {
		return
	}

	if in.cursorIn {
		x, y := float64(in.cursorX), float64(in.cursorY)
		if !g.hasCursor || x != g.lastX || y != g.lastY {
			g.pusher.PushPointer(vm.PointerEvent{Kind: vm.PointerMove, X: x, Y: y})
			g.lastX, g.lastY, g.hasCursor = x, y, true
		}
		if in.clicked {
			g.pusher.PushPointer(vm.PointerEvent{Kind: vm.PointerClick, X: x, Y: y})
		}
	}

	for id, p := range in.touches {
		if prev, ok := g.touches[id]; ok && prev == p {
			continue
		}
		g.touches[id] = p
		g.pusher.PushPointer(vm.PointerEvent{Kind: vm.TouchMove, X: p.x, Y: p.y})
	}

	for _, id := range in.released {
		p, ok := g.touches[id]
		if !ok {
			continue
		}
		delete(g.touches, id)
		g.pusher.PushPointer(vm.PointerEvent{Kind: vm.TouchEnd, X: p.x, Y: p.y})
		g.pusher.PushPointer(vm.PointerEvent{Kind: vm.PointerClick, X: p.x, Y: p.y})
	}
}

// Draw 画面描画（Ebitengineが毎フレーム呼び出す）
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(backgroundColor)
	g.drawConsole(screen)
	for _, e := range g.scene.Elements() {
		g.drawElement(screen, e.Snapshot())
	}
}

// drawConsole draws the newest console entries that fit, top-left.
func (g *Game) drawConsole(screen *ebiten.Image) {
	entries := g.scene.Entries()
	if len(entries) > maxShownLines {
		entries = entries[len(entries)-maxShownLines:]
	}

	for i, entry := range entries {
		y := float64(consoleY + i*lineHeight)
		switch entry.Kind {
		case surface.EntrySwatch:
			vector.FillRect(screen, consoleX, float32(y), swatchSize, swatchSize, entry.Color, false)
		default:
			op := &text.DrawOptions{}
			op.GeoM.Translate(consoleX, y)
			op.ColorScale.ScaleWithColor(consoleColor)
			text.Draw(screen, entry.Text, defaultFace, op)
		}
	}
}

func (g *Game) drawElement(screen *ebiten.Image, st surface.State) {
	switch st.Kind {
	case surface.KindCircle, surface.KindNail:
		cx, cy := st.X+st.W/2, st.Y+st.H/2
		fillPolygon(screen, ellipse(cx, cy, st.W/2, st.H/2), st.Color)
	case surface.KindImage:
		g.drawImage(screen, st)
	case surface.KindText:
		drawLabel(screen, st, st.Color, false)
	case surface.KindButton:
		fillPolygon(screen, corners(st), st.Color)
		drawLabel(screen, st, buttonTextColor, true)
	default:
		fillPolygon(screen, corners(st), st.Color)
	}
}

func (g *Game) drawImage(screen *ebiten.Image, st surface.State) {
	if st.Image == nil {
		return
	}
	img := g.ebitenImage(st.Image)
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(st.W/float64(b.Dx()), st.H/float64(b.Dy()))
	rotateAbout(&op.GeoM, st)
	screen.DrawImage(img, op)
}

// ebitenImage converts and caches project images.
func (g *Game) ebitenImage(src image.Image) *ebiten.Image {
	g.mu.Lock()
	defer g.mu.Unlock()
	if img, ok := g.images[src]; ok {
		return img
	}
	img := ebiten.NewImageFromImage(src)
	g.images[src] = img
	return img
}

func drawLabel(screen *ebiten.Image, st surface.State, c color.Color, centered bool) {
	op := &text.DrawOptions{}
	if centered {
		w, h := text.Measure(st.Text, defaultFace, 0)
		op.GeoM.Translate((st.W-w)/2, (st.H-h)/2)
	}
	rotateAbout(&op.GeoM, st)
	op.ColorScale.ScaleWithColor(c)
	text.Draw(screen, st.Text, defaultFace, op)
}

// rotateAbout moves geometry local to the element box into place, rotated
// about the box centre.
func rotateAbout(m *ebiten.GeoM, st surface.State) {
	m.Translate(-st.W/2, -st.H/2)
	m.Rotate(st.Rotation * math.Pi / 180)
	m.Translate(st.X+st.W/2, st.Y+st.H/2)
}

// corners returns the rotated corners of the element box.
func corners(st surface.State) []point {
	cx, cy := st.X+st.W/2, st.Y+st.H/2
	rad := st.Rotation * math.Pi / 180
	sin, cos := math.Sincos(rad)
	pts := []point{
		{-st.W / 2, -st.H / 2},
		{st.W / 2, -st.H / 2},
		{st.W / 2, st.H / 2},
		{-st.W / 2, st.H / 2},
	}
	for i, p := range pts {
		pts[i] = point{cx + p.x*cos - p.y*sin, cy + p.x*sin + p.y*cos}
	}
	return pts
}

type point struct {
	x, y float64
}

func ellipse(cx, cy, rx, ry float64) []point {
	// 楕円を多角形として近似
	segments := int(math.Max(rx, ry) * 2)
	segments = max(16, min(segments, 360))

	pts := make([]point, segments)
	for i := range pts {
		angle := float64(i) * 2 * math.Pi / float64(segments)
		pts[i] = point{cx + rx*math.Cos(angle), cy + ry*math.Sin(angle)}
	}
	return pts
}

func fillPolygon(dst *ebiten.Image, pts []point, c color.Color) {
	if len(pts) < 3 {
		return
	}
	var path vector.Path
	path.MoveTo(float32(pts[0].x), float32(pts[0].y))
	for _, p := range pts[1:] {
		path.LineTo(float32(p.x), float32(p.y))
	}
	path.Close()

	vs, is := path.AppendVerticesAndIndicesForFilling(nil, nil)
	r, g, b, a := c.RGBA()
	for i := range vs {
		vs[i].SrcX, vs[i].SrcY = 1, 1
		vs[i].ColorR = float32(r) / 0xFFFF
		vs[i].ColorG = float32(g) / 0xFFFF
		vs[i].ColorB = float32(b) / 0xFFFF
		vs[i].ColorA = float32(a) / 0xFFFF
	}
	dst.DrawTriangles(vs, is, whiteSubImage, &ebiten.DrawTrianglesOptions{AntiAlias: true})
}

var (
	whiteImage = func() *ebiten.Image {
		img := ebiten.NewImage(3, 3)
		img.Fill(color.White)
		return img
	}()
	// whiteSubImage は縁のにじみを避けるため中央の1ピクセルだけを使う
	whiteSubImage = whiteImage.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
)

// Layout 画面サイズを返す
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ScreenWidth, ScreenHeight
}

// Run GUIモードでウィンドウを実行する。ウィンドウが閉じるまで戻らない
func Run(game *Game, windowTitle string) error {
	ebiten.SetWindowSize(ScreenWidth, ScreenHeight)
	ebiten.SetWindowTitle(windowTitle)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	logger.GetLogger().Debug("window opened", "title", windowTitle)
	if err := ebiten.RunGame(game); err != nil {
		return fmt.Errorf("failed to run game: %w", err)
	}
	return nil
}
