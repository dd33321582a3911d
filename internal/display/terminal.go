package display

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	"github.com/woxQAQ/fchost/internal/bridge"
)

// maxCompletions bounds the path autocomplete list.
const maxCompletions = 20

// TerminalConfig configures the terminal frontend.
type TerminalConfig struct {
	// ReleaseDelay is how long after the last press a key is released.
	ReleaseDelay time.Duration
	// Payload prefills the file field.
	Payload string
}

// Terminal draws frames with half-block cells and offers a file field that
// starts the guest, in the layout frame / status / file.
type Terminal struct {
	logger *zap.Logger
	config TerminalConfig

	app    *tview.Application
	rows   *tview.Flex
	screen *tview.Box
	status *tview.TextView
	file   *tview.InputField

	frames frameStore
	redraw notifier

	mu          sync.Mutex
	current     bridge.Status
	fileShown   bool
	fileEnabled bool
	ctl         Controller
	keys        *releaser
	scaled      *image.RGBA
}

// NewTerminal builds the terminal UI. Nothing is drawn until Run.
func NewTerminal(logger *zap.Logger, config TerminalConfig) *Terminal {
	t := &Terminal{
		logger: logger.With(zap.String("component", "frontend")),
		config: config,
		app:    tview.NewApplication(),
		rows: tview.NewFlex().
			SetDirection(tview.FlexRow),
		screen: tview.NewBox(),
		status: tview.NewTextView().
			SetWrap(false),
		file: tview.NewInputField().
			SetLabel("file: ").
			SetText(config.Payload),
		redraw:    newNotifier(),
		fileShown: true,
	}

	t.status.SetBackgroundColor(tcell.ColorDarkGrey)
	t.status.SetTextColor(tcell.ColorBlack)
	t.screen.SetDrawFunc(t.drawFrame)

	t.rows.
		AddItem(t.screen, 0, 1, false).
		AddItem(t.status, 1, 0, false).
		AddItem(t.file, 1, 0, true)
	t.app.SetRoot(t.rows, true)
	t.app.SetInputCapture(t.captureKey)

	t.file.SetAutocompleteFunc(completePath)
	t.file.SetAutocompletedFunc(func(text string, index, source int) bool {
		if source != tview.AutocompletedNavigate {
			t.file.SetText(text)
		}
		// Keep the list open while descending into directories.
		return !strings.HasSuffix(text, string(filepath.Separator))
	})
	t.file.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		t.submit(strings.TrimSpace(t.file.GetText()))
	})

	return t
}

// Present stores a copy of frame and asks for a redraw. It never blocks.
func (t *Terminal) Present(_ context.Context, frame *image.RGBA) error {
	t.frames.store(frame)
	t.redraw.notify()
	return nil
}

// Run shows the UI until ctx is done or the user presses Ctrl+C.
func (t *Terminal) Run(ctx context.Context, ctl Controller) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keys := newReleaser(t.config.ReleaseDelay, func(code string, pressed bool) {
		if err := ctl.SendKey(bridge.InputEvent{Code: code, Pressed: pressed}); err != nil {
			t.logger.Debug("Key not sent", zap.String("code", code), zap.Error(err))
		}
	})
	defer keys.stop()

	t.mu.Lock()
	t.ctl = ctl
	t.keys = keys
	t.mu.Unlock()

	ctl.Subscribe(t.setStatus)

	go func() {
		for {
			select {
			case <-ctx.Done():
				t.app.Stop()
				return
			case <-t.redraw:
				t.app.QueueUpdateDraw(t.applyStatus)
			}
		}
	}()

	t.logger.Info("Terminal frontend started")
	return t.app.Run()
}

// setStatus records st for the UI goroutine. It runs on whichever goroutine
// changed the host status and must not block.
func (t *Terminal) setStatus(st bridge.Status) {
	t.mu.Lock()
	t.current = st
	t.mu.Unlock()
	t.redraw.notify()
}

// applyStatus copies the last status into the widgets. UI goroutine only.
func (t *Terminal) applyStatus() {
	t.mu.Lock()
	st := t.current
	t.mu.Unlock()

	t.status.SetText(st.Text)
	switch st.State {
	case bridge.StateRejected, bridge.StateFailed:
		t.status.SetBackgroundColor(tcell.ColorDarkRed)
		t.status.SetTextColor(tcell.ColorWhite)
	case bridge.StateRunning:
		t.status.SetBackgroundColor(tcell.ColorDarkBlue)
		t.status.SetTextColor(tcell.ColorWhite)
	default:
		t.status.SetBackgroundColor(tcell.ColorDarkGrey)
		t.status.SetTextColor(tcell.ColorBlack)
	}

	t.fileEnabled = st.FileControlEnabled
	if t.fileEnabled {
		t.file.SetLabelColor(tcell.ColorYellow)
	} else {
		t.file.SetLabelColor(tcell.ColorGray)
	}

	switch {
	case st.FileControlVisible && !t.fileShown:
		t.rows.AddItem(t.file, 1, 0, true)
		t.fileShown = true
		t.app.SetFocus(t.file)
	case !st.FileControlVisible && t.fileShown:
		t.rows.RemoveItem(t.file)
		t.fileShown = false
		t.app.SetFocus(t.screen)
	}
}

func (t *Terminal) submit(path string) {
	if path == "" || !t.fileEnabled {
		return
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		t.status.SetText(fmt.Sprintf("could not read %s: %v", path, err))
		return
	}

	t.mu.Lock()
	ctl := t.ctl
	t.mu.Unlock()
	if err := ctl.SubmitPayload(filepath.Base(path), payload); err != nil {
		t.status.SetText(err.Error())
		return
	}
	// Stays off until the host reports a status accepting files again.
	t.fileEnabled = false
	t.file.SetLabelColor(tcell.ColorGray)
}

// captureKey routes pad keys to the guest once the file field is gone.
func (t *Terminal) captureKey(ev *tcell.EventKey) *tcell.EventKey {
	if t.fileShown {
		return ev
	}
	code, ok := terminalCode(ev)
	if !ok {
		return ev
	}

	t.mu.Lock()
	keys := t.keys
	t.mu.Unlock()
	if keys != nil {
		keys.press(code)
	}
	return nil
}

func (t *Terminal) drawFrame(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
	t.frames.with(func(img *image.RGBA) {
		t.scaled = fitHalfBlocks(t.scaled, img, width, height)
		b := t.scaled.Bounds()
		offX := x + (width-b.Dx())/2
		offY := y + (height-b.Dy()/2)/2

		for row := 0; row < b.Dy()/2; row++ {
			for col := 0; col < b.Dx(); col++ {
				style := tcell.StyleDefault.
					Foreground(cellColor(t.scaled, col, row*2)).
					Background(cellColor(t.scaled, col, row*2+1))
				screen.SetContent(offX+col, offY+row, '▀', nil, style)
			}
		}
	})
	return x, y, width, height
}

func cellColor(img *image.RGBA, x, y int) tcell.Color {
	i := img.PixOffset(x, y)
	return tcell.NewRGBColor(int32(img.Pix[i]), int32(img.Pix[i+1]), int32(img.Pix[i+2]))
}

// fitHalfBlocks scales src into cols×rows terminal cells, two pixels per
// cell vertically, keeping the aspect ratio. dst is reused when its size
// still fits.
func fitHalfBlocks(dst, src *image.RGBA, cols, rows int) *image.RGBA {
	sw, sh := src.Bounds().Dx(), src.Bounds().Dy()
	w, h := cols, rows*2
	if sw*h > sh*w {
		h = sh * w / sw
	} else {
		w = sw * h / sh
	}
	h &^= 1
	if w < 1 || h < 2 {
		w, h = 1, 2
	}

	if dst == nil || dst.Bounds().Dx() != w || dst.Bounds().Dy() != h {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// completePath lists paths starting with text. Directories end in a separator.
func completePath(text string) []string {
	if text == "" {
		return nil
	}
	matches, err := filepath.Glob(text + "*")
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	if len(matches) > maxCompletions {
		matches = matches[:maxCompletions]
	}
	for i, m := range matches {
		if info, err := os.Stat(m); err == nil && info.IsDir() {
			matches[i] = m + string(filepath.Separator)
		}
	}
	return matches
}
