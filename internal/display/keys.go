package display

import (
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/mobile/event/key"
)

// Unidentified is the code sent for keys the window cannot name.
const Unidentified = "Unidentified"

var terminalRunes = map[rune]string{
	'w': "KeyW",
	'a': "KeyA",
	's': "KeyS",
	'd': "KeyD",
	'j': "KeyJ",
	'k': "KeyK",
	' ': "Space",
	'1': "Numpad1",
	'2': "Numpad2",
	'.': "NumpadDecimal",
}

var terminalKeys = map[tcell.Key]string{
	tcell.KeyUp:     "ArrowUp",
	tcell.KeyDown:   "ArrowDown",
	tcell.KeyLeft:   "ArrowLeft",
	tcell.KeyRight:  "ArrowRight",
	tcell.KeyEnter:  "Enter",
	tcell.KeyEscape: "Escape",
	// Terminals never report a lone Ctrl; Tab stands in for ControlLeft.
	tcell.KeyTab: "ControlLeft",
}

// terminalCode maps a tcell key event to a DOM code name.
func terminalCode(ev *tcell.EventKey) (string, bool) {
	if ev.Key() == tcell.KeyRune {
		r := ev.Rune()
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		code, ok := terminalRunes[r]
		return code, ok
	}
	code, ok := terminalKeys[ev.Key()]
	return code, ok
}

var windowKeys = map[key.Code]string{
	key.CodeW:              "KeyW",
	key.CodeA:              "KeyA",
	key.CodeS:              "KeyS",
	key.CodeD:              "KeyD",
	key.CodeJ:              "KeyJ",
	key.CodeK:              "KeyK",
	key.CodeSpacebar:       "Space",
	key.CodeLeftControl:    "ControlLeft",
	key.CodeUpArrow:        "ArrowUp",
	key.CodeDownArrow:      "ArrowDown",
	key.CodeLeftArrow:      "ArrowLeft",
	key.CodeRightArrow:     "ArrowRight",
	key.CodeKeypadEnter:    "NumpadEnter",
	key.CodeKeypadFullStop: "NumpadDecimal",
	key.CodeKeypad1:        "Numpad1",
	key.CodeKeypad2:        "Numpad2",
	key.CodeEscape:         "Escape",
	key.CodeReturnEnter:    "Enter",
}

// windowCode maps a window key code to a DOM code name.
func windowCode(c key.Code) string {
	if code, ok := windowKeys[c]; ok {
		return code
	}
	if c == key.CodeUnknown {
		return Unidentified
	}
	// Keys without a pad mapping keep their own name, e.g. CodeF5 is "F5".
	return strings.TrimPrefix(c.String(), "Code")
}

// releaser turns the press-only key stream of a terminal into press and
// release pairs. Every repeat forwards as another press, and a key counts as
// held until delay passes without one.
type releaser struct {
	mu    sync.Mutex
	delay time.Duration
	send  func(code string, pressed bool)
	held  map[string]*time.Timer
}

func newReleaser(delay time.Duration, send func(code string, pressed bool)) *releaser {
	return &releaser{
		delay: delay,
		send:  send,
		held:  make(map[string]*time.Timer),
	}
}

func (r *releaser) press(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.send(code, true)
	if t, ok := r.held[code]; ok {
		t.Reset(r.delay)
		return
	}
	if r.delay <= 0 {
		r.send(code, false)
		return
	}
	r.held[code] = time.AfterFunc(r.delay, func() { r.release(code) })
}

func (r *releaser) release(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.held[code]; !ok {
		return
	}
	delete(r.held, code)
	r.send(code, false)
}

// stop releases every held key.
func (r *releaser) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for code, t := range r.held {
		t.Stop()
		delete(r.held, code)
		r.send(code, false)
	}
}
