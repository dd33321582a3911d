package protocol

// KeyCode is the numeric key identifier passed to the guest on_key export.
// Hosts speak DOM KeyboardEvent.code names; the guest sees these ids.
type KeyCode uint32

const (
	KeyUnknown KeyCode = iota
	KeyW
	KeyA
	KeyS
	KeyD
	KeyJ
	KeyK
	KeySpace
	KeyControlLeft
	KeyArrowUp
	KeyArrowDown
	KeyArrowLeft
	KeyArrowRight
	KeyNumpadEnter
	KeyNumpadDecimal
	KeyNumpad1
	KeyNumpad2
	KeyEscape
	KeyEnter
)

var keyCodes = map[string]KeyCode{
	"KeyW":          KeyW,
	"KeyA":          KeyA,
	"KeyS":          KeyS,
	"KeyD":          KeyD,
	"KeyJ":          KeyJ,
	"KeyK":          KeyK,
	"Space":         KeySpace,
	"ControlLeft":   KeyControlLeft,
	"ArrowUp":       KeyArrowUp,
	"ArrowDown":     KeyArrowDown,
	"ArrowLeft":     KeyArrowLeft,
	"ArrowRight":    KeyArrowRight,
	"NumpadEnter":   KeyNumpadEnter,
	"NumpadDecimal": KeyNumpadDecimal,
	"Numpad1":       KeyNumpad1,
	"Numpad2":       KeyNumpad2,
	"Escape":        KeyEscape,
	"Enter":         KeyEnter,
}

// LookupKey maps a DOM code name to its id. Unknown names map to KeyUnknown.
func LookupKey(code string) KeyCode {
	return keyCodes[code]
}

// String returns the DOM code name of k, or "Unidentified".
func (k KeyCode) String() string {
	for name, c := range keyCodes {
		if c == k {
			return name
		}
	}
	return "Unidentified"
}
