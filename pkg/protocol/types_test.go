package protocol

import "testing"

func TestKeyCodes(t *testing.T) {
	codes := []KeyCode{
		KeyUnknown,
		KeyW,
		KeyA,
		KeyS,
		KeyD,
		KeyJ,
		KeyK,
		KeySpace,
		KeyControlLeft,
		KeyArrowUp,
		KeyArrowDown,
		KeyArrowLeft,
		KeyArrowRight,
		KeyNumpadEnter,
		KeyNumpadDecimal,
		KeyNumpad1,
		KeyNumpad2,
		KeyEscape,
		KeyEnter,
	}

	for i, code := range codes {
		if code != KeyCode(i) {
			t.Errorf("Key code mismatch: got %d, want %d", code, i)
		}
	}
}

func TestLookupKey(t *testing.T) {
	if got := LookupKey("KeyW"); got != KeyW {
		t.Errorf("LookupKey(KeyW) = %d, want %d", got, KeyW)
	}
	if got := LookupKey("ArrowLeft"); got != KeyArrowLeft {
		t.Errorf("LookupKey(ArrowLeft) = %d, want %d", got, KeyArrowLeft)
	}
	if got := LookupKey("F13"); got != KeyUnknown {
		t.Errorf("LookupKey(F13) = %d, want KeyUnknown", got)
	}
}

func TestKeyCodeString(t *testing.T) {
	if KeySpace.String() != "Space" {
		t.Errorf("KeySpace.String() = %s, want Space", KeySpace.String())
	}
	if KeyUnknown.String() != "Unidentified" {
		t.Errorf("KeyUnknown.String() = %s, want Unidentified", KeyUnknown.String())
	}
}

func TestFrameBytes(t *testing.T) {
	if got := FrameBytes(ScreenWidth, ScreenHeight); got != 261120 {
		t.Errorf("FrameBytes = %d, want 261120", got)
	}
}

func TestChunkSamples(t *testing.T) {
	if got := ChunkSamples(SampleRate, RenderPeriodMillis); got != 2205 {
		t.Errorf("ChunkSamples = %d, want 2205", got)
	}
}
