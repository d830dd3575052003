package core

// KeyCode is a platform independent key. Letters and digits use their
// ASCII value.
type KeyCode uint16

const (
	KeyUnknown   KeyCode = 0x00
	KeyBackspace KeyCode = 0x08
	KeyTab       KeyCode = 0x09
	KeyEnter     KeyCode = 0x0D
	KeyEscape    KeyCode = 0x1B
	KeySpace     KeyCode = 0x20
	KeyLeft      KeyCode = 0x25
	KeyUp        KeyCode = 0x26
	KeyRight     KeyCode = 0x27
	KeyDown      KeyCode = 0x28
	Key0         KeyCode = 0x30
	Key9         KeyCode = 0x39
	KeyA         KeyCode = 0x41
	KeyD         KeyCode = 0x44
	KeyQ         KeyCode = 0x51
	KeyR         KeyCode = 0x52
	KeyS         KeyCode = 0x53
	KeyW         KeyCode = 0x57
	KeyZ         KeyCode = 0x5A
	KeyF1        KeyCode = 0x70
	KeyF12       KeyCode = 0x7B

	maxKeys = 256
)

type keyboardState struct {
	keys [maxKeys]bool
}

// InputState holds the current and previous keyboard state. Update copies
// current into previous once per frame.
type InputState struct {
	current  keyboardState
	previous keyboardState
	bus      *EventBus
}

// NewInputState returns an input state firing key events on bus, which may
// be nil.
func NewInputState(bus *EventBus) *InputState {
	return &InputState{bus: bus}
}

func (s *InputState) Update() {
	s.previous = s.current
}

func (s *InputState) IsKeyDown(key KeyCode) bool  { return s.current.keys[key%maxKeys] }
func (s *InputState) IsKeyUp(key KeyCode) bool    { return !s.current.keys[key%maxKeys] }
func (s *InputState) WasKeyDown(key KeyCode) bool { return s.previous.keys[key%maxKeys] }
func (s *InputState) WasKeyUp(key KeyCode) bool   { return !s.previous.keys[key%maxKeys] }

// ProcessKey records a key transition and fires a key event when the state
// actually changed.
func (s *InputState) ProcessKey(key KeyCode, pressed bool) {
	k := key % maxKeys
	if s.current.keys[k] == pressed {
		return
	}
	s.current.keys[k] = pressed
	if s.bus == nil {
		return
	}
	code := EventKeyReleased
	if pressed {
		code = EventKeyPressed
	}
	s.bus.Fire(Event{Code: code, Key: key})
}
