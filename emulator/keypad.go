package emulator

const KeyCount = 16

// Keypad is the state of the 16-key hex pad. Besides the level of each key
// it remembers the most recent up-to-down transition, which is what FX0A
// waits for.
type Keypad struct {
	keys    [KeyCount]bool
	edge    uint8
	hasEdge bool
}

// Set updates the state of key. Keys outside 0-F are ignored.
func (k *Keypad) Set(key uint8, pressed bool) {
	if key >= KeyCount {
		return
	}
	if pressed && !k.keys[key] {
		k.edge = key
		k.hasEdge = true
	}
	k.keys[key] = pressed
}

// Pressed reports whether key is currently held down.
func (k *Keypad) Pressed(key uint8) bool {
	return key < KeyCount && k.keys[key]
}

// Keys returns the current key states.
func (k *Keypad) Keys() [KeyCount]bool {
	return k.keys
}

// takePress consumes the pending key-down edge, if any.
func (k *Keypad) takePress() (uint8, bool) {
	if !k.hasEdge {
		return 0, false
	}
	k.hasEdge = false
	return k.edge, true
}

func (k *Keypad) clearPress() {
	k.hasEdge = false
}

func (k *Keypad) reset() {
	*k = Keypad{}
}
