package clock

import "time"

// Clock supplies the current instant. Injected so slot expiry rules can be
// tested against a fixed time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func System() Clock { return systemClock{} }
