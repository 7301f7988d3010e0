// Package terminal is the text mode frontend used by the ssh arcade and the
// local play command.
package terminal

import (
	"io"
	"time"

	"github.com/mpapenbr/nebula-racers-go/pkg/model"
)

// Terminals only report key presses. A key counts as held while its
// autorepeat keeps arriving within the hold duration.
const (
	DefaultHold = 150 * time.Millisecond
	// the first autorepeat arrives late, the first press is held longer
	initialHold = 550 * time.Millisecond
)

type Command int

const (
	CmdNone Command = iota
	CmdQuit
	CmdStart
	CmdReset
	CmdMenu
	CmdLaps3
	CmdLaps5
	CmdLaps10
)

type action int

const (
	actLeft action = iota
	actRight
	actBrake
	actBoost
	numActions
)

// Keys decodes raw terminal input into controls and commands.
type Keys struct {
	ch       chan byte
	hold     time.Duration
	until    [numActions]time.Time
	throttle bool
	pending  []byte
	closed   bool
}

type KeysOption func(*Keys)

func WithHold(d time.Duration) KeysOption {
	return func(k *Keys) {
		k.hold = d
	}
}

// NewKeys starts reading r in the background. Reading stops when r fails.
func NewKeys(r io.Reader, opts ...KeysOption) *Keys {
	k := &Keys{ch: make(chan byte, 256), hold: DefaultHold, throttle: true}
	for _, opt := range opts {
		opt(k)
	}
	go func() {
		buf := make([]byte, 64)
		for {
			n, err := r.Read(buf)
			for _, b := range buf[:n] {
				k.ch <- b
			}
			if err != nil {
				close(k.ch)
				return
			}
		}
	}()
	return k
}

// Closed reports whether the input stream ended.
func (k *Keys) Closed() bool { return k.closed }

// Throttle reports whether the ship accelerates on its own.
func (k *Keys) Throttle() bool { return k.throttle }

// Poll consumes all available input. It returns the commands in the order
// they were typed and the controls held at now.
func (k *Keys) Poll(now time.Time) ([]Command, model.ControlInput) {
	buf := k.pending
	k.pending = nil
drain:
	for {
		select {
		case b, ok := <-k.ch:
			if !ok {
				k.closed = true
				break drain
			}
			buf = append(buf, b)
		default:
			break drain
		}
	}
	cmds := k.parse(buf, now)
	return cmds, k.Controls(now)
}

// Controls are the inputs held at now.
func (k *Keys) Controls(now time.Time) model.ControlInput {
	held := func(a action) bool { return now.Before(k.until[a]) }
	return model.ControlInput{
		Forward:   k.throttle && !held(actBrake),
		Brake:     held(actBrake),
		TurnLeft:  held(actLeft),
		TurnRight: held(actRight),
		Boost:     held(actBoost),
	}
}

func (k *Keys) parse(buf []byte, now time.Time) []Command {
	var cmds []Command
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		if b != 0x1b {
			if c := k.key(b, now); c != CmdNone {
				cmds = append(cmds, c)
			}
			continue
		}
		if i+1 < len(buf) && buf[i+1] == '[' {
			if i+2 == len(buf) {
				// sequence split across reads
				k.pending = append(k.pending, buf[i:]...)
				break
			}
			switch final := buf[i+2]; final {
			case 'A':
				k.throttle = !k.throttle
			default:
				if a, ok := arrow(final); ok {
					k.press(a, now)
				}
			}
			i += 2
			continue
		}
		cmds = append(cmds, CmdMenu)
	}
	return cmds
}

func arrow(b byte) (action, bool) {
	switch b {
	case 'B':
		return actBrake, true
	case 'C':
		return actRight, true
	case 'D':
		return actLeft, true
	}
	return 0, false
}

func (k *Keys) key(b byte, now time.Time) Command {
	switch b {
	case 'q', 'Q', 0x03:
		return CmdQuit
	case '\r', '\n':
		return CmdStart
	case 'r', 'R':
		return CmdReset
	case 'm', 'M':
		return CmdMenu
	case '3':
		return CmdLaps3
	case '5':
		return CmdLaps5
	case '0', '1':
		return CmdLaps10
	case 'w', 'W':
		k.throttle = !k.throttle
	case 'a', 'A':
		k.press(actLeft, now)
	case 'd', 'D':
		k.press(actRight, now)
	case 's', 'S':
		k.press(actBrake, now)
	case ' ':
		k.press(actBoost, now)
	}
	return CmdNone
}

// press extends the hold of a. A press after a pause is treated as the
// start of a new hold which has to bridge the autorepeat delay.
func (k *Keys) press(a action, now time.Time) {
	hold := k.hold
	if now.After(k.until[a]) {
		hold = initialHold
	}
	k.until[a] = now.Add(hold)
	if a == actLeft {
		k.until[actRight] = time.Time{}
	}
	if a == actRight {
		k.until[actLeft] = time.Time{}
	}
}
