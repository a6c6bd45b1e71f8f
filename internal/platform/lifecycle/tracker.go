// Package lifecycle tracks the status of one kind of remote operation:
//
//	idle --invoke--> loading --succeed--> succeeded
//	                 loading --fail-----> failed
//	succeeded|failed --reset--> idle
//
// Invoking while loading starts a new attempt over the old one. Every
// invocation gets a generation number so callers can tell whether the
// response they hold belongs to the latest attempt. A response arriving
// after a reset settles the tracker again unless the stale guard is on.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

const (
	eventInvoke  = "invoke"
	eventSucceed = "succeed"
	eventFail    = "fail"
	eventReset   = "reset"
)

// ErrMissingError is recorded when Fail is called with a nil error, so that
// a failed tracker always carries one.
var ErrMissingError = errors.New("operation failed without an error")

// State is a point-in-time copy of a tracker.
type State struct {
	Status     Status    `json:"status"`
	Err        error     `json:"-"`
	Error      string    `json:"error,omitempty"`
	Message    string    `json:"message,omitempty"`
	Generation uint64    `json:"generation"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Loading reports whether an attempt is in flight.
func (s State) Loading() bool { return s.Status == StatusLoading }

type Option func(*Tracker)

// WithStaleGuard makes Succeed and Fail ignore any generation other than
// the latest. Without it the last response to arrive wins.
func WithStaleGuard() Option {
	return func(t *Tracker) { t.guard = true }
}

// WithObserver is called with every status entered. It runs while the
// tracker is locked and must not call back into it.
func WithObserver(fn func(Status)) Option {
	return func(t *Tracker) { t.observer = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

type Tracker struct {
	mu       sync.Mutex
	machine  *fsm.FSM
	state    State
	guard    bool
	observer func(Status)
	now      func() time.Time
}

func New(opts ...Option) *Tracker {
	t := &Tracker{now: time.Now}
	for _, o := range opts {
		o(t)
	}
	settled := []string{string(StatusIdle), string(StatusLoading), string(StatusSucceeded), string(StatusFailed)}
	t.machine = fsm.NewFSM(
		string(StatusIdle),
		fsm.Events{
			{Name: eventInvoke, Src: []string{string(StatusIdle), string(StatusLoading), string(StatusSucceeded), string(StatusFailed)}, Dst: string(StatusLoading)},
			{Name: eventSucceed, Src: settled, Dst: string(StatusSucceeded)},
			{Name: eventFail, Src: settled, Dst: string(StatusFailed)},
			{Name: eventReset, Src: []string{string(StatusIdle), string(StatusSucceeded), string(StatusFailed)}, Dst: string(StatusIdle)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				if t.observer != nil {
					t.observer(Status(e.Dst))
				}
			},
		},
	)
	t.state = State{Status: StatusIdle, UpdatedAt: t.now()}
	return t
}

// Begin moves the tracker to loading, clears the previous error and
// returns the generation of the new attempt.
func (t *Tracker) Begin() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.fire(eventInvoke) {
		return t.state.Generation
	}
	t.state.Generation++
	t.state.Status = StatusLoading
	t.state.Err = nil
	t.state.Error = ""
	t.state.Message = ""
	t.state.UpdatedAt = t.now()
	return t.state.Generation
}

// Succeed settles the attempt gen. It returns false when the response was
// discarded as stale.
func (t *Tracker) Succeed(gen uint64, message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.settles(gen) || !t.fire(eventSucceed) {
		return false
	}
	t.state.Status = StatusSucceeded
	t.state.Err = nil
	t.state.Error = ""
	t.state.Message = message
	t.state.UpdatedAt = t.now()
	return true
}

// Fail settles the attempt gen with err. It returns false when the response
// was discarded as stale.
func (t *Tracker) Fail(gen uint64, err error) bool {
	if err == nil {
		err = ErrMissingError
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.settles(gen) || !t.fire(eventFail) {
		return false
	}
	t.state.Status = StatusFailed
	t.state.Err = err
	t.state.Error = err.Error()
	t.state.Message = displayMessage(err)
	t.state.UpdatedAt = t.now()
	return true
}

// displayMessage prefers the text meant for end users when err carries one.
func displayMessage(err error) string {
	var um interface{ UserMessage() string }
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return err.Error()
}

// Reset returns a settled tracker to idle. It returns false while an
// attempt is in flight.
func (t *Tracker) Reset() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.fire(eventReset) {
		return false
	}
	t.state.Status = StatusIdle
	t.state.Err = nil
	t.state.Error = ""
	t.state.Message = ""
	t.state.UpdatedAt = t.now()
	return true
}

// State returns a copy of the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Latest reports whether gen is the most recent attempt.
func (t *Tracker) Latest(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return gen == t.state.Generation
}

// settles reports whether a response for gen may settle the tracker. With
// the guard only the latest attempt settles, and only while loading or
// settled. Without it any attempt that was begun settles, including one
// answering after a reset.
func (t *Tracker) settles(gen uint64) bool {
	if gen == 0 || gen > t.state.Generation {
		return false
	}
	if t.guard {
		return gen == t.state.Generation && t.state.Status != StatusIdle
	}
	return true
}

// fire runs event on the machine. A transition into the current state is
// not an error.
func (t *Tracker) fire(event string) bool {
	// Transitions never see the caller's context; a cancelled caller still
	// settles its attempt.
	err := t.machine.Event(context.Background(), event)
	if err == nil {
		return true
	}
	var same fsm.NoTransitionError
	return errors.As(err, &same)
}
