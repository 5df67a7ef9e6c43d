// Package workflow drives the customer and driver rescue flows.
//
// A Flow is a pure description: ordered stages, the events each stage
// accepts and the delay after which timer-driven stages move on. A Session
// owns the mutable state of one visitor and dispatches events, including
// timer events, through Flow.Transition.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/ev-rescue/internal/sim"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
)

type Stage string

const (
	StageForm      Stage = "form"
	StageLogin     Stage = "login"
	StageDashboard Stage = "dashboard"
	StageWaiting   Stage = "waiting"
	StageAccepted  Stage = "accepted"
	StageEnroute   Stage = "enroute"
	StageArrived   Stage = "arrived"
	StageCharging  Stage = "charging"
	StageComplete  Stage = "complete"
	StagePayment   Stage = "payment"
	StageRating    Stage = "rating"
	StageThankYou  Stage = "thankyou"
)

type EventKind string

const (
	EventSubmit         EventKind = "submit"
	EventLogin          EventKind = "login"
	EventAccept         EventKind = "accept"
	EventTimer          EventKind = "timer"
	EventChargeComplete EventKind = "charge_complete"
	EventPaid           EventKind = "paid"
	EventRate           EventKind = "rate"
	EventReset          EventKind = "reset"
)

// Event is an input to Flow.Transition. Stage is set on timer events to the
// stage the timer was armed in; Stars is set on rate events.
type Event struct {
	Kind  EventKind
	Stage Stage
	Stars int
}

var (
	ErrInvalidTransition = errors.New("event not accepted in current stage")
	ErrStaleTimer        = errors.New("timer armed in a previous stage")
	ErrRatingRequired    = errors.New("rating is required")
	ErrRatingOutOfRange  = errors.New("rating must be between 1 and 5")
	ErrSessionClosed     = errors.New("session closed")
	ErrPaymentInProgress = errors.New("payment already in progress")
	ErrUnknownRequest    = errors.New("unknown rescue request")
)

// Timings holds every simulated delay and simulator parameter.
type Timings struct {
	Search   time.Duration // waiting -> accepted
	Dispatch time.Duration // accepted -> enroute
	Travel   time.Duration // enroute -> arrived
	Arrival  time.Duration // arrived -> charging
	Wrapup   time.Duration // complete -> payment

	ChargeTick          time.Duration
	ChargeRate          float64
	ChargeTarget        float64
	ChargeCompleteDelay time.Duration

	RouteSteps        int
	RouteStepInterval time.Duration

	PaymentProcessing time.Duration
	PaymentSuccess    time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		Search:              3 * time.Second,
		Dispatch:            4 * time.Second,
		Travel:              12 * time.Second,
		Arrival:             3 * time.Second,
		Wrapup:              2 * time.Second,
		ChargeTick:          time.Second,
		ChargeRate:          sim.DefaultChargeRate,
		ChargeTarget:        sim.DefaultChargeTarget,
		ChargeCompleteDelay: time.Second,
		RouteSteps:          sim.DefaultRouteSteps,
		RouteStepInterval:   500 * time.Millisecond,
		PaymentProcessing:   2 * time.Second,
		PaymentSuccess:      2 * time.Second,
	}
}

// Flow is an immutable, linear stage graph.
type Flow struct {
	role    Role
	order   []Stage
	index   map[Stage]int
	edges   map[Stage]map[EventKind]Stage
	delays  map[Stage]time.Duration
	timings Timings
}

func newFlow(role Role, t Timings) *Flow {
	return &Flow{
		role:    role,
		index:   make(map[Stage]int),
		edges:   make(map[Stage]map[EventKind]Stage),
		delays:  make(map[Stage]time.Duration),
		timings: t,
	}
}

func (f *Flow) add(from Stage) {
	if _, ok := f.index[from]; !ok {
		f.index[from] = len(f.order)
		f.order = append(f.order, from)
		f.edges[from] = make(map[EventKind]Stage)
	}
}

// on adds a user or simulator gated edge.
func (f *Flow) on(from Stage, kind EventKind, to Stage) *Flow {
	f.add(from)
	f.edges[from][kind] = to
	return f
}

// after adds a timer edge fired d after entering from.
func (f *Flow) after(from Stage, d time.Duration, to Stage) *Flow {
	f.on(from, EventTimer, to)
	f.delays[from] = d
	return f
}

func CustomerFlow(t Timings) *Flow {
	return newFlow(RoleCustomer, t).
		on(StageForm, EventSubmit, StageWaiting).
		after(StageWaiting, t.Search, StageAccepted).
		after(StageAccepted, t.Dispatch, StageEnroute).
		after(StageEnroute, t.Travel, StageArrived).
		after(StageArrived, t.Arrival, StageCharging).
		on(StageCharging, EventChargeComplete, StageComplete).
		after(StageComplete, t.Wrapup, StagePayment).
		on(StagePayment, EventPaid, StageRating).
		on(StageRating, EventRate, StageThankYou).
		on(StageThankYou, EventReset, StageForm)
}

func DriverFlow(t Timings) *Flow {
	return newFlow(RoleDriver, t).
		on(StageLogin, EventLogin, StageDashboard).
		on(StageDashboard, EventAccept, StageAccepted).
		after(StageAccepted, t.Dispatch, StageEnroute).
		after(StageEnroute, t.Travel, StageArrived).
		after(StageArrived, t.Arrival, StageCharging).
		on(StageCharging, EventChargeComplete, StageComplete).
		after(StageComplete, t.Wrapup, StagePayment).
		on(StagePayment, EventPaid, StageRating).
		on(StageRating, EventRate, StageThankYou).
		on(StageThankYou, EventReset, StageLogin)
}

// FlowFor returns the flow of a role, or false for unknown roles.
func FlowFor(role Role, t Timings) (*Flow, bool) {
	switch role {
	case RoleCustomer:
		return CustomerFlow(t), true
	case RoleDriver:
		return DriverFlow(t), true
	}
	return nil, false
}

func (f *Flow) Role() Role       { return f.role }
func (f *Flow) Initial() Stage   { return f.order[0] }
func (f *Flow) Timings() Timings { return f.timings }

func (f *Flow) Stages() []Stage {
	out := make([]Stage, len(f.order))
	copy(out, f.order)
	return out
}

// Index is the position of s in the stage order, or -1.
func (f *Flow) Index(s Stage) int {
	if i, ok := f.index[s]; ok {
		return i
	}
	return -1
}

// Delay reports the timer armed on entering s, if any.
func (f *Flow) Delay(s Stage) (time.Duration, bool) {
	d, ok := f.delays[s]
	return d, ok
}

// Accepts reports whether s has an edge for kind.
func (f *Flow) Accepts(s Stage, kind EventKind) bool {
	_, ok := f.edges[s][kind]
	return ok
}

// Transition is the pure transition function. On error the returned stage
// is from.
func (f *Flow) Transition(from Stage, ev Event) (Stage, error) {
	to, ok := f.edges[from][ev.Kind]
	if !ok {
		return from, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, ev.Kind, from)
	}
	switch ev.Kind {
	case EventTimer:
		if ev.Stage != from {
			return from, fmt.Errorf("%w: armed in %s, now %s", ErrStaleTimer, ev.Stage, from)
		}
	case EventRate:
		if ev.Stars == 0 {
			return from, ErrRatingRequired
		}
		if ev.Stars < 1 || ev.Stars > sim.MaxStars {
			return from, ErrRatingOutOfRange
		}
	}
	return to, nil
}
