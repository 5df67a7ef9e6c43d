package workflow

import (
	"context"
	"time"

	"github.com/example/ev-rescue/internal/models"
	"github.com/example/ev-rescue/internal/sim"
)

type Transition struct {
	From  Stage     `json:"from"`
	To    Stage     `json:"to"`
	Event EventKind `json:"event"`
	At    time.Time `json:"at"`
}

// Update is emitted after every observable change of a session.
type Update struct {
	Snapshot     Snapshot             `json:"snapshot"`
	Transition   *Transition          `json:"transition,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
}

type Listener interface {
	OnUpdate(ctx context.Context, u Update)
}

type ListenerFunc func(ctx context.Context, u Update)

func (f ListenerFunc) OnUpdate(ctx context.Context, u Update) { f(ctx, u) }

// Listeners fans an update out to every listener in order.
type Listeners []Listener

func (ls Listeners) OnUpdate(ctx context.Context, u Update) {
	for _, l := range ls {
		if l != nil {
			l.OnUpdate(ctx, u)
		}
	}
}

// Snapshot is a copy of everything the views need to render a session.
type Snapshot struct {
	SessionID  string                 `json:"session_id"`
	Role       Role                   `json:"role"`
	Stage      Stage                  `json:"stage"`
	StageIndex int                    `json:"stage_index"`
	Stages     []Stage                `json:"stages"`
	History    []Stage                `json:"history"`
	Version    uint64                 `json:"version"`
	LoggedIn   bool                   `json:"logged_in"`
	Email      string                 `json:"email,omitempty"`
	Request    *models.RescueRequest  `json:"request,omitempty"`
	Driver     *models.DriverInfo     `json:"driver,omitempty"`
	Job        *models.RescueJob      `json:"job,omitempty"`
	Jobs       []models.RescueJob     `json:"jobs,omitempty"`
	Stats      *models.DashboardStats `json:"stats,omitempty"`
	Charging   *ChargingView          `json:"charging,omitempty"`
	Map        *MapView               `json:"map,omitempty"`
	Payment    *PaymentView           `json:"payment,omitempty"`
	Rating     *RatingView            `json:"rating,omitempty"`
}

type ChargingView struct {
	Start            float64 `json:"start"`
	Current          float64 `json:"current"`
	Target           float64 `json:"target"`
	Progress         float64 `json:"progress"`
	EstimatedSeconds int     `json:"estimated_seconds"`
	Charging         bool    `json:"charging"`
}

type MapView struct {
	Driver   models.Coord `json:"driver"`
	User     models.Coord `json:"user"`
	Step     int          `json:"step"`
	Steps    int          `json:"steps"`
	Progress float64      `json:"progress"`
	Animated bool         `json:"animated"`
}

type PaymentView struct {
	Amount int              `json:"amount"`
	Lines  []sim.LineItem   `json:"lines"`
	State  sim.PaymentState `json:"state"`
}

type RatingView struct {
	Stars     int    `json:"stars"`
	Hovered   int    `json:"hovered"`
	Displayed int    `json:"displayed"`
	Filled    []bool `json:"filled"`
	Feedback  string `json:"feedback,omitempty"`
	ReadOnly  bool   `json:"read_only"`
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionID:  s.id,
		Role:       s.flow.Role(),
		Stage:      s.stage,
		StageIndex: s.flow.Index(s.stage),
		Stages:     s.flow.Stages(),
		History:    append([]Stage(nil), s.history...),
		Version:    s.version,
		LoggedIn:   s.loggedIn,
		Email:      s.email,
	}
	if s.request != nil {
		r := *s.request
		snap.Request = &r
	}
	if s.driver != nil {
		d := *s.driver
		snap.Driver = &d
	}
	if s.job != nil {
		j := *s.job
		snap.Job = &j
	}
	if len(s.jobs) > 0 {
		snap.Jobs = append([]models.RescueJob(nil), s.jobs...)
	}
	if s.stats != nil {
		st := *s.stats
		snap.Stats = &st
	}
	if c := s.charging; c != nil {
		snap.Charging = &ChargingView{
			Start:            c.Start(),
			Current:          c.Current(),
			Target:           c.Target(),
			Progress:         c.Progress(),
			EstimatedSeconds: c.EstimatedSeconds(),
			Charging:         !c.Done(),
		}
	}
	if r := s.route; r != nil {
		snap.Map = &MapView{
			Driver:   r.Position(),
			User:     r.Destination(),
			Step:     r.Step(),
			Steps:    r.Steps(),
			Progress: r.Progress(),
			Animated: r.Animated(),
		}
	}
	if p := s.payment; p != nil {
		snap.Payment = &PaymentView{
			Amount: p.Amount(),
			Lines:  append([]sim.LineItem(nil), p.Lines()...),
			State:  p.State(),
		}
	}
	if w := s.widget; w != nil {
		rv := &RatingView{
			Stars:     w.Committed(),
			Hovered:   w.Hovered(),
			Displayed: w.Displayed(),
			Filled:    w.Stars(),
			ReadOnly:  w.ReadOnly(),
		}
		if s.rating != nil {
			rv.Feedback = s.rating.Feedback
		}
		snap.Rating = rv
	}
	return snap
}
