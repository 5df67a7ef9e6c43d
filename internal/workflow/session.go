package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/example/ev-rescue/internal/models"
	"github.com/example/ev-rescue/internal/sim"
)

// Directory serves the mock records a session needs.
type Directory interface {
	Requests(ctx context.Context) ([]models.RescueJob, error)
	PortalDriver(ctx context.Context) (models.DriverInfo, error)
	CustomerLocation(ctx context.Context) (models.Coord, error)
}

// Assigner picks the rescue driver for a customer at the given position.
type Assigner interface {
	Assign(ctx context.Context, at models.Coord) (models.DriverInfo, error)
}

type StatsReader interface {
	Dashboard(ctx context.Context) (models.DashboardStats, error)
}

type Deps struct {
	Clock     clockwork.Clock
	Directory Directory
	Assigner  Assigner
	Stats     StatsReader
	Listener  Listener
	Logger    *zap.Logger
	Payment   []sim.LineItem
}

// Session is one visitor's run through a flow. All state changes happen
// under mu, whether triggered by a request or by a timer.
type Session struct {
	id   string
	flow *Flow
	deps Deps
	log  *zap.Logger

	mu      sync.Mutex
	stage   Stage
	epoch   uint64
	version uint64
	closed  bool
	timers  []clockwork.Timer
	history []Stage
	pending []Update
	notices []models.Notification

	request  *models.RescueRequest
	userLoc  models.Coord
	driver   *models.DriverInfo
	job      *models.RescueJob
	jobs     []models.RescueJob
	stats    *models.DashboardStats
	loggedIn bool
	email    string
	rating   *models.Rating
	charging *sim.Charging
	route    *sim.Route
	payment  *sim.Payment
	widget   *sim.RatingWidget
}

func NewSession(id string, flow *Flow, deps Deps) *Session {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	s := &Session{
		id:      id,
		flow:    flow,
		deps:    deps,
		log:     deps.Logger.With(zap.String("session_id", id), zap.String("role", string(flow.Role()))),
		stage:   flow.Initial(),
		history: []Stage{flow.Initial()},
	}
	return s
}

func (s *Session) ID() string  { return s.id }
func (s *Session) Role() Role  { return s.flow.Role() }
func (s *Session) Flow() *Flow { return s.flow }

func (s *Session) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Submit records the rescue form and starts the search for a driver.
func (s *Session) Submit(ctx context.Context, req models.RescueRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	return s.do(func() error {
		ev := Event{Kind: EventSubmit}
		if err := s.checkLocked(ev); err != nil {
			return err
		}
		r := req
		s.request = &r
		if err := s.fireLocked(ctx, ev); err != nil {
			return err
		}
		s.noticeLocked(models.Notification{
			Title:       "Rescue Request Submitted! ⚡",
			Description: "Searching for the nearest rescue driver.",
			Variant:     models.VariantSuccess,
		})
		return nil
	})
}

// Register handles the driver sign-up form. It never changes stage.
func (s *Session) Register(ctx context.Context, reg models.DriverRegistration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	return s.do(func() error {
		if !s.flow.Accepts(s.stage, EventLogin) {
			return fmt.Errorf("%w: register in %s", ErrInvalidTransition, s.stage)
		}
		s.noticeLocked(models.Notification{
			Title:       "Registration Submitted! ⚡",
			Description: "We'll review your application and get back to you within 24 hours.",
			Variant:     models.VariantSuccess,
		})
		return nil
	})
}

func (s *Session) Login(ctx context.Context, creds models.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	return s.do(func() error {
		ev := Event{Kind: EventLogin}
		if err := s.checkLocked(ev); err != nil {
			return err
		}
		s.loggedIn = true
		s.email = creds.Email
		if err := s.fireLocked(ctx, ev); err != nil {
			return err
		}
		s.noticeLocked(models.Notification{
			Title:       "Welcome back! ⚡",
			Description: "You're now logged in to the Driver Portal.",
			Variant:     models.VariantSuccess,
		})
		return nil
	})
}

// Accept selects one of the dashboard requests and starts the mission.
func (s *Session) Accept(ctx context.Context, requestID string) error {
	return s.do(func() error {
		ev := Event{Kind: EventAccept}
		if err := s.checkLocked(ev); err != nil {
			return err
		}
		var picked *models.RescueJob
		for i := range s.jobs {
			if s.jobs[i].ID == requestID {
				j := s.jobs[i]
				j.Status = "accepted"
				picked = &j
				break
			}
		}
		if picked == nil {
			return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
		}
		s.job = picked
		if err := s.fireLocked(ctx, ev); err != nil {
			return err
		}
		s.noticeLocked(models.Notification{
			Title:       "Request Accepted! ⚡",
			Description: "Navigate to the location and start the rescue mission.",
			Variant:     models.VariantSuccess,
		})
		return nil
	})
}

// Pay starts the simulated payment. The stage moves on to rating once the
// processing and success phases have both elapsed.
func (s *Session) Pay(ctx context.Context) error {
	return s.do(func() error {
		if s.stage != StagePayment || s.payment == nil {
			return fmt.Errorf("%w: pay in %s", ErrInvalidTransition, s.stage)
		}
		if err := s.payment.Pay(); err != nil {
			return ErrPaymentInProgress
		}
		t := s.flow.Timings()
		s.queueLocked(nil, nil)
		s.armLocked(t.PaymentProcessing, func() {
			s.payment.Advance()
			s.noticeLocked(models.Notification{
				Title:       "Payment Successful!",
				Description: "Thank you for using EV RESQ",
				Variant:     models.VariantSuccess,
			})
			s.armLocked(t.PaymentSuccess, func() {
				if s.payment.Advance() {
					s.mustFireLocked(Event{Kind: EventPaid})
				}
			})
		})
		return nil
	})
}

// PreviewRating mirrors hovering over the stars; level 0 clears the preview.
func (s *Session) PreviewRating(level int) error {
	return s.do(func() error {
		if s.stage != StageRating || s.widget == nil {
			return fmt.Errorf("%w: preview in %s", ErrInvalidTransition, s.stage)
		}
		if level == 0 {
			s.widget.Leave()
		} else {
			s.widget.Hover(level)
		}
		s.queueLocked(nil, nil)
		return nil
	})
}

// Rate submits the rating. Zero stars blocks with a destructive notice.
func (s *Session) Rate(ctx context.Context, stars int, feedback string) error {
	return s.do(func() error {
		ev := Event{Kind: EventRate, Stars: stars}
		if _, err := s.flow.Transition(s.stage, ev); err != nil {
			if errors.Is(err, ErrRatingRequired) || errors.Is(err, ErrRatingOutOfRange) {
				s.noticeLocked(models.Notification{
					Title:       "Rating Required",
					Description: "Please select a rating from 1 to 5 stars before submitting.",
					Variant:     models.VariantDestructive,
				})
			}
			return err
		}
		s.widget.Click(stars)
		s.rating = &models.Rating{Stars: stars, Feedback: feedback}
		return s.fireLocked(ctx, ev)
	})
}

// Reset returns a finished session to its initial stage.
func (s *Session) Reset(ctx context.Context) error {
	return s.do(func() error {
		return s.fireLocked(ctx, Event{Kind: EventReset})
	})
}

// Close cancels every pending timer. Later calls fail with ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTimersLocked()
	s.epoch++
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// DrainNotifications returns and forgets the notices raised so far.
func (s *Session) DrainNotifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) do(fn func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	err := fn()
	ups := s.takePendingLocked()
	s.mu.Unlock()
	s.emit(ups)
	return err
}

func (s *Session) checkLocked(ev Event) error {
	_, err := s.flow.Transition(s.stage, ev)
	return err
}

func (s *Session) fireLocked(ctx context.Context, ev Event) error {
	next, err := s.flow.Transition(s.stage, ev)
	if err != nil {
		return err
	}
	from := s.stage
	s.stopTimersLocked()
	s.epoch++
	s.stage = next
	if ev.Kind == EventReset {
		s.clearLocked()
		s.history = []Stage{next}
	} else {
		s.history = append(s.history, next)
	}
	s.enterLocked(ctx)
	s.log.Debug("stage changed", zap.String("from", string(from)), zap.String("to", string(next)), zap.String("event", string(ev.Kind)))
	s.queueLocked(&Transition{From: from, To: next, Event: ev.Kind, At: s.deps.Clock.Now()}, nil)
	return nil
}

// mustFireLocked is used from timer callbacks, where a rejected event means
// the stage moved on and the callback is simply dropped.
func (s *Session) mustFireLocked(ev Event) {
	if err := s.fireLocked(context.Background(), ev); err != nil {
		s.log.Warn("timer event dropped", zap.String("event", string(ev.Kind)), zap.Error(err))
	}
}

func (s *Session) enterLocked(ctx context.Context) {
	t := s.flow.Timings()
	switch s.stage {
	case StageDashboard:
		s.loadDashboardLocked(ctx)
	case StageWaiting:
		s.assignDriverLocked(ctx)
	case StageAccepted:
		if from, to, ok := s.routeEndsLocked(); ok {
			s.route = sim.NewRoute(from, to, t.RouteSteps, false)
		}
	case StageEnroute:
		if from, to, ok := s.routeEndsLocked(); ok {
			s.route = sim.NewRoute(from, to, t.RouteSteps, true)
			s.armRouteTickLocked()
		}
	case StageCharging:
		s.charging = sim.NewCharging(float64(s.startBatteryLocked()), t.ChargeTarget, t.ChargeRate)
		if s.charging.Done() {
			s.armChargeCompleteLocked()
		} else {
			s.armChargeTickLocked()
		}
	case StagePayment:
		s.payment = sim.NewPayment(s.deps.Payment)
	case StageRating:
		s.widget = sim.NewRatingWidget(0, false)
	case StageThankYou:
		committed := 0
		if s.rating != nil {
			committed = s.rating.Stars
		}
		s.widget = sim.NewRatingWidget(committed, true)
	}
	if d, ok := s.flow.Delay(s.stage); ok {
		stage := s.stage
		s.armLocked(d, func() { s.mustFireLocked(Event{Kind: EventTimer, Stage: stage}) })
	}
}

func (s *Session) loadDashboardLocked(ctx context.Context) {
	if s.deps.Directory != nil {
		if me, err := s.deps.Directory.PortalDriver(ctx); err == nil {
			s.driver = &me
		} else {
			s.log.Warn("portal driver unavailable", zap.Error(err))
		}
		if jobs, err := s.deps.Directory.Requests(ctx); err == nil {
			s.jobs = jobs
		} else {
			s.log.Warn("rescue requests unavailable", zap.Error(err))
		}
	}
	st := models.DashboardStats{}
	if s.deps.Stats != nil {
		if v, err := s.deps.Stats.Dashboard(ctx); err == nil {
			st = v
		} else {
			s.log.Warn("dashboard stats unavailable", zap.Error(err))
		}
	}
	st.ActiveRequests = len(s.jobs)
	s.stats = &st
}

func (s *Session) assignDriverLocked(ctx context.Context) {
	if s.deps.Directory != nil {
		if loc, err := s.deps.Directory.CustomerLocation(ctx); err == nil {
			s.userLoc = loc
		}
	}
	if s.deps.Assigner == nil {
		return
	}
	d, err := s.deps.Assigner.Assign(ctx, s.userLoc)
	if err != nil {
		// the search always "succeeds"; the van just appears next to the customer
		s.log.Warn("no rescue driver assigned", zap.Error(err))
		return
	}
	s.driver = &d
}

func (s *Session) routeEndsLocked() (from, to models.Coord, ok bool) {
	switch s.flow.Role() {
	case RoleCustomer:
		to = s.userLoc
		from = to
		if s.driver != nil {
			from = s.driver.Loc
		}
		return from, to, true
	case RoleDriver:
		if s.job == nil {
			return from, to, false
		}
		to = s.job.Loc
		from = to
		if s.driver != nil {
			from = s.driver.Loc
		}
		return from, to, true
	}
	return from, to, false
}

func (s *Session) startBatteryLocked() int {
	switch {
	case s.request != nil:
		return s.request.BatteryLevel
	case s.job != nil:
		return s.job.BatteryLevel
	}
	return 0
}

func (s *Session) armRouteTickLocked() {
	s.armLocked(s.flow.Timings().RouteStepInterval, func() {
		if !s.route.Tick() {
			return
		}
		s.queueLocked(nil, nil)
		if !s.route.Arrived() {
			s.armRouteTickLocked()
		}
	})
}

func (s *Session) armChargeTickLocked() {
	s.armLocked(s.flow.Timings().ChargeTick, func() {
		done := s.charging.Tick()
		s.queueLocked(nil, nil)
		if done {
			s.armChargeCompleteLocked()
			return
		}
		s.armChargeTickLocked()
	})
}

func (s *Session) armChargeCompleteLocked() {
	s.armLocked(s.flow.Timings().ChargeCompleteDelay, func() {
		s.mustFireLocked(Event{Kind: EventChargeComplete})
	})
}

// armLocked schedules fn under the session lock. fn is dropped if the
// session closed or changed stage since arming.
func (s *Session) armLocked(d time.Duration, fn func()) {
	epoch := s.epoch
	t := s.deps.Clock.AfterFunc(d, func() {
		s.mu.Lock()
		if s.closed || s.epoch != epoch {
			s.mu.Unlock()
			return
		}
		fn()
		ups := s.takePendingLocked()
		s.mu.Unlock()
		s.emit(ups)
	})
	s.timers = append(s.timers, t)
}

func (s *Session) stopTimersLocked() {
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
}

func (s *Session) clearLocked() {
	s.request = nil
	s.userLoc = models.Coord{}
	s.driver = nil
	s.job = nil
	s.jobs = nil
	s.stats = nil
	s.loggedIn = false
	s.email = ""
	s.rating = nil
	s.charging = nil
	s.route = nil
	s.payment = nil
	s.widget = nil
}

func (s *Session) noticeLocked(n models.Notification) {
	s.notices = append(s.notices, n)
	s.queueLocked(nil, &n)
}

func (s *Session) queueLocked(tr *Transition, n *models.Notification) {
	s.version++
	s.pending = append(s.pending, Update{Snapshot: s.snapshotLocked(), Transition: tr, Notification: n})
}

func (s *Session) takePendingLocked() []Update {
	ups := s.pending
	s.pending = nil
	return ups
}

func (s *Session) emit(ups []Update) {
	if s.deps.Listener == nil {
		return
	}
	for _, u := range ups {
		s.deps.Listener.OnUpdate(context.Background(), u)
	}
}
