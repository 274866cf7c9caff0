// fleet/endpoint.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package fleet implements the aircraft endpoint: the service that sits
// next to the flight controller, enforces ownership and flight safety
// gating, and flies missions on behalf of the owning application.
package fleet

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/covey-uas/covey/heartbeat"
	"github.com/covey-uas/covey/log"
	"github.com/covey-uas/covey/math"
	"github.com/covey-uas/covey/util"
)

// ManagerID is the reserved client id of the fleet manager. An aircraft
// owned by ManagerID is parked: available for allocation, accepting no
// flight commands.
const ManagerID = "crm"

// ManagerNotifier is how the endpoint reaches back to the fleet manager.
// Nil on unmanaged endpoints.
type ManagerNotifier interface {
	// AppLost tells the manager this aircraft's owner stopped
	// heartbeating.
	AppLost(aircraftID string) error
}

// Task priorities. A task can only be replaced by one of equal or higher
// priority; the safety maneuvers all run at the maximum.
const (
	taskPriorityMission = 1
	taskPriorityMax     = 10
)

type flightTask struct {
	name     string
	priority int
	cancel   context.CancelFunc
	done     chan struct{}
}

// Config carries the static identity and tuning of one endpoint.
type Config struct {
	ID           string  // assigned by the manager at registration
	DefaultSpeed float64 // m/s, used when a waypoint does not specify one
	Managed      bool    // a fleet manager is attached

	// Heartbeat thresholds; zero values select the defaults.
	LinkDegraded time.Duration
	LinkLost     time.Duration
}

// Endpoint is one aircraft's control service. All RPC operations funnel
// through it; the embedded lock serializes command handling while flight
// tasks run on their own goroutines against the Autopilot.
type Endpoint struct {
	config Config
	lg     *log.Logger
	mu     util.LoggingMutex

	ap       Autopilot
	notifier ManagerNotifier

	owner     string
	auth      *AuthorityMachine
	ownerLink *heartbeat.Monitor
	lostAfter time.Duration

	tf    *Transformer
	fence Geofence
	srtl  *ReturnStack

	pending    Mission
	hasPending bool
	active     Mission
	nextWP     int

	task *flightTask

	events  *util.EventStream[StateUpdate]
	limiter *rate.Limiter
	subs    map[string]*streamSubscription

	pubDone chan struct{}
}

type streamSubscription struct {
	sub     *util.EventsSubscription[StateUpdate]
	enabled map[Stream]bool
}

func NewEndpoint(config Config, ap Autopilot, notifier ManagerNotifier, lg *log.Logger) *Endpoint {
	if config.LinkDegraded == 0 {
		config.LinkDegraded = heartbeat.DefaultDegradedAfter
	}
	if config.LinkLost == 0 {
		config.LinkLost = heartbeat.DefaultLostAfter
	}

	e := &Endpoint{
		config:    config,
		lg:        lg.With("aircraft", config.ID),
		ap:        ap,
		notifier:  notifier,
		owner:     ManagerID,
		auth:      NewAuthorityMachine(config.Managed, lg),
		lostAfter: config.LinkLost,
		tf:        &Transformer{},
		fence:     DefaultGeofence(),
		srtl:      &ReturnStack{},
		events:    util.NewEventStream[StateUpdate](lg),
		limiter:   rate.NewLimiter(rate.Limit(25), 50),
		subs:      make(map[string]*streamSubscription),
		pubDone:   make(chan struct{}),
	}

	e.ownerLink = heartbeat.NewMonitor(config.ID+"-owner", config.LinkDegraded, config.LinkLost, lg)
	e.ownerLink.OnTransition(e.ownerLinkTransition)
	e.ownerLink.Start()

	go e.publish()
	return e
}

// Shutdown stops the endpoint's background goroutines. Flight tasks are
// cancelled; the vehicle is left in whatever state the autopilot's
// cancellation semantics leave it.
func (e *Endpoint) Shutdown() {
	e.ownerLink.Stop()
	close(e.pubDone)

	e.mu.Lock(e.lg)
	if e.task != nil {
		e.task.cancel()
	}
	e.mu.Unlock(e.lg)
}

///////////////////////////////////////////////////////////////////////////
// Ownership and gating

// touchOwner records owner activity; every authenticated message from the
// owner counts as a heartbeat.
func (e *Endpoint) touchOwner(id string) {
	if id != ManagerID && id == e.ownerID() {
		e.ownerLink.Touch()
	}
}

func (e *Endpoint) ownerID() string {
	e.mu.Lock(e.lg)
	defer e.mu.Unlock(e.lg)
	return e.owner
}

// checkOwner gates operations that require ownership.
func (e *Endpoint) checkOwner(id string) error {
	e.mu.Lock(e.lg)
	defer e.mu.Unlock(e.lg)
	if id == "" || id != e.owner {
		return ErrNotOwner
	}
	return nil
}

// checkFlightCommand gates operations that move the aircraft: the caller
// must own it and hold control authority.
func (e *Endpoint) checkFlightCommand(id string) error {
	if err := e.checkOwner(id); err != nil {
		return err
	}
	if e.auth.State() != AuthorityApplication {
		return ErrNotInControl
	}
	return nil
}

// SetOwner transfers ownership. Only the fleet manager may call it; a nil
// return is the endpoint's acknowledgment and means the new owner is
// committed here. Handing to ManagerID parks the aircraft.
func (e *Endpoint) SetOwner(caller, newOwner string) error {
	if caller != ManagerID {
		return ErrNotOwner
	}
	if newOwner == "" {
		return ErrInvalidArgument
	}

	e.mu.Lock(e.lg)
	prev := e.owner
	e.owner = newOwner
	e.mu.Unlock(e.lg)

	if newOwner == ManagerID {
		e.auth.PilotReleasesControls() // no-op unless pilot flying
		e.auth.OwnerRecovered()
	} else {
		e.ownerLink.Touch()
		if err := e.auth.OwnerTakesControls(); err != nil {
			// Pilot override: ownership is recorded but the new owner
			// is not in controls until the pilot releases.
			e.lg.Warnf("owner %s set while pilot in controls", newOwner)
		}
	}
	if prev != newOwner {
		e.lg.Infof("owner %s -> %s", prev, newOwner)
	}
	return nil
}

// HeartBeat records owner liveness. It is the owner's no-op command.
func (e *Endpoint) HeartBeat(id string) error {
	if err := e.checkOwner(id); err != nil {
		return err
	}
	e.touchOwner(id)
	return nil
}

func (e *Endpoint) WhoControls() Authority { return e.auth.State() }

func (e *Endpoint) GetOwner() string { return e.ownerID() }

// PilotTakesControls and PilotReleasesControls are driven by the RC
// override switch, not by RPC.
func (e *Endpoint) PilotTakesControls()    { e.auth.PilotTakesControls() }
func (e *Endpoint) PilotReleasesControls() { e.auth.PilotReleasesControls() }

///////////////////////////////////////////////////////////////////////////
// Owner link loss

func (e *Endpoint) ownerLinkTransition(from, to heartbeat.State) {
	switch to {
	case heartbeat.StateOk:
		e.auth.OwnerRecovered()
	case heartbeat.StateLost:
		e.ownerLost()
	}
}

func (e *Endpoint) ownerLost() {
	switch e.auth.OwnerLinkLost() {
	case LinkActionNotifyManager:
		go func() {
			defer e.lg.CatchAndReportCrash()
			if err := e.notifier.AppLost(e.config.ID); err != nil {
				e.lg.Errorf("app_lost notification: %v", err)
			}
		}()
		// Give the manager one link-loss window to hand the aircraft to
		// a recovery application; if nothing touches the link by then,
		// the next lost decision flies the return.
		go func() {
			defer e.lg.CatchAndReportCrash()
			time.Sleep(e.lostAfter)
			if e.ownerLink.State() == heartbeat.StateLost {
				e.ownerLost()
			}
		}()
	case LinkActionAutonomousReturn:
		if e.ap.Flying() {
			if err := e.startTask("rtl", taskPriorityMax, func(ctx context.Context) {
				if err := e.ap.ReturnToLaunch(ctx); err != nil {
					e.lg.Errorf("autonomous return: %v", err)
				}
			}); err != nil {
				e.lg.Errorf("autonomous return: %v", err)
			}
		}
	}
}

///////////////////////////////////////////////////////////////////////////
// Tasks

// startTask begins a flight task, replacing a running task of equal or
// lower priority. A running higher-priority task wins: ErrTaskBusy.
func (e *Endpoint) startTask(name string, priority int, fly func(ctx context.Context)) error {
	e.mu.Lock(e.lg)
	defer e.mu.Unlock(e.lg)
	return e.startTaskLocked(name, priority, fly)
}

func (e *Endpoint) startTaskLocked(name string, priority int, fly func(ctx context.Context)) error {
	if e.task != nil {
		select {
		case <-e.task.done:
			e.task = nil
		default:
		}
	}

	prev := e.task
	if prev != nil {
		if prev.priority > priority {
			return ErrTaskBusy
		}
		e.lg.Infof("task %s (prio %d) preempts %s (prio %d)", name, priority, prev.name, prev.priority)
		prev.cancel()
	} else {
		e.lg.Debugf("task %s (prio %d) starting", name, priority)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &flightTask{name: name, priority: priority, cancel: cancel, done: make(chan struct{})}
	e.task = t

	go func() {
		defer e.lg.CatchAndReportCrash()
		defer close(t.done)
		if prev != nil {
			<-prev.done
		}
		fly(ctx)
	}()
	return nil
}

// abortTaskBelow cancels a running task with priority below the given
// one; a higher-priority task is ErrTaskBusy. Used by the immediate
// commands (velocity, heading) that take effect without a task of their
// own.
func (e *Endpoint) abortTaskBelow(priority int) error {
	e.mu.Lock(e.lg)
	defer e.mu.Unlock(e.lg)
	if e.task != nil {
		select {
		case <-e.task.done:
			e.task = nil
		default:
		}
	}
	if e.task == nil {
		return nil
	}
	if e.task.priority > priority {
		return ErrTaskBusy
	}
	e.task.cancel()
	e.task = nil
	return nil
}

// Idle reports whether no flight task is running.
func (e *Endpoint) Idle() bool {
	e.mu.Lock(e.lg)
	defer e.mu.Unlock(e.lg)
	if e.task == nil {
		return true
	}
	select {
	case <-e.task.done:
		return true
	default:
		return false
	}
}

///////////////////////////////////////////////////////////////////////////
// Configuration commands

func (e *Endpoint) SetGeofence(id string, fence Geofence) error {
	if err := e.checkOwner(id); err != nil {
		return err
	}
	e.touchOwner(id)
	if !fence.Valid() {
		return ErrInvalidArgument
	}
	e.mu.Lock(e.lg)
	e.fence = fence
	e.mu.Unlock(e.lg)
	e.lg.Infof("geofence %+v", fence)
	return nil
}

func (e *Endpoint) Geofence() Geofence {
	e.mu.Lock(e.lg)
	defer e.mu.Unlock(e.lg)
	return e.fence
}

func (e *Endpoint) SetInitPoint(id string, ref HeadingRef) error {
	if err := e.checkOwner(id); err != nil {
		return err
	}
	e.touchOwner(id)
	return e.tf.Capture(e.ap, ref)
}

///////////////////////////////////////////////////////////////////////////
// Missions

// UploadMission validates and stages a mission. The staged mission is
// replaced only if validation passes; a malformed upload leaves any
// previously staged mission untouched.
func (e *Endpoint) UploadMission(id string, frame Frame, spec MissionSpec) error {
	if err := e.checkOwner(id); err != nil {
		return err
	}
	e.touchOwner(id)

	fence := e.Geofence()
	m, violations := ValidateMission(spec, frame, e.tf, fence)
	if violations != nil {
		e.lg.Warnf("mission rejected: %v", violations.Error())
		return violations
	}

	e.mu.Lock(e.lg)
	e.pending = m
	e.hasPending = true
	e.mu.Unlock(e.lg)
	e.lg.Infof("mission staged, %d waypoints", len(m))
	return nil
}

// Gogo activates the staged mission starting at waypoint nextWP. Calling
// it again with a later index resumes a partly flown mission.
func (e *Endpoint) Gogo(id string, nextWP int) error {
	if err := e.checkFlightCommand(id); err != nil {
		return err
	}
	e.touchOwner(id)
	if !e.ap.Flying() {
		return ErrNotFlying
	}

	e.mu.Lock(e.lg)
	if !e.hasPending {
		e.mu.Unlock(e.lg)
		return ErrNoMission
	}
	if nextWP < 0 || nextWP >= len(e.pending) {
		e.mu.Unlock(e.lg)
		return ErrOutOfRange
	}
	e.active = e.pending
	e.nextWP = nextWP
	m := e.active
	err := e.startTaskLocked("mission", taskPriorityMission, func(ctx context.Context) {
		e.flyMission(ctx, m, nextWP)
	})
	e.mu.Unlock(e.lg)
	return err
}

func (e *Endpoint) flyMission(ctx context.Context, m Mission, start int) {
	for i := start; i < len(m); i++ {
		wp := m[i]
		speed := wp.Speed
		if speed == 0 {
			speed = e.config.DefaultSpeed
		}
		if err := e.ap.GotoPosition(ctx, wp.Pos, wp.Heading, wp.Course(), speed); err != nil {
			e.lg.Infof("mission stopped at id%d: %v", i, err)
			return
		}

		e.srtl.Push(wp)
		e.mu.Lock(e.lg)
		e.nextWP = i + 1
		e.mu.Unlock(e.lg)
		e.events.Post(StateUpdate{Stream: StreamCurrentWP, Time: time.Now(), CurrentWP: i})

		if wp.Action == "take_photo" {
			pos, _ := e.ap.Position()
			e.events.Post(StateUpdate{Stream: StreamPhoto, Time: time.Now(), Pos: pos})
		}
	}
	if err := e.ap.Stop(); err != nil {
		e.lg.Errorf("hold after mission: %v", err)
	}
	e.lg.Infof("mission complete")
}

///////////////////////////////////////////////////////////////////////////
// Smart return

func (e *Endpoint) ResetSRTL(id string) error {
	if err := e.checkOwner(id); err != nil {
		return err
	}
	e.touchOwner(id)

	pos, ok := e.ap.Position()
	if !ok {
		return ErrNotReady
	}
	e.srtl.Reset(pos, e.ap.Heading(), e.config.DefaultSpeed)
	e.lg.Infof("smart return reset at %+v", pos)
	return nil
}

// SRTL flies the recorded path backwards to the recovery point, hovers
// hoverTime seconds there, and lands.
func (e *Endpoint) SRTL(id string, hoverTime float64) error {
	if err := e.checkFlightCommand(id); err != nil {
		return err
	}
	e.touchOwner(id)
	if hoverTime < 0 || hoverTime > 300 {
		return ErrOutOfRange
	}
	if !e.ap.Flying() {
		return ErrNotFlying
	}
	if _, ok := e.srtl.Recovery(); !ok {
		return ErrNotReady
	}

	return e.startTask("srtl", taskPriorityMax, func(ctx context.Context) {
		e.flySmartReturn(ctx, hoverTime)
	})
}

func (e *Endpoint) flySmartReturn(ctx context.Context, hoverTime float64) {
	for {
		wp, ok := e.srtl.Pop()
		if !ok {
			break
		}
		speed := wp.Speed
		if speed == 0 {
			speed = e.config.DefaultSpeed
		}
		if err := e.ap.GotoPosition(ctx, wp.Pos, wp.Heading, wp.Course(), speed); err != nil {
			e.lg.Infof("smart return stopped: %v", err)
			return
		}
	}

	rec, ok := e.srtl.Recovery()
	if !ok {
		return
	}
	if err := e.ap.GotoPosition(ctx, rec.Pos, rec.Heading, rec.Course(), rec.Speed); err != nil {
		e.lg.Infof("smart return stopped: %v", err)
		return
	}

	// One hover at the recovery location before touchdown.
	if hoverTime > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(hoverTime * float64(time.Second))):
		}
	}

	if err := e.ap.Land(ctx); err != nil {
		e.lg.Errorf("smart return landing: %v", err)
	}
}

///////////////////////////////////////////////////////////////////////////
// Immediate flight commands

func (e *Endpoint) ArmTakeOff(id string, height float64) error {
	if err := e.checkFlightCommand(id); err != nil {
		return err
	}
	e.touchOwner(id)
	if height < 2 || height > 40 {
		return ErrOutOfRange
	}
	if e.ap.Flying() {
		return ErrNotArmable
	}
	if e.ap.NumSatellites() < 8 {
		return ErrNotArmable
	}

	return e.startTask("take-off", taskPriorityMax, func(ctx context.Context) {
		if err := e.ap.ArmAndTakeOff(ctx, height); err != nil {
			e.lg.Errorf("take-off: %v", err)
		}
	})
}

func (e *Endpoint) Land(id string) error {
	if err := e.checkFlightCommand(id); err != nil {
		return err
	}
	e.touchOwner(id)
	if !e.ap.Flying() {
		return ErrNotFlying
	}
	return e.startTask("land", taskPriorityMax, func(ctx context.Context) {
		if err := e.ap.Land(ctx); err != nil {
			e.lg.Errorf("landing: %v", err)
		}
	})
}

func (e *Endpoint) RTL(id string) error {
	if err := e.checkFlightCommand(id); err != nil {
		return err
	}
	e.touchOwner(id)
	if !e.ap.Flying() {
		return ErrNotFlying
	}
	return e.startTask("rtl", taskPriorityMax, func(ctx context.Context) {
		if err := e.ap.ReturnToLaunch(ctx); err != nil {
			e.lg.Errorf("return to launch: %v", err)
		}
	})
}

func (e *Endpoint) SetVelocity(id string, x, y, z, yawRate float64) error {
	if err := e.checkFlightCommand(id); err != nil {
		return err
	}
	e.touchOwner(id)
	if !e.ap.Flying() {
		return ErrNotFlying
	}
	if err := e.abortTaskBelow(taskPriorityMission); err != nil {
		return err
	}
	return e.ap.SetVelocity(x, y, z, yawRate)
}

func (e *Endpoint) SetHeading(id string, heading float64) error {
	if err := e.checkFlightCommand(id); err != nil {
		return err
	}
	e.touchOwner(id)
	if heading < 0 || heading >= 360 {
		return ErrOutOfRange
	}
	if !e.ap.Flying() {
		return ErrNotFlying
	}
	if err := e.abortTaskBelow(taskPriorityMission); err != nil {
		return err
	}
	return e.ap.SetHeading(heading)
}

func (e *Endpoint) SetAltitude(id string, alt float64) error {
	if err := e.checkFlightCommand(id); err != nil {
		return err
	}
	e.touchOwner(id)
	if !e.ap.Flying() {
		return ErrNotFlying
	}
	fence := e.Geofence()
	if alt < fence.HeightLow || alt > fence.HeightHigh {
		return ErrGeofenceViolation
	}
	if err := e.abortTaskBelow(taskPriorityMission); err != nil {
		return err
	}
	return e.ap.SetAltitude(alt)
}

///////////////////////////////////////////////////////////////////////////
// State and streams

// StateSnapshot is the endpoint's externally visible state.
type StateSnapshot struct {
	ID        string    `msgpack:"id" json:"id"`
	Owner     string    `msgpack:"owner" json:"owner"`
	Authority Authority `msgpack:"authority" json:"authority"`
	Armed     bool      `msgpack:"armed" json:"armed"`
	Flying    bool      `msgpack:"flying" json:"flying"`
	Mode      string    `msgpack:"mode" json:"mode"`
	Idle      bool      `msgpack:"idle" json:"idle"`
	Pos       math.LLA  `msgpack:"pos" json:"pos"`
	Heading   float64   `msgpack:"heading" json:"heading"`
	NumSats   int       `msgpack:"num_sats" json:"num_sats"`
	Battery   float64   `msgpack:"battery" json:"battery"`
	NextWP    int       `msgpack:"next_wp" json:"next_wp"`
	Geofence  Geofence  `msgpack:"geofence" json:"geofence"`
}

func (e *Endpoint) GetState() StateSnapshot {
	pos, _ := e.ap.Position()
	s := StateSnapshot{
		ID:        e.config.ID,
		Authority: e.auth.State(),
		Armed:     e.ap.Armed(),
		Flying:    e.ap.Flying(),
		Mode:      e.ap.FlightMode(),
		Idle:      e.Idle(),
		Pos:       pos,
		Heading:   e.ap.Heading(),
		NumSats:   e.ap.NumSatellites(),
		Battery:   e.ap.Battery(),
	}
	e.mu.Lock(e.lg)
	s.Owner = e.owner
	s.NextWP = e.nextWP
	s.Geofence = e.fence
	e.mu.Unlock(e.lg)
	return s
}

// Stream names a periodic data feed an application can enable.
type Stream string

const (
	StreamLLA       Stream = "LLA"
	StreamNED       Stream = "NED"
	StreamXYZ       Stream = "XYZ"
	StreamBattery   Stream = "battery"
	StreamCurrentWP Stream = "currentWP"
	StreamPhoto     Stream = "photo"
)

// StateUpdate is one event on a data stream; which fields are meaningful
// depends on Stream.
type StateUpdate struct {
	Stream    Stream    `msgpack:"stream" json:"stream"`
	Time      time.Time `msgpack:"time" json:"time"`
	Pos       math.LLA  `msgpack:"pos" json:"pos"`
	NED       math.NED  `msgpack:"ned" json:"ned"`
	XYZ       math.XYZ  `msgpack:"xyz" json:"xyz"`
	Battery   float64   `msgpack:"battery" json:"battery"`
	CurrentWP int       `msgpack:"current_wp" json:"current_wp"`
}

// SetDataStream enables or disables a stream for the calling client. Any
// registered client may subscribe; streams are telemetry, not control.
func (e *Endpoint) SetDataStream(id string, stream Stream, enable bool) error {
	switch stream {
	case StreamLLA, StreamNED, StreamXYZ, StreamBattery, StreamCurrentWP, StreamPhoto:
	default:
		return ErrUnsupportedStream
	}
	e.touchOwner(id)

	e.mu.Lock(e.lg)
	defer e.mu.Unlock(e.lg)
	ss := e.subs[id]
	if ss == nil {
		if !enable {
			return nil
		}
		ss = &streamSubscription{sub: e.events.Subscribe(), enabled: make(map[Stream]bool)}
		e.subs[id] = ss
	}
	if enable {
		ss.enabled[stream] = true
	} else {
		delete(ss.enabled, stream)
		if len(ss.enabled) == 0 {
			ss.sub.Unsubscribe()
			delete(e.subs, id)
		}
	}
	return nil
}

// GetUpdates drains the calling client's enabled streams.
func (e *Endpoint) GetUpdates(id string) []StateUpdate {
	e.mu.Lock(e.lg)
	ss := e.subs[id]
	e.mu.Unlock(e.lg)
	if ss == nil {
		return nil
	}
	e.touchOwner(id)

	updates := ss.sub.Get()
	return util.FilterSlice(updates, func(u StateUpdate) bool { return ss.enabled[u.Stream] })
}

// publish posts periodic telemetry while any position stream is enabled.
// The rate limiter bounds the total event rate regardless of how many
// streams and subscribers pile up.
func (e *Endpoint) publish() {
	defer e.lg.CatchAndReportCrash()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-e.pubDone:
			return
		case <-ticker.C:
		}

		pos, ok := e.ap.Position()
		if !ok {
			continue
		}
		now := time.Now()

		if e.limiter.Allow() {
			e.events.Post(StateUpdate{Stream: StreamLLA, Time: now, Pos: pos})
		}
		if e.limiter.Allow() {
			e.events.Post(StateUpdate{Stream: StreamBattery, Time: now, Battery: e.ap.Battery()})
		}
		if ip, ok := e.tf.InitPoint(); ok {
			n := math.LLAToNED(pos, ip.Origin)
			if e.limiter.Allow() {
				e.events.Post(StateUpdate{Stream: StreamNED, Time: now, NED: n})
			}
			if e.limiter.Allow() {
				e.events.Post(StateUpdate{Stream: StreamXYZ, Time: now, XYZ: math.NEDToXYZ(n, ip.Heading)})
			}
		}
	}
}

// Disconnect drops the client's subscriptions. An owning application that
// disconnects cleanly on an unmanaged endpoint parks the aircraft; with a
// manager attached the release goes through the manager instead.
func (e *Endpoint) Disconnect(id string) {
	e.mu.Lock(e.lg)
	if ss := e.subs[id]; ss != nil {
		ss.sub.Unsubscribe()
		delete(e.subs, id)
	}
	isOwner := id == e.owner && id != ManagerID
	e.mu.Unlock(e.lg)

	if isOwner && !e.config.Managed {
		e.SetOwner(ManagerID, ManagerID)
	}
	e.lg.Infof("%s disconnected", id)
}
