// fleet/simflight.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fleet

import (
	"context"
	gomath "math"
	"sync"
	"time"

	"github.com/covey-uas/covey/math"
)

// SimAutopilot is a kinematic stand-in for a real flight controller: it
// flies straight lines at the commanded speed and climbs and descends at
// fixed rates. It backs the endpoint binary when no vehicle is attached
// and the package tests.
type SimAutopilot struct {
	mu sync.Mutex

	pos     math.LLA
	heading float64
	home    math.LLA

	armed  bool
	flying bool
	mode   string

	// velocity mode, body frame
	velActive        bool
	velX, velY, velZ float64
	yawRate          float64

	gimbalYaw float64
	hasGimbal bool
	numSats   int
	navValid  bool
	battery   float64 // percent

	tickDone chan struct{}
}

const (
	simTick       = 50 * time.Millisecond
	simClimbRate  = 2.0  // m/s
	simAcceptDist = 0.5  // m
	simTurnRate   = 90   // deg/s toward commanded heading
	simDrainRate  = 0.05 // battery %/s while armed
)

func NewSimAutopilot(start math.LLA) *SimAutopilot {
	s := &SimAutopilot{
		pos:      start,
		home:     start,
		mode:     "hold",
		numSats:  10,
		navValid: true,
		battery:  100,
		tickDone: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *SimAutopilot) Close() { close(s.tickDone) }

func (s *SimAutopilot) run() {
	ticker := time.NewTicker(simTick)
	defer ticker.Stop()
	for {
		select {
		case <-s.tickDone:
			return
		case <-ticker.C:
			s.step(simTick.Seconds())
		}
	}
}

func (s *SimAutopilot) step(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.armed {
		s.battery = gomath.Max(0, s.battery-simDrainRate*dt)
	}

	if !s.velActive || !s.flying {
		return
	}
	s.heading = math.NormalizeHeading(s.heading + s.yawRate*dt)
	n := math.XYZToNED(math.XYZ{X: s.velX * dt, Y: s.velY * dt, Z: s.velZ * dt}, s.heading)
	p := math.LLAToNED(s.pos, s.home)
	p.North += n.North
	p.East += n.East
	p.Down += n.Down
	if p.Down > 0 {
		p.Down = 0
	}
	s.pos = math.NEDToLLA(p, s.home)
}

func (s *SimAutopilot) Position() (math.LLA, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, s.navValid
}

func (s *SimAutopilot) Heading() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heading
}

func (s *SimAutopilot) GimbalYaw() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasGimbal {
		return 0, ErrNoGimbal
	}
	return s.gimbalYaw, nil
}

func (s *SimAutopilot) NumSatellites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.numSats
}

func (s *SimAutopilot) Battery() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.battery
}

func (s *SimAutopilot) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

func (s *SimAutopilot) Flying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flying
}

func (s *SimAutopilot) FlightMode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *SimAutopilot) setMode(m string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

func (s *SimAutopilot) ArmAndTakeOff(ctx context.Context, height float64) error {
	s.mu.Lock()
	if s.numSats < 8 || !s.navValid {
		s.mu.Unlock()
		return ErrNotArmable
	}
	s.armed = true
	s.flying = true
	s.velActive = false
	s.mode = "takeoff"
	s.mu.Unlock()

	err := s.flyVertical(ctx, height)
	s.setMode("hold")
	return err
}

func (s *SimAutopilot) GotoPosition(ctx context.Context, wp math.LLA, heading float64, course bool, speed float64) error {
	s.setMode("goto")
	ticker := time.NewTicker(simTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		s.mu.Lock()
		s.velActive = false
		d := math.Distance3D(s.pos, wp)
		if d <= simAcceptDist {
			s.pos = wp
			if !course {
				s.heading = heading
			}
			s.mu.Unlock()
			return nil
		}
		if course {
			s.heading = math.Bearing(s.pos, wp)
		} else {
			s.heading = heading
		}
		step := speed * simTick.Seconds()
		if step > d {
			step = d
		}
		frac := step / d
		n := math.LLAToNED(wp, s.pos)
		s.pos = math.NEDToLLA(math.NED{
			North: n.North * frac,
			East:  n.East * frac,
			Down:  -(s.pos.Alt + (wp.Alt-s.pos.Alt)*frac),
		}, math.LLA{Lat: s.pos.Lat, Lon: s.pos.Lon})
		s.mu.Unlock()
	}
}

func (s *SimAutopilot) ReturnToLaunch(ctx context.Context) error {
	s.setMode("rtl")
	s.mu.Lock()
	home := s.home
	alt := s.pos.Alt
	s.mu.Unlock()

	wp := home
	wp.Alt = gomath.Max(alt, 2)
	if err := s.GotoPosition(ctx, wp, 0, true, 5); err != nil {
		return err
	}
	return s.Land(ctx)
}

func (s *SimAutopilot) Land(ctx context.Context) error {
	s.setMode("land")
	if err := s.flyVertical(ctx, 0); err != nil {
		return err
	}
	s.mu.Lock()
	s.armed = false
	s.flying = false
	s.mode = "standby"
	s.mu.Unlock()
	return nil
}

// flyVertical climbs or descends to alt meters at the fixed rate.
func (s *SimAutopilot) flyVertical(ctx context.Context, alt float64) error {
	ticker := time.NewTicker(simTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		s.mu.Lock()
		s.velActive = false
		d := alt - s.pos.Alt
		step := simClimbRate * simTick.Seconds()
		if gomath.Abs(d) <= step {
			s.pos.Alt = alt
			s.mu.Unlock()
			return nil
		}
		s.pos.Alt += gomath.Copysign(step, d)
		s.mu.Unlock()
	}
}

func (s *SimAutopilot) SetVelocity(x, y, z, yawRate float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.flying {
		return ErrNotFlying
	}
	s.velActive = true
	s.velX, s.velY, s.velZ, s.yawRate = x, y, z, yawRate
	s.mode = "velocity"
	return nil
}

func (s *SimAutopilot) SetHeading(heading float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.flying {
		return ErrNotFlying
	}
	s.velActive = false
	s.heading = math.NormalizeHeading(heading)
	return nil
}

func (s *SimAutopilot) SetAltitude(alt float64) error {
	s.mu.Lock()
	if !s.flying {
		s.mu.Unlock()
		return ErrNotFlying
	}
	s.velActive = false
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.flyVertical(ctx, alt)
	}()
	return nil
}

func (s *SimAutopilot) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.velActive = false
	s.velX, s.velY, s.velZ, s.yawRate = 0, 0, 0, 0
	s.mode = "hold"
	return nil
}

// SetGimbalForTest fits a simulated gimbal at the given yaw.
func (s *SimAutopilot) SetGimbalForTest(yaw float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasGimbal = true
	s.gimbalYaw = yaw
}

// SetNumSatellitesForTest overrides the reported satellite count.
func (s *SimAutopilot) SetNumSatellitesForTest(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numSats = n
}
