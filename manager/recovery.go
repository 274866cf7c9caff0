// manager/recovery.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package manager

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/covey-uas/covey/log"
)

// AppLauncher spawns a support application process. The launched process
// registers with the manager under the pre-allocated id it is given.
type AppLauncher interface {
	Launch(app string, assignedID string, aircraftID string) error
}

// ProcessLauncher launches support applications as local processes.
type ProcessLauncher struct {
	// Dir is prepended to the application name to form the executable
	// path.
	Dir string
	// ManagerAddr is passed so the launched app can find us.
	ManagerAddr string
	ManagerPort int

	Lg *log.Logger
}

func (p *ProcessLauncher) Launch(app, assignedID, aircraftID string) error {
	path := app
	if p.Dir != "" {
		path = p.Dir + "/" + app
	}
	cmd := exec.Command(path,
		"-id", assignedID,
		"-aircraft", aircraftID,
		"-crm", p.ManagerAddr+":"+strconv.Itoa(p.ManagerPort))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launching %s: %w", app, err)
	}
	p.Lg.Infof("launched %s as %s for %s, pid %d", app, assignedID, aircraftID, cmd.Process.Pid)
	go cmd.Wait() // reap
	return nil
}

// LaunchRecovery is the default recovery policy: if a reclaimed aircraft
// is airborne, spawn a smart-return support application and hand the
// aircraft to it; the endpoint's own return handles the case where we
// never show up.
type LaunchRecovery struct {
	App      string // support application name, e.g. "covey-srtl"
	Launcher AppLauncher
	Lg       *log.Logger
}

func (l *LaunchRecovery) ResourceLost(arb *Arbiter, aircraftID string) {
	rec, err := arb.Registry().Get(aircraftID)
	if err != nil {
		l.Lg.Errorf("%s: recovery lookup: %v", aircraftID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), AckTimeout)
	defer cancel()
	armed, err := arb.Control().Armed(ctx, rec.Addr, rec.Port)
	if err != nil {
		l.Lg.Errorf("%s: recovery armed query: %v", aircraftID, err)
		return
	}
	if !armed {
		return // on the ground, parked is fine
	}

	assignedID, err := arb.Registry().PreAllocate(KindSupport)
	if err != nil {
		l.Lg.Errorf("%s: recovery id allocation: %v", aircraftID, err)
		return
	}
	if err := l.Launcher.Launch(l.App, assignedID, aircraftID); err != nil {
		l.Lg.Errorf("%s: %v", aircraftID, err)
	}
}
