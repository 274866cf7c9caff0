// cmd/covey-srtl/main.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// covey-srtl is the support application the fleet manager launches when
// an airborne aircraft loses its owner. It takes the aircraft, flies the
// recorded path home in reverse, and parks it again.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/covey-uas/covey/client"
	"github.com/covey-uas/covey/log"
	"github.com/covey-uas/covey/manager"
)

func main() {
	id := flag.String("id", "", "pre-allocated client id to bind to")
	aircraft := flag.String("aircraft", "", "aircraft id to recover")
	crmAddr := flag.String("crm", "localhost:5000", "fleet manager address (host:port)")
	level := flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir := flag.String("logdir", "", "directory for log files")
	flag.Parse()

	lg := log.New(true, *level, *logDir)
	defer lg.CatchAndReportCrash()

	if *aircraft == "" {
		fmt.Fprintln(os.Stderr, "-aircraft is required")
		os.Exit(1)
	}

	if err := recoverAircraft(*crmAddr, *id, *aircraft, lg); err != nil {
		lg.Errorf("%s: %v", *aircraft, err)
		os.Exit(1)
	}
}

func recoverAircraft(crmAddr, boundID, aircraftID string, lg *log.Logger) error {
	crm, err := client.DialCRM(crmAddr, lg)
	if err != nil {
		return fmt.Errorf("%s: %w", crmAddr, err)
	}
	ourID, err := crm.Register(manager.KindSupport, "covey-srtl", "smart return recovery",
		nil, "", 0, boundID)
	if err != nil {
		return fmt.Errorf("registering: %w", err)
	}
	defer func() { _ = crm.Unregister() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	crm.StartHeartBeat(ctx)

	rec, err := crm.GetDrone(nil, aircraftID)
	if err != nil {
		return fmt.Errorf("acquiring: %w", err)
	}
	defer func() { _ = crm.ReleaseDrone(aircraftID) }()

	drone, err := client.DialDrone(fmt.Sprintf("%s:%d", rec.Addr, rec.Port), ourID, lg)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", aircraftID, err)
	}
	drone.StartHeartBeat(ctx)

	lg.Infof("recovering %s", aircraftID)
	if err := drone.SRTL(0); err != nil {
		return fmt.Errorf("smart return: %w", err)
	}

	// Stay on the link until the aircraft is down; losing us mid-return
	// would only trigger the endpoint's own fallback.
	for {
		state, err := drone.GetState()
		if err != nil {
			return fmt.Errorf("state poll: %w", err)
		}
		if !state.Flying {
			lg.Infof("%s landed", aircraftID)
			return nil
		}
		time.Sleep(time.Second)
	}
}
