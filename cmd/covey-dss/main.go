// cmd/covey-dss/main.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// covey-dss runs an aircraft endpoint backed by the built-in simulated
// autopilot. Wiring a hardware flight controller in means implementing
// fleet.Autopilot against its SDK and selecting it here.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/covey-uas/covey/client"
	"github.com/covey-uas/covey/fleet"
	"github.com/covey-uas/covey/log"
	"github.com/covey-uas/covey/manager"
	"github.com/covey-uas/covey/math"
)

func main() {
	crmAddr := flag.String("crm", "", "fleet manager address (host:port); empty runs unmanaged")
	port := flag.Int("port", 5051, "port for this endpoint's RPC interface")
	addr := flag.String("addr", "127.0.0.1", "address other parties should use to reach this endpoint")
	name := flag.String("name", "simdrone", "aircraft name")
	desc := flag.String("desc", "simulated aircraft", "aircraft description")
	caps := flag.String("caps", "camera", "comma-separated capabilities")
	id := flag.String("id", "dss001", "aircraft id when unmanaged (ignored with -crm)")
	lat := flag.Float64("lat", 57.7089, "initial latitude")
	lon := flag.Float64("lon", 11.9746, "initial longitude")
	speed := flag.Float64("speed", 5, "default waypoint speed, m/s")
	level := flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir := flag.String("logdir", "", "directory for log files")
	flag.Parse()

	lg := log.New(true, *level, *logDir)
	defer lg.CatchAndReportCrash()

	ap := fleet.NewSimAutopilot(math.LLA{Lat: *lat, Lon: *lon})
	defer ap.Close()

	config := fleet.Config{ID: *id, DefaultSpeed: *speed}

	var notifier fleet.ManagerNotifier
	var crm *client.CRM
	if *crmAddr != "" {
		var err error
		if crm, err = client.DialCRM(*crmAddr, lg); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", *crmAddr, err)
			os.Exit(1)
		}
		capabilities := strings.Split(*caps, ",")
		assigned, err := crm.Register(manager.KindAircraft, *name, *desc, capabilities, *addr, *port, "")
		if err != nil {
			fmt.Fprintf(os.Stderr, "registering with %s: %v\n", *crmAddr, err)
			os.Exit(1)
		}
		lg.Infof("registered as %s", assigned)
		config.ID = assigned
		config.Managed = true
		notifier = crm
	}

	ep := fleet.NewEndpoint(config, ap, notifier, lg)
	defer ep.Shutdown()

	if crm != nil {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		crm.StartHeartBeat(ctx)
	}

	if e := fleet.LaunchServer(fleet.ServerLaunchConfig{Port: *port}, ep, lg); e.HaveErrors() {
		e.PrintErrors(lg)
		os.Exit(1)
	}
}
