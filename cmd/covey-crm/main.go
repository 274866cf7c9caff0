// cmd/covey-crm/main.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// covey-crm runs the fleet manager.
package main

import (
	"flag"

	"github.com/covey-uas/covey/log"
	"github.com/covey-uas/covey/manager"
)

func main() {
	port := flag.Int("port", 5000, "port to listen on")
	addr := flag.String("addr", "127.0.0.1", "address clients should use to reach this manager")
	store := flag.String("store", "covey-clients.db", "client table database path; empty for in-memory only")
	virgin := flag.Bool("virgin", false, "drop any persisted client table at startup")
	appDir := flag.String("appdir", "", "directory holding support application executables; empty disables launch_app")
	recoveryApp := flag.String("recovery-app", "covey-srtl", "support application launched for airborne aircraft whose owner is lost")
	level := flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir := flag.String("logdir", "", "directory for log files")
	flag.Parse()

	lg := log.New(true, *level, *logDir)
	defer lg.CatchAndReportCrash()

	manager.LaunchServer(manager.ServerLaunchConfig{
		Port:        *port,
		Addr:        *addr,
		StorePath:   *store,
		Virgin:      *virgin,
		AppDir:      *appDir,
		RecoveryApp: *recoveryApp,
	}, lg)
}
