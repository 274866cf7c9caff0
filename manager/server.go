// manager/server.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package manager

import (
	"net"
	"net/rpc"
	"os"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/covey-uas/covey/log"
	"github.com/covey-uas/covey/util"
)

// ServerLaunchConfig configures a manager instance.
type ServerLaunchConfig struct {
	Port int // if 0, finds an open one

	// StorePath is the client table database; empty runs in memory only.
	StorePath string
	// Virgin drops any persisted client table at startup.
	Virgin bool

	// AppDir holds the support application executables for launch_app;
	// empty disables launching.
	AppDir string
	// RecoveryApp is spawned for airborne aircraft whose owner is lost.
	RecoveryApp string

	// Addr is the address clients should use to reach this manager,
	// passed to launched support apps.
	Addr string
}

// LaunchServer runs the manager until the process exits.
func LaunchServer(config ServerLaunchConfig, lg *log.Logger) {
	_, server, e := makeServer(config, lg)
	if e.HaveErrors() {
		e.PrintErrors(lg)
		os.Exit(1)
	}
	server()
}

// LaunchServerAsync starts the manager and returns its RPC port.
func LaunchServerAsync(config ServerLaunchConfig, lg *log.Logger) (int, util.ErrorLogger) {
	rpcPort, server, e := makeServer(config, lg)
	if e.HaveErrors() {
		return 0, e
	}

	go server()

	return rpcPort, e
}

func makeServer(config ServerLaunchConfig, lg *log.Logger) (int, func(), util.ErrorLogger) {
	var listener net.Listener
	var err error
	var errorLogger util.ErrorLogger
	var rpcPort int
	if config.Port == 0 {
		if listener, err = net.Listen("tcp", ":0"); err != nil {
			errorLogger.Error(err)
			return 0, nil, errorLogger
		}
		rpcPort = listener.Addr().(*net.TCPAddr).Port
	} else if listener, err = net.Listen("tcp", ":"+strconv.Itoa(config.Port)); err == nil {
		rpcPort = config.Port
	} else {
		errorLogger.Error(err)
		return 0, nil, errorLogger
	}

	var store *Store
	if config.StorePath != "" {
		if store, err = OpenStore(config.StorePath, config.Virgin, lg); err != nil {
			errorLogger.Error(err)
			return 0, nil, errorLogger
		}
	}
	registry, err := NewRegistry(store, lg)
	if err != nil {
		errorLogger.Error(err)
		return 0, nil, errorLogger
	}

	var launcher AppLauncher
	var policy RecoveryPolicy
	if config.AppDir != "" {
		pl := &ProcessLauncher{Dir: config.AppDir, ManagerAddr: config.Addr, ManagerPort: rpcPort, Lg: lg}
		launcher = pl
		if config.RecoveryApp != "" {
			policy = &LaunchRecovery{App: config.RecoveryApp, Launcher: pl, Lg: lg}
		}
	}

	arbiter := NewArbiter(registry, NewEndpointControl(lg), policy, lg)
	manager := NewManager(registry, arbiter, launcher, lg)

	serverFunc := func() {
		server := rpc.NewServer()
		if err := server.RegisterName("CRM", &dispatcher{m: manager}); err != nil {
			lg.Errorf("unable to register dispatcher: %v", err)
			os.Exit(1)
		}

		lg.Infof("Listening on %+v", listener.Addr())

		var g errgroup.Group
		for {
			conn, err := listener.Accept()
			if err != nil {
				lg.Errorf("Accept error: %v", err)
				break
			}
			lg.Infof("%s: new connection", conn.RemoteAddr())
			if cc, err := util.MakeCompressedConn(util.MakeLoggingConn(conn, lg)); err != nil {
				lg.Errorf("MakeCompressedConn: %v", err)
			} else {
				codec := util.MakeMessagepackServerCodec(cc, lg)
				g.Go(func() error {
					server.ServeCodec(codec)
					return nil
				})
			}
		}
		g.Wait()
	}

	return rpcPort, serverFunc, errorLogger
}
