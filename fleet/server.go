// fleet/server.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package fleet

import (
	"net"
	"net/rpc"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/covey-uas/covey/log"
	"github.com/covey-uas/covey/util"
)

// ServerLaunchConfig configures the endpoint's RPC listener.
type ServerLaunchConfig struct {
	Port int // if 0, finds an open one
}

// LaunchServer serves the endpoint's RPC interface on the current
// goroutine; it does not return unless the listener fails.
func LaunchServer(config ServerLaunchConfig, ep *Endpoint, lg *log.Logger) util.ErrorLogger {
	_, server, e := makeServer(config, ep, lg)
	if !e.HaveErrors() {
		server()
	}
	return e
}

// LaunchServerAsync starts serving the endpoint's RPC interface and
// returns the bound port.
func LaunchServerAsync(config ServerLaunchConfig, ep *Endpoint, lg *log.Logger) (int, util.ErrorLogger) {
	rpcPort, server, e := makeServer(config, ep, lg)
	if e.HaveErrors() {
		return 0, e
	}

	go server()

	return rpcPort, e
}

func makeServer(config ServerLaunchConfig, ep *Endpoint, lg *log.Logger) (int, func(), util.ErrorLogger) {
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

	serverFunc := func() {
		server := rpc.NewServer()
		if err := server.RegisterName("DSS", &dispatcher{ep: ep}); err != nil {
			lg.Errorf("unable to register dispatcher: %v", err)
			return
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
