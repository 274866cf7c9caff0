// client/client.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package client provides the RPC clients applications use to talk to
// the fleet manager and to aircraft endpoints.
package client

import (
	"context"
	"net"
	"net/rpc"
	"time"

	"github.com/covey-uas/covey/log"
	"github.com/covey-uas/covey/manager"
	"github.com/covey-uas/covey/util"
)

// CallTimeout bounds every RPC; a silent server turns into
// util.ErrRPCTimeout rather than a hang.
const CallTimeout = 5 * time.Second

// HeartBeatInterval keeps comfortably inside the servers' 5 second
// degraded threshold.
const HeartBeatInterval = 2 * time.Second

type conn struct {
	rpc *rpc.Client
	lg  *log.Logger
}

func dialConn(address string, lg *log.Logger) (conn, error) {
	c, err := net.DialTimeout("tcp", address, CallTimeout)
	if err != nil {
		return conn{}, err
	}
	cc, err := util.MakeCompressedConn(util.MakeLoggingConn(c, lg))
	if err != nil {
		c.Close()
		return conn{}, err
	}
	codec := util.MakeMessagepackClientCodec(cc)
	return conn{rpc: rpc.NewClientWithCodec(codec), lg: lg}, nil
}

// callWithTimeout restores sentinel errors from their wire form so
// callers can errors.Is against the fleet and manager error values.
func (c conn) callWithTimeout(method string, args, reply any) error {
	call := c.rpc.Go(method, args, reply, nil)
	select {
	case <-call.Done:
		return manager.RemapError(call.Error)
	case <-time.After(CallTimeout):
		return util.ErrRPCTimeout
	}
}

func (c conn) Close() error { return c.rpc.Close() }

// heartBeatLoop sends beat every HeartBeatInterval until ctx is done.
func heartBeatLoop(ctx context.Context, beat func() error, lg *log.Logger) {
	defer lg.CatchAndReportCrash()

	ticker := time.NewTicker(HeartBeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := beat(); err != nil {
				lg.Warnf("heartbeat: %v", err)
			}
		}
	}
}
