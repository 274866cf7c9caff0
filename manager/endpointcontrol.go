// manager/endpointcontrol.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package manager

import (
	"context"
	"net"
	"net/rpc"
	"strconv"

	"github.com/covey-uas/covey/fleet"
	"github.com/covey-uas/covey/log"
	"github.com/covey-uas/covey/util"
)

// rpcEndpointControl reaches aircraft endpoints over their RPC interface.
// Ownership transfers are rare, so a fresh connection per call beats
// keeping a connection pool consistent with a fleet that comes and goes.
type rpcEndpointControl struct {
	lg *log.Logger
}

func NewEndpointControl(lg *log.Logger) EndpointControl {
	return &rpcEndpointControl{lg: lg}
}

func (c *rpcEndpointControl) dial(ctx context.Context, addr string, port int) (*rpc.Client, error) {
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	cc, err := util.MakeCompressedConn(util.MakeLoggingConn(conn, c.lg))
	if err != nil {
		conn.Close()
		return nil, err
	}
	return rpc.NewClientWithCodec(util.MakeMessagepackClientCodec(cc)), nil
}

func (c *rpcEndpointControl) call(ctx context.Context, addr string, port int, method string, args, reply any) error {
	client, err := c.dial(ctx, addr, port)
	if err != nil {
		return err
	}
	defer client.Close()

	call := client.Go(method, args, reply, nil)
	select {
	case <-ctx.Done():
		return util.ErrRPCTimeout
	case <-call.Done:
		return RemapError(call.Error)
	}
}

func (c *rpcEndpointControl) SetOwner(ctx context.Context, addr string, port int, newOwner string) error {
	args := &fleet.SetOwnerArgs{
		ClientArgs: fleet.ClientArgs{ID: fleet.ManagerID},
		NewOwner:   newOwner,
	}
	return c.call(ctx, addr, port, fleet.SetOwnerRPC, args, &struct{}{})
}

func (c *rpcEndpointControl) Armed(ctx context.Context, addr string, port int) (bool, error) {
	var state fleet.StateSnapshot
	err := c.call(ctx, addr, port, fleet.GetStateRPC, &fleet.ClientArgs{ID: fleet.ManagerID}, &state)
	return state.Armed, err
}
