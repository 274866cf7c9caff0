// util/rpc.go
// Copyright(c) 2024-2026 covey contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/rpc"
	"sync/atomic"
	"time"

	"github.com/covey-uas/covey/log"

	"github.com/klauspost/compress/flate"
	"github.com/vmihailenco/msgpack/v5"
)

var ErrRPCTimeout = errors.New("RPC call timed out")

///////////////////////////////////////////////////////////////////////////
// Messagepack codecs
//
// Same shape as the stdlib's gob codec in net/rpc/server.go, but encoding
// with msgpack so the wire format is compact and cross-checkable.

type messagepackServerCodec struct {
	rwc    io.ReadWriteCloser
	dec    *msgpack.Decoder
	enc    *msgpack.Encoder
	encBuf *bufio.Writer
	lg     *log.Logger
	closed bool
}

func MakeMessagepackServerCodec(conn io.ReadWriteCloser, lg *log.Logger) rpc.ServerCodec {
	buf := bufio.NewWriter(conn)
	return &messagepackServerCodec{
		rwc:    conn,
		dec:    msgpack.NewDecoder(conn),
		enc:    msgpack.NewEncoder(buf),
		encBuf: buf,
		lg:     lg,
	}
}

func (c *messagepackServerCodec) ReadRequestHeader(r *rpc.Request) error {
	return c.dec.Decode(r)
}

func (c *messagepackServerCodec) ReadRequestBody(body any) error {
	if body == nil {
		return c.dec.Skip()
	}
	return c.dec.Decode(body)
}

func (c *messagepackServerCodec) WriteResponse(r *rpc.Response, body any) (err error) {
	if err = c.enc.Encode(r); err != nil {
		if c.encBuf.Flush() == nil {
			// Couldn't encode the header. Should not happen, so if it does,
			// shut down the connection to signal that the connection is broken.
			c.lg.Errorf("rpc: msgpack error encoding response: %v", err)
			c.Close()
		}
		return
	}
	if err = c.enc.Encode(body); err != nil {
		if c.encBuf.Flush() == nil {
			// Was a problem encoding the body but the header has been written.
			// Shut down the connection to signal that the connection is broken.
			c.lg.Errorf("rpc: msgpack error encoding body: %v", err)
			c.Close()
		}
		return
	}
	return c.encBuf.Flush()
}

func (c *messagepackServerCodec) Close() error {
	if c.closed {
		// Only call c.rwc.Close once; otherwise the semantics are undefined.
		return nil
	}
	c.closed = true
	return c.rwc.Close()
}

type messagepackClientCodec struct {
	rwc    io.ReadWriteCloser
	dec    *msgpack.Decoder
	enc    *msgpack.Encoder
	encBuf *bufio.Writer
}

func MakeMessagepackClientCodec(conn io.ReadWriteCloser) rpc.ClientCodec {
	buf := bufio.NewWriter(conn)
	return &messagepackClientCodec{
		rwc:    conn,
		dec:    msgpack.NewDecoder(conn),
		enc:    msgpack.NewEncoder(buf),
		encBuf: buf,
	}
}

func (c *messagepackClientCodec) WriteRequest(r *rpc.Request, body any) (err error) {
	if err = c.enc.Encode(r); err != nil {
		return
	}
	if err = c.enc.Encode(body); err != nil {
		return
	}
	return c.encBuf.Flush()
}

func (c *messagepackClientCodec) ReadResponseHeader(r *rpc.Response) error {
	return c.dec.Decode(r)
}

func (c *messagepackClientCodec) ReadResponseBody(body any) error {
	if body == nil {
		return c.dec.Skip()
	}
	return c.dec.Decode(body)
}

func (c *messagepackClientCodec) Close() error {
	return c.rwc.Close()
}

///////////////////////////////////////////////////////////////////////////
// Logging codecs

type LoggingServerCodec struct {
	rpc.ServerCodec
	lg    *log.Logger
	label string
}

func MakeLoggingServerCodec(label string, c rpc.ServerCodec, lg *log.Logger) *LoggingServerCodec {
	return &LoggingServerCodec{ServerCodec: c, lg: lg, label: label}
}

func (c *LoggingServerCodec) ReadRequestHeader(r *rpc.Request) error {
	err := c.ServerCodec.ReadRequestHeader(r)
	c.lg.Debug("server: got rpc request", slog.String("label", c.label),
		slog.String("service_method", r.ServiceMethod), slog.Any("error", err))
	return err
}

func (c *LoggingServerCodec) WriteResponse(r *rpc.Response, body any) error {
	c.lg.Debug("server: writing rpc response", slog.String("label", c.label),
		slog.String("service_method", r.ServiceMethod),
		slog.String("type", fmt.Sprintf("%T", body)))
	return c.ServerCodec.WriteResponse(r, body)
}

type LoggingClientCodec struct {
	rpc.ClientCodec
	lg    *log.Logger
	label string
}

func MakeLoggingClientCodec(label string, c rpc.ClientCodec, lg *log.Logger) *LoggingClientCodec {
	return &LoggingClientCodec{ClientCodec: c, lg: lg, label: label}
}

func (c *LoggingClientCodec) WriteRequest(r *rpc.Request, v any) error {
	c.lg.Debug("client: writing rpc request", slog.String("label", c.label),
		slog.String("service_method", r.ServiceMethod))
	return c.ClientCodec.WriteRequest(r, v)
}

func (c *LoggingClientCodec) ReadResponseHeader(r *rpc.Response) error {
	err := c.ClientCodec.ReadResponseHeader(r)
	c.lg.Debug("client: got rpc response", slog.String("label", c.label),
		slog.String("service_method", r.ServiceMethod), slog.Any("error", err))
	return err
}

///////////////////////////////////////////////////////////////////////////
// Compressed connections

// CompressedConn wraps a net.Conn with flate compression on both
// directions. Each Write is flushed so request/response framing isn't
// held hostage by the compressor's buffer.
type CompressedConn struct {
	net.Conn
	r io.ReadCloser
	w *flate.Writer
}

func MakeCompressedConn(c net.Conn) (*CompressedConn, error) {
	cc := &CompressedConn{Conn: c}
	cc.r = flate.NewReader(c)
	var err error
	if cc.w, err = flate.NewWriter(c, flate.DefaultCompression); err != nil {
		return nil, err
	}
	return cc, nil
}

func (c *CompressedConn) Read(b []byte) (n int, err error) {
	return c.r.Read(b)
}

func (c *CompressedConn) Write(b []byte) (n int, err error) {
	n, err = c.w.Write(b)
	if err == nil {
		err = c.w.Flush()
	}
	return
}

func (c *CompressedConn) Close() error {
	c.w.Close()
	return c.Conn.Close()
}

///////////////////////////////////////////////////////////////////////////
// Logged connections

var loggedRPCRead, loggedRPCWritten atomic.Int64

// LoggingConn counts bytes through a connection and periodically reports
// bandwidth use.
type LoggingConn struct {
	net.Conn
	lg         *log.Logger
	lastReport time.Time
}

func MakeLoggingConn(c net.Conn, lg *log.Logger) *LoggingConn {
	return &LoggingConn{Conn: c, lg: lg, lastReport: time.Now()}
}

// GetLoggedRPCBandwidth returns the total bytes read and written over all
// logged connections.
func GetLoggedRPCBandwidth() (int64, int64) {
	return loggedRPCRead.Load(), loggedRPCWritten.Load()
}

func (c *LoggingConn) Read(b []byte) (n int, err error) {
	n, err = c.Conn.Read(b)
	loggedRPCRead.Add(int64(n))
	c.maybeReport()
	return
}

func (c *LoggingConn) Write(b []byte) (n int, err error) {
	n, err = c.Conn.Write(b)
	loggedRPCWritten.Add(int64(n))
	c.maybeReport()
	return
}

func (c *LoggingConn) maybeReport() {
	if time.Since(c.lastReport) > time.Minute {
		c.lg.Debug("rpc bandwidth",
			slog.Int64("read", loggedRPCRead.Load()),
			slog.Int64("written", loggedRPCWritten.Load()))
		c.lastReport = time.Now()
	}
}

// IsRPCServerError reports whether err came back from the remote side of
// an RPC call rather than from the local connection machinery.
func IsRPCServerError(err error) bool {
	_, ok := err.(rpc.ServerError)
	return ok
}
