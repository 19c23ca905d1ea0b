package protocol

import (
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/xerrors"
)

// AcceptTimeout bounds how long a TCP Accept or a UDP ReadFromUDP call
// blocks before the listener loop re-checks its shutdown flag, matching
// the original Python implementation's sock.settimeout(1).
const AcceptTimeout = 1 * time.Second

// ReceiveTimeout bounds how long a per-connection read blocks once a
// connection has been accepted.
const ReceiveTimeout = 1 * time.Second

const udpDatagramSize = 4096

// Send opens a fresh TCP connection to addr, writes the encoded message,
// half-closes the write side, and closes the connection. Every control
// message except heartbeats is "one connection, one message" per
// spec.md §4.1.
func Send(addr Address, msg Message) error {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", addr.Host, addr.Port), ReceiveTimeout)
	if err != nil {
		return xerrors.Errorf("protocol: dial %s: %w", addr, err)
	}
	defer conn.Close()

	data, err := Encode(msg)
	if err != nil {
		return xerrors.Errorf("protocol: encode for %s: %w", addr, err)
	}
	if _, err := conn.Write(data); err != nil {
		return xerrors.Errorf("protocol: write to %s: %w", addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}
	return nil
}

// SendHeartbeat fires a single best-effort UDP datagram; loss is
// tolerated per spec.md §4.1, so send errors are returned but callers
// are expected to ignore transient ones and retry on the next tick.
func SendHeartbeat(conn *net.UDPConn, msg Heartbeat) error {
	data, err := Encode(msg)
	if err != nil {
		return xerrors.Errorf("protocol: encode heartbeat: %w", err)
	}
	_, err = conn.Write(data)
	return err
}

// Receive reads a single message off an accepted TCP connection: it
// buffers chunks until the peer closes its write side (EOF), then
// decodes the JSON payload. If the receive timeout elapses before EOF,
// it returns the read error and decodes nothing.
func Receive(conn net.Conn) (Message, error) {
	_ = conn.SetReadDeadline(time.Now().Add(ReceiveTimeout))
	data, err := io.ReadAll(conn)
	if err != nil {
		return nil, xerrors.Errorf("protocol: read: %w", err)
	}
	return Decode(data)
}

// IsTimeout reports whether err is a network timeout, the signal the
// accept/receive loops use to re-check their shutdown flag.
func IsTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// ServeTCP runs an accept loop against ln, handing each accepted
// connection's decoded message to onMessage in its own goroutine. It
// returns once shutdown() reports true, observed at most AcceptTimeout
// after the flag flips. A malformed payload or an unknown message_type
// is logged via onError and the loop continues; it never exits for a
// single bad message.
func ServeTCP(ln *net.TCPListener, shutdown func() bool, onMessage func(Message), onError func(error)) {
	for !shutdown() {
		_ = ln.SetDeadline(time.Now().Add(AcceptTimeout))
		conn, err := ln.Accept()
		if err != nil {
			if IsTimeout(err) {
				continue
			}
			if shutdown() {
				return
			}
			onError(xerrors.Errorf("protocol: accept: %w", err))
			continue
		}
		go func(c net.Conn) {
			defer c.Close()
			msg, err := Receive(c)
			if err != nil {
				onError(err)
				return
			}
			onMessage(msg)
		}(conn)
	}
}

// ServeUDP runs a receive loop for heartbeat datagrams, matching
// ServeTCP's shutdown-flag and timeout discipline.
func ServeUDP(conn *net.UDPConn, shutdown func() bool, onHeartbeat func(Heartbeat), onError func(error)) {
	buf := make([]byte, udpDatagramSize)
	for !shutdown() {
		_ = conn.SetReadDeadline(time.Now().Add(AcceptTimeout))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if IsTimeout(err) {
				continue
			}
			if shutdown() {
				return
			}
			onError(xerrors.Errorf("protocol: udp read: %w", err))
			continue
		}
		msg, err := Decode(buf[:n])
		if err != nil {
			onError(err)
			continue
		}
		hb, ok := msg.(Heartbeat)
		if !ok {
			onError(xerrors.Errorf("protocol: udp: unexpected message_type %q", msg.Type()))
			continue
		}
		onHeartbeat(hb)
	}
}
