// Package transport implements a named-endpoint, typed, length-delimited
// message channel. A frame is a 4-byte big-endian length prefix followed
// by a JSON-encoded envelope — the same framing a daemon's worker IPC
// bridge would use, adapted from a socket-per-worker load balancer into a
// point-to-point control channel between one master and many workers.
package transport

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/oscarsaleta/pbala/internal/protocol"
)

// MaxFrameSize guards against a corrupt or hostile length prefix causing an
// unbounded allocation.
const MaxFrameSize = 16 * 1024 * 1024

type envelope struct {
	Tag     protocol.Tag    `json:"tag"`
	Payload json.RawMessage `json:"payload"`
}

// Conn is one typed, length-delimited connection. Sends are safe to call
// concurrently; Recv is not (the protocol is single-reader per Conn, which
// matches every caller in this codebase: one reader goroutine per worker
// connection at the master, one reader loop at the worker).
type Conn struct {
	nc net.Conn
	mu sync.Mutex
}

// NewConn wraps an already-established net.Conn.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// Dial connects to addr (host:port) and returns a framed Conn.
func Dial(addr string) (*Conn, error) {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return NewConn(nc), nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.nc.Close()
}

// RemoteAddr returns the peer address, for logging.
func (c *Conn) RemoteAddr() string {
	return c.nc.RemoteAddr().String()
}

// Send packs v under tag and writes one length-delimited frame. A family of
// pack{Int,Long,Double,String} calls collapses into this single typed call —
// v is marshaled as self-describing JSON, so there is no manual
// field-by-field packing to get wrong.
func (c *Conn) Send(tag protocol.Tag, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("transport: marshal %s payload: %w", tag, err)
	}
	frame, err := json.Marshal(envelope{Tag: tag, Payload: payload})
	if err != nil {
		return fmt.Errorf("transport: marshal envelope: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var sizeBuf [4]byte
	binary.BigEndian.PutUint32(sizeBuf[:], uint32(len(frame)))
	if _, err := c.nc.Write(sizeBuf[:]); err != nil {
		return fmt.Errorf("transport: write frame size: %w", err)
	}
	if _, err := c.nc.Write(frame); err != nil {
		return fmt.Errorf("transport: write frame body: %w", err)
	}
	return nil
}

// Recv blocks until the next frame arrives (or the connection dies) and
// returns its tag and raw payload for the caller to unmarshal into the
// message type it expects for that tag. A tag the caller didn't expect for
// this exchange is a protocol mismatch and should be treated as fatal —
// callers should halt the cluster rather than attempt recovery.
func (c *Conn) Recv() (protocol.Tag, json.RawMessage, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(c.nc, sizeBuf[:]); err != nil {
		return 0, nil, err
	}
	size := binary.BigEndian.Uint32(sizeBuf[:])
	if size > MaxFrameSize {
		return 0, nil, fmt.Errorf("transport: frame size %d exceeds max %d", size, MaxFrameSize)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(c.nc, buf); err != nil {
		return 0, nil, err
	}
	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		return 0, nil, fmt.Errorf("transport: unmarshal envelope: %w", err)
	}
	return env.Tag, env.Payload, nil
}

// Unmarshal is a convenience wrapper for decoding a Recv'd payload into a
// concrete message type, returning a protocol-mismatch error whose text
// names the expected Go type.
func Unmarshal[T any](payload json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("transport: protocol mismatch decoding %T: %w", v, err)
	}
	return v, nil
}

// Listener accepts incoming worker connections for the master.
type Listener struct {
	ln net.Listener
}

// Listen binds addr (host:port, or ":0" for an ephemeral port) for incoming
// worker dial-backs.
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// Addr returns the bound address as net.Listener sees it (e.g.
// "[::]:43210"), suitable for local workers dialing back on the same host.
func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

// DialableAddr returns an address a worker on a different host can dial
// back to: the listener's port, combined with the first non-loopback IP
// this machine has, rather than the wildcard address Addr() reports. Local
// (same-host) workers can use Addr() directly; remote, ssh-spawned workers
// cannot, since a wildcard bind address only resolves on the bound host.
func (l *Listener) DialableAddr() string {
	_, port, err := net.SplitHostPort(l.ln.Addr().String())
	if err != nil {
		return l.ln.Addr().String()
	}
	ip := firstNonLoopbackIP()
	if ip == "" {
		return l.ln.Addr().String()
	}
	return net.JoinHostPort(ip, port)
}

func firstNonLoopbackIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}

// Accept blocks for the next incoming worker connection.
func (l *Listener) Accept() (*Conn, error) {
	nc, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return NewConn(nc), nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}
