package ping

import (
	"context"
	"errors"
	"net"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"pulsenet/internal/errkind"
	"pulsenet/internal/logging"
	"pulsenet/internal/resolve"
)

const (
	protocolICMP     = 1
	protocolIPv6ICMP = 58

	// DefaultTimeout bounds the wait for one echo reply.
	DefaultTimeout = 2 * time.Second
	// DefaultPayloadSize is the echo body length in bytes.
	DefaultPayloadSize = 32
)

// sequence numbers echo requests so concurrent probes from this process
// never share an identifier and sequence pair.
var sequence atomic.Uint32

// Result is the outcome of a single echo probe. Exactly one of Time or
// Error is set.
type Result struct {
	Alive bool         `json:"alive"`
	Time  *float64     `json:"time"`
	Error *string      `json:"error"`
	Kind  errkind.Kind `json:"errorKind,omitempty"`
}

// Resolver resolves a hostname to a single address.
type Resolver interface {
	Resolve(ctx context.Context, host string) (*net.IPAddr, error)
}

// PacketConn is the subset of *icmp.PacketConn the prober needs.
type PacketConn interface {
	WriteTo(b []byte, dst net.Addr) (int, error)
	ReadFrom(b []byte) (int, net.Addr, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// ListenFunc opens an ICMP endpoint; it has the shape of icmp.ListenPacket.
type ListenFunc func(network, address string) (PacketConn, error)

// Options configures a Prober. Zero values select defaults.
type Options struct {
	Timeout     time.Duration
	PayloadSize int
	Resolver    Resolver
	Listen      ListenFunc
	Logger      *zap.Logger
}

// Prober sends one ICMP echo per call. It holds no per-probe state and is
// safe for concurrent use.
type Prober struct {
	timeout  time.Duration
	payload  int
	resolver Resolver
	listen   ListenFunc
	logger   *zap.Logger
}

// NewProber creates a Prober from opts.
func NewProber(opts Options) *Prober {
	p := &Prober{
		timeout:  opts.Timeout,
		payload:  opts.PayloadSize,
		resolver: opts.Resolver,
		listen:   opts.Listen,
		logger:   logging.OrNop(opts.Logger),
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.payload <= 0 {
		p.payload = DefaultPayloadSize
	}
	if p.resolver == nil {
		p.resolver = resolve.NewHostResolver()
	}
	if p.listen == nil {
		p.listen = listenICMP
	}
	return p
}

func listenICMP(network, address string) (PacketConn, error) {
	c, err := icmp.ListenPacket(network, address)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Ping resolves host and sends a single echo request to it. It never
// returns an error; failures are reported in the Result.
func (p *Prober) Ping(ctx context.Context, host string) Result {
	addr, err := p.resolver.Resolve(ctx, host)
	if err != nil {
		p.logger.Debug("ping resolve failed", zap.String("host", host), zap.Error(err))
		return failure(err)
	}

	rtt, err := p.echo(ctx, addr)
	if err != nil {
		p.logger.Debug("ping failed",
			zap.String("host", host),
			zap.Stringer("addr", addr),
			zap.String("kind", string(errkind.Of(err))),
			zap.Error(err))
		return failure(err)
	}

	ms := float64(rtt) / float64(time.Millisecond)
	p.logger.Debug("ping ok", zap.String("host", host), zap.Stringer("addr", addr), zap.Duration("rtt", rtt))
	return Result{Alive: true, Time: &ms}
}

func failure(err error) Result {
	msg := errkind.Message(err)
	kind := errkind.Of(err)
	if kind == "" {
		kind = errkind.TransportError
	}
	return Result{Alive: false, Error: &msg, Kind: kind}
}

// open returns an ICMP endpoint for the address family, trying the socket
// type that matches our privilege level first.
func (p *Prober) open(v6 bool) (PacketConn, bool, error) {
	type endpoint struct {
		network    string
		address    string
		privileged bool
	}

	raw := endpoint{"ip4:icmp", "0.0.0.0", true}
	dgram := endpoint{"udp4", "0.0.0.0", false}
	if v6 {
		raw = endpoint{"ip6:ipv6-icmp", "::", true}
		dgram = endpoint{"udp6", "::", false}
	}

	order := []endpoint{dgram, raw}
	if privileged() {
		order = []endpoint{raw, dgram}
	}

	var errs []error
	for _, ep := range order {
		conn, err := p.listen(ep.network, ep.address)
		if err == nil {
			return conn, ep.privileged, nil
		}
		errs = append(errs, err)
	}
	return nil, false, errors.Join(errs...)
}

func (p *Prober) echo(ctx context.Context, dst *net.IPAddr) (time.Duration, error) {
	v6 := dst.IP.To4() == nil

	conn, privileged, err := p.open(v6)
	if err != nil {
		return 0, errkind.New(errkind.SocketUnavailable, "ping", err)
	}
	defer conn.Close()

	// The wait is bounded by our own timer; cancelling ctx abandons it early.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var (
		reqType   icmp.Type = ipv4.ICMPTypeEcho
		replyType icmp.Type = ipv4.ICMPTypeEchoReply
		proto               = protocolICMP
	)
	if v6 {
		reqType, replyType, proto = ipv6.ICMPTypeEchoRequest, ipv6.ICMPTypeEchoReply, protocolIPv6ICMP
	}

	id := os.Getpid() & 0xffff
	seq := int(sequence.Add(1) & 0xffff)
	req := icmp.Message{
		Type: reqType,
		Code: 0,
		Body: &icmp.Echo{ID: id, Seq: seq, Data: make([]byte, p.payload)},
	}
	wb, err := req.Marshal(nil)
	if err != nil {
		return 0, errkind.New(errkind.TransportError, "ping", err)
	}

	var target net.Addr = dst
	if !privileged {
		target = &net.UDPAddr{IP: dst.IP, Zone: dst.Zone}
	}

	start := time.Now()
	deadline := start.Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return 0, errkind.New(errkind.TransportError, "ping", err)
	}

	if _, err := conn.WriteTo(wb, target); err != nil {
		return 0, classify(ctx, err)
	}

	rb := make([]byte, 1500)
	for {
		n, from, err := conn.ReadFrom(rb)
		if err != nil {
			return 0, classify(ctx, err)
		}
		rtt := time.Since(start)

		// Raw sockets see every echo reply delivered to the host.
		if !sourceIP(from).Equal(dst.IP) {
			continue
		}

		msg, err := icmp.ParseMessage(proto, rb[:n])
		if err != nil || msg.Type != replyType {
			continue
		}
		body, ok := msg.Body.(*icmp.Echo)
		if !ok || body.Seq != seq {
			continue
		}
		// Datagram sockets have their identifier rewritten by the kernel.
		if privileged && body.ID != id {
			continue
		}
		return rtt, nil
	}
}

func sourceIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.IPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	}
	return nil
}

func classify(ctx context.Context, err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return errkind.New(errkind.Timeout, "ping", nil)
	}
	if ctx.Err() != nil {
		return errkind.New(errkind.Timeout, "ping", nil)
	}
	return errkind.New(errkind.TransportError, "ping", err)
}
