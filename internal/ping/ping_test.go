package ping

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"pulsenet/internal/errkind"
	"pulsenet/internal/resolve"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// fakeConn answers each echo request with the configured replies.
type fakeConn struct {
	mu       sync.Mutex
	network  string
	proto    int
	replies  chan []byte
	silent   bool
	noise    bool
	deadline time.Time
	closed   bool
	writeErr error
	sentTo   net.Addr
	sentLen  int
	// from overrides the reply source; replies come from sentTo otherwise.
	from net.Addr
	seqs []int
}

func (c *fakeConn) WriteTo(b []byte, dst net.Addr) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.mu.Lock()
	c.sentTo = dst
	c.mu.Unlock()

	msg, err := icmp.ParseMessage(c.proto, b)
	if err != nil {
		return 0, err
	}
	echo := msg.Body.(*icmp.Echo)
	c.mu.Lock()
	c.sentLen = len(echo.Data)
	c.seqs = append(c.seqs, echo.Seq)
	c.mu.Unlock()

	if c.silent {
		return len(b), nil
	}

	var replyType icmp.Type = ipv4.ICMPTypeEchoReply
	if c.proto == protocolIPv6ICMP {
		replyType = ipv6.ICMPTypeEchoReply
	}

	if c.noise {
		other, _ := (&icmp.Message{
			Type: replyType,
			Body: &icmp.Echo{ID: echo.ID, Seq: echo.Seq + 7, Data: echo.Data},
		}).Marshal(nil)
		c.replies <- other
	}

	reply, _ := (&icmp.Message{
		Type: replyType,
		Body: &icmp.Echo{ID: echo.ID, Seq: echo.Seq, Data: echo.Data},
	}).Marshal(nil)
	c.replies <- reply
	return len(b), nil
}

func (c *fakeConn) ReadFrom(b []byte) (int, net.Addr, error) {
	c.mu.Lock()
	deadline := c.deadline
	from := c.from
	if from == nil {
		from = c.sentTo
	}
	c.mu.Unlock()

	select {
	case r := <-c.replies:
		return copy(b, r), from, nil
	case <-time.After(time.Until(deadline)):
		return 0, nil, timeoutError{}
	}
}

func (c *fakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = t
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func literalResolver() Resolver {
	return resolve.NewHostResolverWithLookup(func(ctx context.Context, host string) ([]net.IPAddr, error) {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	})
}

func newFakeProber(conn *fakeConn, timeout time.Duration) *Prober {
	return NewProber(Options{
		Timeout:  timeout,
		Resolver: literalResolver(),
		Listen: func(network, address string) (PacketConn, error) {
			conn.network = network
			return conn, nil
		},
	})
}

func assertExactlyOne(t *testing.T, r Result) {
	t.Helper()
	if r.Alive {
		if r.Time == nil || r.Error != nil {
			t.Errorf("alive result must carry time and no error: %+v", r)
		}
		return
	}
	if r.Time != nil || r.Error == nil {
		t.Errorf("failed result must carry error and no time: %+v", r)
	}
}

func TestPingSuccessIPv4(t *testing.T) {
	conn := &fakeConn{proto: protocolICMP, replies: make(chan []byte, 4)}
	p := newFakeProber(conn, time.Second)

	r := p.Ping(context.Background(), "192.0.2.10")
	assertExactlyOne(t, r)

	if !r.Alive {
		t.Fatalf("expected alive, got error %v", *r.Error)
	}
	if *r.Time < 0 {
		t.Errorf("round trip should not be negative, got %f", *r.Time)
	}
	if conn.sentLen != DefaultPayloadSize {
		t.Errorf("payload = %d bytes, want %d", conn.sentLen, DefaultPayloadSize)
	}
	if !conn.closed {
		t.Error("socket was not closed")
	}
}

func TestPingSuccessIPv6(t *testing.T) {
	conn := &fakeConn{proto: protocolIPv6ICMP, replies: make(chan []byte, 4)}
	p := newFakeProber(conn, time.Second)

	r := p.Ping(context.Background(), "2001:db8::10")
	assertExactlyOne(t, r)

	if !r.Alive {
		t.Fatalf("expected alive, got error %v", *r.Error)
	}
	if conn.network != "udp6" && conn.network != "ip6:ipv6-icmp" {
		t.Errorf("IPv6 target opened %q socket", conn.network)
	}
}

func TestPingIgnoresUnrelatedReplies(t *testing.T) {
	conn := &fakeConn{proto: protocolICMP, replies: make(chan []byte, 4), noise: true}
	p := newFakeProber(conn, time.Second)

	r := p.Ping(context.Background(), "192.0.2.11")
	if !r.Alive {
		t.Fatalf("expected alive after skipping noise, got %+v", r)
	}
}

func TestPingIgnoresRepliesFromOtherHosts(t *testing.T) {
	tests := []struct {
		name string
		from net.Addr
	}{
		{"raw", &net.IPAddr{IP: net.ParseIP("198.51.100.9")}},
		{"datagram", &net.UDPAddr{IP: net.ParseIP("198.51.100.9")}},
		{"unknown", &net.UnixAddr{Name: "icmp", Net: "unix"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &fakeConn{proto: protocolICMP, replies: make(chan []byte, 4)}
			conn.from = tt.from
			p := newFakeProber(conn, 100*time.Millisecond)

			r := p.Ping(context.Background(), "192.0.2.1")
			assertExactlyOne(t, r)
			if r.Alive {
				t.Fatal("reply from another host completed the probe")
			}
			if r.Kind != errkind.Timeout {
				t.Errorf("kind = %q, want %q", r.Kind, errkind.Timeout)
			}
		})
	}
}

func TestPingSequenceVariesPerCall(t *testing.T) {
	conn := &fakeConn{proto: protocolICMP, replies: make(chan []byte, 4)}
	p := newFakeProber(conn, time.Second)

	for i := 0; i < 2; i++ {
		if r := p.Ping(context.Background(), "192.0.2.2"); !r.Alive {
			t.Fatalf("ping %d failed: %+v", i, r)
		}
	}
	if len(conn.seqs) != 2 || conn.seqs[0] == conn.seqs[1] {
		t.Errorf("sequence numbers = %v, want two distinct values", conn.seqs)
	}
}

func TestPingTimeout(t *testing.T) {
	conn := &fakeConn{proto: protocolICMP, replies: make(chan []byte, 1), silent: true}
	p := newFakeProber(conn, 50*time.Millisecond)

	start := time.Now()
	r := p.Ping(context.Background(), "192.0.2.12")
	assertExactlyOne(t, r)

	if r.Alive {
		t.Fatal("expected timeout, got alive")
	}
	if r.Kind != errkind.Timeout || *r.Error != "timeout" {
		t.Errorf("got kind=%q error=%q, want timeout", r.Kind, *r.Error)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
}

func TestPingSocketUnavailable(t *testing.T) {
	var tried []string
	p := NewProber(Options{
		Resolver: literalResolver(),
		Listen: func(network, address string) (PacketConn, error) {
			tried = append(tried, network)
			return nil, errors.New("socket: operation not permitted")
		},
	})

	r := p.Ping(context.Background(), "192.0.2.13")
	assertExactlyOne(t, r)

	if r.Kind != errkind.SocketUnavailable {
		t.Errorf("kind = %q, want %q", r.Kind, errkind.SocketUnavailable)
	}
	if len(tried) != 2 {
		t.Errorf("expected both datagram and raw sockets to be tried, got %v", tried)
	}
}

func TestPingTransportError(t *testing.T) {
	conn := &fakeConn{proto: protocolICMP, replies: make(chan []byte, 1), writeErr: errors.New("network is unreachable")}
	p := newFakeProber(conn, time.Second)

	r := p.Ping(context.Background(), "192.0.2.14")
	assertExactlyOne(t, r)

	if r.Kind != errkind.TransportError {
		t.Errorf("kind = %q, want %q", r.Kind, errkind.TransportError)
	}
	if *r.Error != "network is unreachable" {
		t.Errorf("error = %q", *r.Error)
	}
}

func TestPingUnresolvableHost(t *testing.T) {
	listened := false
	p := NewProber(Options{
		Resolver: literalResolver(),
		Listen: func(network, address string) (PacketConn, error) {
			listened = true
			return nil, errors.New("unexpected")
		},
	})

	for i := 0; i < 2; i++ {
		r := p.Ping(context.Background(), "does-not-exist.invalid")
		assertExactlyOne(t, r)
		if r.Alive {
			t.Fatal("unresolvable host reported alive")
		}
		if r.Kind != errkind.ResolutionFailed {
			t.Errorf("kind = %q, want %q", r.Kind, errkind.ResolutionFailed)
		}
	}
	if listened {
		t.Error("no socket should be opened when resolution fails")
	}
}

func TestPingDatagramTargetsUDPAddr(t *testing.T) {
	if privileged() {
		t.Skip("running privileged; raw socket is preferred")
	}

	conn := &fakeConn{proto: protocolICMP, replies: make(chan []byte, 2)}
	p := newFakeProber(conn, time.Second)
	p.Ping(context.Background(), "192.0.2.15")

	if _, ok := conn.sentTo.(*net.UDPAddr); !ok {
		t.Errorf("datagram socket should be addressed with *net.UDPAddr, got %T", conn.sentTo)
	}
}

func TestPingLoopback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping real ICMP probe in short mode")
	}

	p := NewProber(Options{})
	r := p.Ping(context.Background(), "127.0.0.1")
	assertExactlyOne(t, r)

	if r.Alive {
		t.Logf("Ping to 127.0.0.1: %.2fms", *r.Time)
	} else {
		// Sandboxes commonly deny ICMP sockets.
		t.Logf("Ping to 127.0.0.1 failed (%s): %s", r.Kind, *r.Error)
	}
}
