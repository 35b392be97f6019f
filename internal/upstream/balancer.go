package upstream

import (
	"context"
	"net"
	"time"

	"github.com/danielloader/beng-proxy/internal/perror"
)

// MaxRetries bounds the number of alternate addresses a balancer will try
// for one request before giving up.
const MaxRetries = 3

// Balancer picks a live address out of a resource's AddressList, skipping
// entries the FailureTable marks Failed or Monitor, and picks by sticky
// hash when a session id is given, round-robin otherwise.
type Balancer struct {
	Failures *FailureTable
	Dialer   net.Dialer

	rrCursor map[string]int
}

func NewBalancer(failures *FailureTable) *Balancer {
	return &Balancer{
		Failures: failures,
		Dialer:   net.Dialer{Timeout: 10 * time.Second},
		rrCursor: make(map[string]int),
	}
}

// Pick selects one address from addrs, preferring sticky when
// stickySessionID is non-empty, otherwise round-robin, and skipping
// addresses currently Failed or Monitor unless that would leave no
// candidate at all.
func (b *Balancer) Pick(addrs []string, stickySessionID string) (string, error) {
	if len(addrs) == 0 {
		return "", perror.New(perror.KindUpstream, perror.ReasonNoAddresses, nil)
	}
	live := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if b.Failures.Get(a) == StatusOK || b.Failures.Get(a) == StatusFade {
			live = append(live, a)
		}
	}
	if len(live) == 0 {
		live = addrs // every candidate down; try one anyway
	}

	if stickySessionID != "" {
		idx := int(StickyHash(stickySessionID) % uint32(len(live)))
		return live[idx], nil
	}

	key := addrs[0]
	idx := b.rrCursor[key] % len(live)
	b.rrCursor[key] = idx + 1
	return live[idx], nil
}

// Dial connects to addr, recording success/failure in the FailureTable.
func (b *Balancer) Dial(ctx context.Context, addr string) (net.Conn, error) {
	conn, err := b.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		b.Failures.Set(addr, StatusFailed, 20*time.Second)
		return nil, perror.New(perror.KindUpstream, perror.ReasonConnectRefused, err)
	}
	b.Failures.Clear(addr)
	return conn, nil
}

// DialWithRetry tries up to min(len(addrs)-1, MaxRetries)+1 addresses
// before giving up, advancing to a new pick on each failure.
func (b *Balancer) DialWithRetry(ctx context.Context, addrs []string, stickySessionID string) (net.Conn, string, error) {
	retries := len(addrs) - 1
	if retries > MaxRetries {
		retries = MaxRetries
	}
	tried := make(map[string]bool, retries+1)
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		candidates := make([]string, 0, len(addrs))
		for _, a := range addrs {
			if !tried[a] {
				candidates = append(candidates, a)
			}
		}
		if len(candidates) == 0 {
			break
		}
		addr, err := b.Pick(candidates, stickySessionID)
		if err != nil {
			return nil, "", err
		}
		tried[addr] = true
		conn, err := b.Dial(ctx, addr)
		if err == nil {
			return conn, addr, nil
		}
		lastErr = err
	}
	return nil, "", lastErr
}
