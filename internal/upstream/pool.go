package upstream

import (
	"container/list"
	"net"
	"sync"
	"time"
)

// idleTimeout bounds how long a pooled connection sits unused before it
// is closed and dropped.
const idleTimeout = 30 * time.Second

type pooledConn struct {
	conn    net.Conn
	addedAt time.Time
}

// Pool is a bounded LIFO of idle backend connections keyed by address,
// reused across requests instead of dialing fresh every time.
type Pool struct {
	mu      sync.Mutex
	perAddr map[string]*list.List
	maxIdle int
}

func NewPool(maxIdlePerAddr int) *Pool {
	return &Pool{
		perAddr: make(map[string]*list.List),
		maxIdle: maxIdlePerAddr,
	}
}

// Get pops the most recently returned idle connection for addr, if any,
// discarding entries that have sat idle past idleTimeout.
func (p *Pool) Get(addr string) net.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.perAddr[addr]
	if !ok {
		return nil
	}
	for l.Len() > 0 {
		e := l.Back()
		l.Remove(e)
		pc := e.Value.(*pooledConn)
		if time.Since(pc.addedAt) > idleTimeout {
			pc.conn.Close()
			continue
		}
		return pc.conn
	}
	return nil
}

// Put returns conn to the pool for reuse, closing it instead if the
// per-address idle limit is already reached.
func (p *Pool) Put(addr string, conn net.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.perAddr[addr]
	if !ok {
		l = list.New()
		p.perAddr[addr] = l
	}
	if l.Len() >= p.maxIdle {
		conn.Close()
		return
	}
	l.PushBack(&pooledConn{conn: conn, addedAt: time.Now()})
}

// Drop closes and discards conn without returning it to the pool, used
// when the connection is known to be in a bad state (e.g. the response
// was close-delimited, or a protocol error occurred).
func (p *Pool) Drop(conn net.Conn) {
	conn.Close()
}

// CloseIdle closes every pooled connection across every address, used on
// shutdown.
func (p *Pool) CloseIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range p.perAddr {
		for e := l.Front(); e != nil; e = e.Next() {
			e.Value.(*pooledConn).conn.Close()
		}
		l.Init()
	}
}
