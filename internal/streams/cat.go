package streams

import "context"

// Cat concatenates a sequence of streams, delivering them in order (spec
// §4.1 operator list: "cat/concat").
type Cat struct {
	terminated
	sources []Stream
	idx     int
	h       Handler
}

func NewCat(sources ...Stream) *Cat {
	c := &Cat{sources: sources}
	if len(sources) > 0 {
		sources[0].SetHandler(c)
	}
	return c
}

func (c *Cat) SetHandler(h Handler) { c.h = h }
func (c *Cat) SetDirect(mask SourceKind) {
	for _, s := range c.sources {
		s.SetDirect(mask)
	}
}
func (c *Cat) Available(partial bool) Length {
	total := Length{Kind: LengthExact, Value: 0}
	for i := c.idx; i < len(c.sources); i++ {
		a := c.sources[i].Available(partial)
		if a.Kind == LengthUnknown {
			return Length{Kind: LengthUnknown}
		}
		if a.Kind == LengthEstimate {
			total.Kind = LengthEstimate
		}
		total.Value += a.Value
	}
	return total
}
func (c *Cat) Skip(n int64) (int64, bool) {
	var skipped int64
	for n > 0 && c.idx < len(c.sources) {
		s := c.sources[c.idx]
		k, ok := s.Skip(n)
		skipped += k
		n -= k
		if !ok {
			return skipped, false
		}
		a := s.Available(true)
		if a.Kind == LengthExact && a.Value == 0 {
			c.advance()
		} else {
			break
		}
	}
	return skipped, true
}
func (c *Cat) Close() error {
	if !c.markDone() {
		return errAlreadyTerminated
	}
	var firstErr error
	for i := c.idx; i < len(c.sources); i++ {
		if err := c.sources[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Cat) Read(ctx context.Context) {
	if c.isDone() {
		return
	}
	if c.idx >= len(c.sources) {
		if c.markDone() {
			c.h.OnEOF()
		}
		return
	}
	c.sources[c.idx].Read(ctx)
}

func (c *Cat) advance() {
	c.idx++
	if c.idx < len(c.sources) {
		c.sources[c.idx].SetHandler(c)
	}
}

func (c *Cat) OnData(p []byte) (int, error)   { return c.h.OnData(p) }
func (c *Cat) OnDirect(k SourceKind, fd uintptr, max int) (int, Status) {
	return c.h.OnDirect(k, fd, max)
}
func (c *Cat) OnError(err error) {
	if c.markDone() {
		c.h.OnError(err)
	}
}
func (c *Cat) OnEOF() {
	c.advance()
	if c.idx >= len(c.sources) {
		if c.markDone() {
			c.h.OnEOF()
		}
	}
	// Caller re-enters Read to continue with the next source.
}
