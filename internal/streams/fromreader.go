package streams

import (
	"context"
	"io"
)

// FromReader adapts a plain io.Reader (such as the body reader produced by
// the HTTP/1.1 framing layer) into a Stream, bridging the blocking
// goroutine-per-connection I/O model to the lazy-stream
// callback contract used by filters and the template processor.
type FromReader struct {
	terminated
	r      io.Reader
	closer io.Closer
	length Length
	h      Handler
	buf    [32 * 1024]byte
}

func NewFromReader(r io.Reader, length Length) *FromReader {
	fr := &FromReader{r: r, length: length}
	if c, ok := r.(io.Closer); ok {
		fr.closer = c
	}
	return fr
}

func (fr *FromReader) SetHandler(h Handler)          { fr.h = h }
func (fr *FromReader) SetDirect(SourceKind)          {}
func (fr *FromReader) Available(bool) Length         { return fr.length }
func (fr *FromReader) Skip(n int64) (int64, bool) {
	written, err := io.CopyN(io.Discard, fr.r, n)
	return written, err == nil
}
func (fr *FromReader) Close() error {
	if !fr.markDone() {
		return errAlreadyTerminated
	}
	if fr.closer != nil {
		return fr.closer.Close()
	}
	return nil
}

func (fr *FromReader) Read(ctx context.Context) {
	if fr.isDone() || fr.h == nil {
		return
	}
	n, err := fr.r.Read(fr.buf[:])
	if n > 0 {
		if _, werr := fr.h.OnData(fr.buf[:n]); werr != nil {
			if fr.markDone() {
				fr.h.OnError(werr)
			}
			return
		}
	}
	if err == io.EOF {
		if fr.markDone() {
			fr.h.OnEOF()
		}
		return
	}
	if err != nil {
		if fr.markDone() {
			fr.h.OnError(err)
		}
	}
}
