package socket

import (
	"net"
	"syscall"
)

// rawFD extracts the underlying file descriptor from conn, when it
// exposes one, for the direct/splice fast path (spec §4.1 "Direct
// (zero-copy) mode").
func rawFD(conn net.Conn) (uintptr, bool) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, false
	}
	rc, err := sc.SyscallConn()
	if err != nil {
		return 0, false
	}
	var fd uintptr
	if err := rc.Control(func(f uintptr) { fd = f }); err != nil {
		return 0, false
	}
	return fd, true
}
