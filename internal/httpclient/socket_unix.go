//go:build unix

package httpclient

import "golang.org/x/sys/unix"

// socketBufferSize widens the kernel send/receive buffers past their
// usual default, worthwhile once a pool is driving many concurrent
// range requests over the same handful of connections.
const socketBufferSize = 4 * 1024 * 1024

// setSocketBuffers is best-effort: a tuning failure here should never
// fail the dial, so errors are discarded.
func setSocketBuffers(fd uintptr) {
	_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, socketBufferSize)
	_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, socketBufferSize)
}
