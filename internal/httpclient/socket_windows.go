//go:build windows

package httpclient

import "golang.org/x/sys/windows"

const socketBufferSize = 4 * 1024 * 1024

// setSocketBuffers is best-effort: a tuning failure here should never
// fail the dial, so errors are discarded.
func setSocketBuffers(fd uintptr) {
	h := windows.Handle(fd)
	_ = windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_RCVBUF, socketBufferSize)
	_ = windows.SetsockoptInt(h, windows.SOL_SOCKET, windows.SO_SNDBUF, socketBufferSize)
}
