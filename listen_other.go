//go:build !linux

package memprotogw

import "net"

// Listen opens a TCP listener on addr. SO_REUSEPORT is Linux-specific;
// on other platforms this is a plain net.Listen.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
