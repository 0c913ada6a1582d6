// listener.go provides functions to create network listeners.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
)

func getListener(
	_ context.Context,
	addr string,
) (net.Listener, error) {
	parts := strings.SplitN(addr, ":", 2)

	if len(parts) == 1 {
		// a stale socket from a previous run would make Listen fail
		if err := os.Remove(addr); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("unable to remove the stale socket '%s': %w", addr, err)
		}
		return net.Listen("unix", addr)
	}

	switch parts[0] {
	case "tcp+ssl":
		return nil, fmt.Errorf("unable to listen at '%s': TLS is not supported, use 'tcp:' or a unix socket path", addr)
	case "tcp", "tcp4", "tcp6", "unix", "unixpacket":
		return net.Listen(parts[0], parts[1])
	}

	return net.Listen("tcp", addr)
}
