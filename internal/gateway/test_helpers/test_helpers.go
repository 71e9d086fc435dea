package test_helpers

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

var PortCounter int32 = 8700

var (
	portMutex sync.Mutex
	usedPorts = make(map[string]bool)
)

// GetNextPort hands out a unique localhost host:port for a mock
// server; tests run in parallel and must not collide.
func GetNextPort() string {
	portMutex.Lock()
	defer portMutex.Unlock()

	for {
		port := atomic.AddInt32(&PortCounter, 1)
		portStr := fmt.Sprintf("localhost:%d", port)
		if !usedPorts[portStr] {
			usedPorts[portStr] = true
			return portStr
		}
	}
}

// ReleasePort marks a port as available again
func ReleasePort(port string) {
	portMutex.Lock()
	defer portMutex.Unlock()
	delete(usedPorts, port)
}

// BindToPort binds a listener, rotating to a fresh port on collision.
func BindToPort(endpoint string) (net.Listener, string, error) {
	current := endpoint
	for retries := 0; retries < 10; retries++ {
		listener, err := net.Listen("tcp", current)
		if err == nil {
			return listener, current, nil
		}
		current = GetNextPort()
	}
	return nil, "", fmt.Errorf("could not bind to any port after retries, last tried %s", current)
}
