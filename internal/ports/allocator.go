package ports

import (
	"errors"
	"fmt"
	"net"
	"sort"

	"github.com/mattbr/branchbox/internal/config"
)

const (
	// offsetStep keeps allocations on round numbers so a service's
	// external port is recognizable from its base port.
	offsetStep = 10

	// maxAttempts bounds the search so allocation always terminates.
	maxAttempts = 100
)

// ErrExhausted is returned when no free offset was found within the search
// bound. The offset returned alongside it is the last candidate tried; callers
// may proceed with it at the risk of a collision.
var ErrExhausted = errors.New("no free port offset found")

// BasePorts collects every host-visible base port across the service specs:
// each service's internal port plus its extra ports.
func BasePorts(specs map[string]config.ServiceSpec) []int {
	var ports []int
	for _, svc := range specs {
		if svc.Port > 0 {
			ports = append(ports, svc.Port)
		}
		ports = append(ports, svc.ExtraPorts...)
	}
	sort.Ints(ports)
	return ports
}

// Allocate finds the lowest port offset that is neither recorded in used nor
// occupied on the live network stack for any of basePorts. With no base ports
// there is nothing to shift and the offset is 0.
//
// Availability is probed, not reserved: a port that is free here can still be
// taken before the containers bind it.
func Allocate(used map[int]bool, basePorts []int) (int, error) {
	if len(basePorts) == 0 {
		return 0, nil
	}

	candidate := 0
	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidate = attempt * offsetStep
		if used[candidate] {
			continue
		}

		if allAvailable(basePorts, candidate) {
			return candidate, nil
		}
	}

	return candidate, ErrExhausted
}

// allAvailable reports whether every shifted base port can be bound.
func allAvailable(basePorts []int, offset int) bool {
	for _, base := range basePorts {
		if !isPortAvailable(base + offset) {
			return false
		}
	}
	return true
}

// isPortAvailable checks if a port is available by attempting to listen on it
func isPortAvailable(port int) bool {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	_ = listener.Close()
	return true
}
