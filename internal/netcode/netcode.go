// Package netcode is the multiplayer session transport layer: a Host that
// accepts connecting peers and assigns them stable small-integer identities,
// a Client that drives one outbound connection through an explicit state
// machine, and a SessionManager that unifies the two behind a single API.
//
// The package is a cooperative polling design. There is no background
// goroutine touching the network; all I/O happens inside Service, which the
// game loop is expected to call every frame. Host, Client and SessionManager
// are single-owner values: wrap the whole object in one mutex if it must be
// shared across goroutines.
package netcode

import (
	"sync"
	"sync/atomic"

	"github.com/skirmish-engine/netplay/internal/transport"
)

var (
	initialized atomic.Bool

	netMu   sync.Mutex
	network transport.Network
)

// Init brings up the network subsystem on the production ENet transport.
// It must be called before any Host or Client is created. A second Init
// without an intervening Shutdown returns ErrAlreadyInitialized.
func Init() error {
	return InitNetwork(transport.NewENet())
}

// InitNetwork is Init with an explicit transport network, for tests and
// embeddings that supply their own (for example transport.NewMemory).
func InitNetwork(n transport.Network) error {
	if initialized.Load() {
		return ErrAlreadyInitialized
	}

	netMu.Lock()
	network = n
	netMu.Unlock()

	initialized.Store(true)
	return nil
}

// Shutdown tears down the network subsystem. Safe to call repeatedly or
// without a prior Init; after Shutdown, Init may be called again. Hosts and
// clients must be closed before the subsystem is shut down.
func Shutdown() {
	if !initialized.Swap(false) {
		return
	}

	netMu.Lock()
	n := network
	network = nil
	netMu.Unlock()

	if n != nil {
		_ = n.Close()
	}
}

// IsInitialized reports whether Init has run without a matching Shutdown.
func IsInitialized() bool {
	return initialized.Load()
}

func requireInitialized() (transport.Network, error) {
	if !initialized.Load() {
		return nil, ErrNotInitialized
	}

	netMu.Lock()
	n := network
	netMu.Unlock()
	if n == nil {
		return nil, ErrNotInitialized
	}
	return n, nil
}
