// Package security implements the seed/key security access state machine
// (component E): it tries an ordered list of access levels against
// whichever protocol.Encoder it's given, deriving each level's key with a
// named algorithm from the registry in algorithms.go.
package security

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ecudump/logging"
	"ecudump/protocol"
)

// levels is the fixed order of security levels PerformAccess attempts.
var levels = []byte{1, 2, 3, 5, 7}

// nrcRequiredTimeDelayNotExpired is 0x37 in both the UDS and KWP NRC
// tables; security doesn't import either protocol package to stay
// encoder-agnostic, so the value is spelled out here once.
const nrcRequiredTimeDelayNotExpired byte = 0x37

// Access is one seed/key negotiation session. It owns its own algorithm
// registry, seeded with the nine built-ins at construction, so that
// registering a custom algorithm in one Access never affects another.
type Access struct {
	mu       sync.RWMutex
	registry map[string]Algorithm
}

// NewAccess builds an Access with the default algorithm and all eight
// vendor placeholders registered.
func NewAccess() *Access {
	return &Access{
		registry: map[string]Algorithm{
			"default":    defaultAlgorithm,
			"bmw":        bmwAlgorithm,
			"audi":       audiAlgorithm,
			"mercedes":   mercedesAlgorithm,
			"volkswagen": volkswagenAlgorithm,
			"toyota":     toyotaAlgorithm,
			"honda":      hondaAlgorithm,
			"ford":       fordAlgorithm,
			"gm":         gmAlgorithm,
		},
	}
}

// Register adds or replaces a named algorithm in this Access's registry.
func (a *Access) Register(name string, algorithm Algorithm) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.registry[name] = algorithm
}

// Names returns the algorithm names currently registered on this Access.
func (a *Access) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.registry))
	for name := range a.registry {
		names = append(names, name)
	}
	return names
}

// lookup returns the named algorithm, or defaultAlgorithm if unknown.
func (a *Access) lookup(name string) Algorithm {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if algorithm, ok := a.registry[name]; ok {
		return algorithm
	}
	return defaultAlgorithm
}

// PerformAccess walks levels in order, requesting a seed, deriving a key
// via the named algorithm, and sending the key back. It returns the level
// unlocked, or an error if every level failed.
func (a *Access) PerformAccess(ctx context.Context, enc protocol.Encoder, addr uint16, algorithmName string, log *logging.Logger) (byte, error) {
	algorithm := a.lookup(algorithmName)

	for _, level := range levels {
		seedLevel := level
		if level%2 == 0 {
			seedLevel = level - 1
		}

		seedResp, err := enc.SecurityAccess(ctx, addr, seedLevel, nil)
		if err != nil {
			return 0, fmt.Errorf("security: seed request at level %d: %w", seedLevel, err)
		}
		if !seedResp.Positive || len(seedResp.Data) == 0 {
			if log != nil {
				log.Debugf("security: seed request rejected at level %d, trying next", seedLevel)
			}
			continue
		}

		key := algorithm(seedResp.Data, level)
		if key == nil {
			if log != nil {
				log.Debugf("security: algorithm %q declined seed at level %d", algorithmName, level)
			}
			continue
		}

		keyLevel := level
		if level%2 == 1 {
			keyLevel = level + 1
		}

		keyResp, err := enc.SecurityAccess(ctx, addr, keyLevel, key)
		if err != nil {
			return 0, fmt.Errorf("security: key reply at level %d: %w", keyLevel, err)
		}
		if keyResp.Positive {
			return level, nil
		}
		if keyResp.NRC == nrcRequiredTimeDelayNotExpired {
			time.Sleep(1 * time.Second)
			keyResp, err = enc.SecurityAccess(ctx, addr, keyLevel, key)
			if err != nil {
				return 0, fmt.Errorf("security: key retry at level %d: %w", keyLevel, err)
			}
			if keyResp.Positive {
				return level, nil
			}
		}
	}

	return 0, fmt.Errorf("security: access denied at all levels %v with algorithm %q", levels, algorithmName)
}
