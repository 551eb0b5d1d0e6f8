// Package collector builds per-vendor adapters for managed devices.
package collector

import (
	"fmt"
	"sync"

	"fwsync/internal/domain"
	"fwsync/internal/ports"
)

// Builder constructs a collector from a device's connection parameters.
type Builder func(d domain.Device) (ports.Collector, error)

// Factory maps device vendors to collector builders. Adapters register
// themselves once at composition time; dispatch is by the vendor enum, not
// by string comparison scattered through the engine.
type Factory struct {
	mu       sync.RWMutex
	builders map[domain.Vendor]Builder
}

func NewFactory() *Factory {
	return &Factory{builders: make(map[domain.Vendor]Builder)}
}

// Register installs the builder for a vendor, replacing any previous one.
func (f *Factory) Register(v domain.Vendor, b Builder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[v] = b
}

// Collector returns the adapter for the device. Only firewall devices are
// synchronizable.
func (f *Factory) Collector(d domain.Device) (ports.Collector, error) {
	if d.Category != domain.CategoryFirewall {
		return nil, fmt.Errorf("device %q category %q does not support synchronization", d.Name, d.Category)
	}

	f.mu.RLock()
	b, ok := f.builders[d.Vendor]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no collector registered for vendor %q", d.Vendor)
	}
	return b(d)
}

// DefaultFactory returns a factory with the built-in adapters registered.
func DefaultFactory() *Factory {
	f := NewFactory()
	f.Register(domain.VendorMock, func(d domain.Device) (ports.Collector, error) {
		return NewMock(d), nil
	})
	return f
}
