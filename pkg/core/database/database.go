// This Source Code Form is subject to the terms of the MIT License.
// If a copy of the MIT License was not distributed with this
// file, you can obtain one at https://opensource.org/licenses/MIT.
//
// Copyright (c) DINARI NETWORK. All rights reserved.

package database

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrKeyNotFound requested key does not exist in storage.
	ErrKeyNotFound = errors.New("key not found")
)

// DB is the narrow durable key/value surface the node consumes. Values are
// opaque bytes; callers choose the serialization format (JSON throughout
// this codebase). Writes are expected to be synchronous and durable before
// the call returns.
type DB interface {
	// Get fetches the value for a key, ErrKeyNotFound if absent.
	Get(key []byte) ([]byte, error)
	// Put sets the value for a key, overwriting any previous value.
	Put(key, value []byte) error
	// Delete removes a key. Deleting an absent key is not an error.
	Delete(key []byte) error
	// IteratePrefix walks all entries whose key carries the prefix. The
	// callback returns false to stop early.
	IteratePrefix(prefix []byte, fn func(key, value []byte) bool) error
	// Close releases the underlying storage.
	Close() error
}

// Driver is the factory registered by each storage backend.
type Driver interface {
	// Open a database at the given path.
	Open(path string) (DB, error)
	// Name is the unique driver identifier used in config.
	Name() string
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available by its name. Called from backend init().
func Register(d Driver) error {
	driversMu.Lock()
	defer driversMu.Unlock()

	if d == nil {
		return errors.New("database: driver is nil")
	}

	if _, dup := drivers[d.Name()]; dup {
		return fmt.Errorf("database: driver %s already registered", d.Name())
	}

	drivers[d.Name()] = d
	return nil
}

// From retrieves a registered driver by name.
func From(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()

	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("database: unknown driver %s", name)
	}

	return d, nil
}

// Drivers returns the names of all registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}

	return names
}
