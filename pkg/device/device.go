// Package device defines the capability contract every instrument driver
// in this repository satisfies, and the machinery to enforce it: the
// contract as introspectable data, reflection-derived device descriptors,
// a placeholder value policy and a verifier that checks drivers and their
// dummies without touching hardware.
package device

import (
	"errors"
	"reflect"
)

// Device is the capability contract. Every driver and every dummy
// sibling exposes at least this surface; instrument families layer their
// own operations on top.
type Device interface {
	// Initialize opens the transport and leaves the device connected, or
	// returns a connection error. A failed Initialize leaves the device
	// in a state where Initialize can be retried.
	Initialize() error

	// Close releases the transport. Close is idempotent: calling it
	// before Initialize or calling it twice returns nil.
	Close() error

	// Write sends a raw command that expects no response.
	Write(cmd string) error

	// Query sends a raw command and returns the instrument's response.
	Query(cmd string) (string, error)

	// IDN returns the instrument identification string. It is readable
	// immediately after a successful Initialize.
	IDN() (string, error)
}

// TypeDevice is the interface type token for Device. The contract table
// and the registry derive their required-member lists from it.
var TypeDevice = reflect.TypeOf((*Device)(nil)).Elem()

// ErrNotConnected is returned by driver operations invoked before a
// successful Initialize.
var ErrNotConnected = errors.New("device: not connected")
