// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Wrap with fmt.Errorf("...: %w") and test with errors.Is.
var (
	// Packet decoding errors
	ErrPacketTooShort   = errors.New("nf2cap: packet too short")
	ErrUnsupportedProto = errors.New("nf2cap: unsupported protocol")

	// Capture source errors
	ErrSourceTimeout = errors.New("nf2cap: source read timeout")

	// Reporter errors
	ErrReporterNotFound = errors.New("nf2cap: reporter not found")

	// Configuration errors
	ErrConfigInvalid = errors.New("nf2cap: invalid configuration")
)
