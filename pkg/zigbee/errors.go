// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zigbee

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/xbgate/pkg/xbee"
)

var (
	// ErrTimeout means no complete frame arrived before the reply timeout.
	ErrTimeout = errors.New("zigbee: read timeout")
	// ErrTransport wraps short reads and I/O failures of the transport.
	ErrTransport = errors.New("zigbee: transport failure")
	// ErrNoReply means the exchange ended without a matching AT response.
	ErrNoReply = errors.New("zigbee: no reply")
	// ErrUnexpectedReply means the AT response data had the wrong shape.
	ErrUnexpectedReply = errors.New("zigbee: unexpected reply data")
	// ErrAssociationTimeout means the module was still scanning when the
	// association wait ran out.
	ErrAssociationTimeout = errors.New("zigbee: association timeout")
)

// ATStatusError is returned when the module answers an AT command with a
// non-zero status.
type ATStatusError struct {
	Command string
	Status  uint8
}

func (e *ATStatusError) Error() string {
	return fmt.Sprintf("zigbee: AT %s failed: %s", e.Command, xbee.FormatATStatus(e.Status))
}

// StepError reports the configuration step that stopped Configure.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("zigbee: configure %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// AssociationError carries a non-zero association indication code.
type AssociationError struct {
	Code uint8
}

func (e *AssociationError) Error() string {
	return fmt.Sprintf("zigbee: join failed (0x%02X): %s", e.Code, xbee.AssociationMessage(e.Code))
}
