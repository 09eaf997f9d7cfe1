// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package zigbee

import (
	"io"
	"time"
)

// Transport is the byte link to the radio module.
//
// Read follows the go.bug.st/serial contract: a read that returns zero bytes
// and a nil error means the timeout set with SetReadTimeout elapsed.
type Transport interface {
	io.Reader
	io.Writer
	SetReadTimeout(timeout time.Duration) error
	SetBaudRate(rate int) error
}
