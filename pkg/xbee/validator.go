// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import "fmt"

// AnomalyType classifies a protocol anomaly found in a decoded frame
type AnomalyType int

const (
	AnomalyATError AnomalyType = iota
	AnomalyDeliveryFailure
	AnomalyEmptyPayload
	AnomalyModemReset
	AnomalyStackError
	AnomalyDisassociated
)

// ValidationError describes an anomaly in an otherwise well formed frame
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateFrame checks a decoded frame for protocol anomalies. It returns an
// empty slice when nothing is wrong.
func ValidateFrame(f Frame) []ValidationError {
	errors := []ValidationError{}

	switch f := f.(type) {
	case *ATCommandResponse:
		if f.Status != ATStatusOK {
			errors = append(errors, ValidationError{
				Type:    AnomalyATError,
				Message: fmt.Sprintf("AT %s failed: %s", f.CommandName(), FormatATStatus(f.Status)),
				Details: map[string]interface{}{"command": f.CommandName(), "status": f.Status, "frame_id": f.FrameID},
			})
		}

	case *TransmitStatus:
		if !f.Delivered() {
			errors = append(errors, ValidationError{
				Type: AnomalyDeliveryFailure,
				Message: fmt.Sprintf("Delivery to 0x%04X failed: %s after %d retries",
					f.Dest16, FormatDeliveryStatus(f.DeliveryStatus), f.RetryCount),
				Details: map[string]interface{}{"dest16": f.Dest16, "status": f.DeliveryStatus, "retries": f.RetryCount},
			})
		}

	case *ReceivePacket:
		if len(f.Payload) == 0 {
			errors = append(errors, ValidationError{
				Type:    AnomalyEmptyPayload,
				Message: fmt.Sprintf("Empty payload from %s", f.Source64),
				Details: map[string]interface{}{"source": f.Source64.String()},
			})
		}

	case *ModemStatus:
		switch {
		case f.Status == ModemWatchdogReset:
			errors = append(errors, ValidationError{
				Type:    AnomalyModemReset,
				Message: "Radio watchdog reset",
				Details: map[string]interface{}{"status": f.Status},
			})
		case f.Status == ModemDisassociated:
			errors = append(errors, ValidationError{
				Type:    AnomalyDisassociated,
				Message: "Radio left the network",
				Details: map[string]interface{}{"status": f.Status},
			})
		case f.Status >= ModemStackError:
			errors = append(errors, ValidationError{
				Type:    AnomalyStackError,
				Message: fmt.Sprintf("Radio stack error 0x%02X", f.Status),
				Details: map[string]interface{}{"status": f.Status},
			})
		}
	}

	return errors
}
