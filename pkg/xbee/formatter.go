// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"fmt"
	"strings"
	"time"
)

// FormatFrame formats a frame into a human-readable line with a timestamp
func FormatFrame(f Frame, at time.Time) string {
	timestamp := at.Format("15:04:05.000")
	if f == nil {
		return fmt.Sprintf("[%s] <nil>\n", timestamp)
	}

	result := fmt.Sprintf("[%s] %s (0x%02X)", timestamp, FormatFrameType(f.FrameType()), f.FrameType())

	switch f := f.(type) {
	case *ATCommand:
		result += fmt.Sprintf(" id=%d cmd=%s params=%s", f.FrameID, f.CommandName(), formatBytes(f.Params))
	case *TransmitRequest:
		result += fmt.Sprintf(" id=%d dest=%s/0x%04X len=%d payload=%s",
			f.FrameID, f.Dest64, f.Dest16, len(f.Payload), formatBytes(f.Payload))
	case *ATCommandResponse:
		result += fmt.Sprintf(" id=%d cmd=%s status=%s data=%s",
			f.FrameID, f.CommandName(), FormatATStatus(f.Status), formatBytes(f.Data))
	case *ModemStatus:
		result += fmt.Sprintf(" status=%s", FormatModemStatus(f.Status))
	case *TransmitStatus:
		result += fmt.Sprintf(" id=%d dest16=0x%04X retries=%d delivery=%s discovery=0x%02X",
			f.FrameID, f.Dest16, f.RetryCount, FormatDeliveryStatus(f.DeliveryStatus), f.DiscoveryStatus)
	case *ReceivePacket:
		result += fmt.Sprintf(" src=%s/0x%04X opts=0x%02X len=%d payload=%s",
			f.Source64, f.Source16, f.Options, len(f.Payload), formatBytes(f.Payload))
	}

	return result + "\n"
}

// FormatFrameType returns the human-readable name for a frame type
func FormatFrameType(frameType uint8) string {
	switch frameType {
	case FrameATCommand:
		return "AT_COMMAND"
	case FrameTransmitRequest:
		return "TRANSMIT_REQUEST"
	case FrameATCommandResponse:
		return "AT_COMMAND_RESPONSE"
	case FrameModemStatus:
		return "MODEM_STATUS"
	case FrameTransmitStatus:
		return "TRANSMIT_STATUS"
	case FrameReceivePacket:
		return "RECEIVE_PACKET"
	default:
		return fmt.Sprintf("UNKNOWN_0x%02X", frameType)
	}
}

// FormatATStatus returns the name of an AT command response status
func FormatATStatus(status uint8) string {
	switch status {
	case ATStatusOK:
		return "OK"
	case ATStatusError:
		return "ERROR"
	case ATStatusInvalidCommand:
		return "INVALID_COMMAND"
	case ATStatusInvalidParameter:
		return "INVALID_PARAMETER"
	case ATStatusTxFailure:
		return "TX_FAILURE"
	default:
		return fmt.Sprintf("0x%02X", status)
	}
}

// FormatModemStatus returns the name of a modem status code
func FormatModemStatus(status uint8) string {
	switch status {
	case ModemHardwareReset:
		return "HARDWARE_RESET"
	case ModemWatchdogReset:
		return "WATCHDOG_RESET"
	case ModemJoinedNetwork:
		return "JOINED_NETWORK"
	case ModemDisassociated:
		return "DISASSOCIATED"
	case ModemCoordinatorStarted:
		return "COORDINATOR_STARTED"
	case ModemSecurityKeyUpdated:
		return "SECURITY_KEY_UPDATED"
	case ModemVoltageExceeded:
		return "VOLTAGE_EXCEEDED"
	case ModemConfigChangedOnJoin:
		return "CONFIG_CHANGED_ON_JOIN"
	}
	if status >= ModemStackError {
		return fmt.Sprintf("STACK_ERROR_0x%02X", status)
	}
	return fmt.Sprintf("0x%02X", status)
}

// FormatDeliveryStatus returns the name of a transmit delivery status
func FormatDeliveryStatus(status uint8) string {
	switch status {
	case DeliverySuccess:
		return "SUCCESS"
	case DeliveryMACAckFailure:
		return "MAC_ACK_FAILURE"
	case DeliveryCCAFailure:
		return "CCA_FAILURE"
	case DeliveryInvalidEndpoint:
		return "INVALID_ENDPOINT"
	case DeliveryNetworkAckFail:
		return "NETWORK_ACK_FAILURE"
	case DeliveryNotJoined:
		return "NOT_JOINED"
	case DeliverySelfAddressed:
		return "SELF_ADDRESSED"
	case DeliveryAddressNotFound:
		return "ADDRESS_NOT_FOUND"
	case DeliveryRouteNotFound:
		return "ROUTE_NOT_FOUND"
	case DeliveryPayloadTooLarge:
		return "PAYLOAD_TOO_LARGE"
	default:
		return fmt.Sprintf("0x%02X", status)
	}
}

// AssociationMessage describes an association indication code as reported
// by the AI command.
func AssociationMessage(code uint8) string {
	switch code {
	case AssociationSuccess:
		return "successfully formed or joined a network"
	case AssociationNoPANs:
		return "scan found no PANs"
	case AssociationNoValidPAN:
		return "scan found no valid PANs based on current SC and ID settings"
	case AssociationJoinExpired:
		return "valid coordinator or routers found, but they are not allowing joining (NJ expired)"
	case AssociationNoJoinableBeacon:
		return "no joinable beacons were found"
	case AssociationUnexpectedState:
		return "unexpected state, node should not be attempting to join at this time"
	case AssociationSecurityFailure:
		return "node joining attempt failed (typically due to incompatible security settings)"
	case AssociationCoordStartFailed:
		return "coordinator start attempt failed"
	case AssociationCheckingCoord:
		return "checking for an existing coordinator"
	case AssociationLeaveFailed:
		return "attempt to leave the network failed"
	case AssociationNoResponse:
		return "attempted to join a device that did not respond"
	case AssociationKeyUnsecured:
		return "secure join error, network security key received unsecured"
	case AssociationKeyNotReceived:
		return "secure join error, network security key not received"
	case AssociationBadLinkKey:
		return "secure join error, joining device does not have the right preconfigured link key"
	case AssociationScanning:
		return "scanning for a ZigBee network"
	default:
		return fmt.Sprintf("unknown association status 0x%02X", code)
	}
}

func formatBytes(b []byte) string {
	if len(b) == 0 {
		return "-"
	}
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02X", v)
	}
	return strings.Join(parts, " ")
}
