// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package xbee implements the XBee API frame format used by ZigBee radio
// modules in API mode.
//
// A frame is a start delimiter, a big-endian length, a frame type, a
// type-specific body and a one byte checksum. This package provides frame
// encoding and decoding, checksum validation, a streaming decoder for
// passive monitoring, and formatting helpers. It performs no I/O.
package xbee

// Frame delimiting
const (
	StartDelimiter = 0x7E
	HeaderSize     = 3 // delimiter + 2 length bytes
	ChecksumSize   = 1
)

// MaxFrameLength is the largest length field accepted by the streaming decoder.
const MaxFrameLength = 512

// Frame types
const (
	FrameATCommand         = 0x08
	FrameTransmitRequest   = 0x10
	FrameATCommandResponse = 0x88
	FrameModemStatus       = 0x8A
	FrameTransmitStatus    = 0x8B
	FrameReceivePacket     = 0x90
)

// Encoded sizes, delimiter to checksum, without variable data
const (
	atCommandOverhead       = 8  // 7E LL LL 08 id c0 c1 cs
	transmitRequestOverhead = 18 // 7E LL LL 10 id a64[8] a16[2] radius opts cs
)

// Minimum decoded body sizes, frame type through checksum
const (
	minATResponseSize     = 6
	minModemStatusSize    = 3
	minTransmitStatusSize = 8
	minReceivePacketSize  = 13
)

// AT command mnemonics
const (
	CmdPanID               = "ID"
	CmdOperatingPanID      = "OP"
	CmdScanChannels        = "SC"
	CmdScanDuration        = "SD"
	CmdStackProfile        = "ZS"
	CmdEncryptionEnable    = "EE"
	CmdEncryptionOptions   = "EO"
	CmdNetworkKey          = "NK"
	CmdLinkKey             = "KY"
	CmdJoinTime            = "NJ"
	CmdNodeIdentifier      = "NI"
	CmdAssociation         = "AI"
	CmdHardwareVersion     = "HV"
	CmdFirmwareVersion     = "VR"
	CmdSerialHigh          = "SH"
	CmdSerialLow           = "SL"
	CmdApplyChanges        = "AC"
	CmdWrite               = "WR"
	CmdMaxRFPayload        = "NP"
	CmdReceivedSignal      = "DB"
	CmdBaudRate            = "BD"
	CmdSleepCount          = "SN"
	CmdSleepPeriod         = "SP"
	CmdSleepMode           = "SM"
	CmdOperatingChannel    = "CH"
	CmdNodeDiscover        = "ND"
	CmdDIO5                = "D5"
	CmdPWM0                = "P0"
	CmdRSSIPWMTimer        = "RP"
	atCommandMnemonicWidth = 2
)

// AT command response status
const (
	ATStatusOK               = 0x00
	ATStatusError            = 0x01
	ATStatusInvalidCommand   = 0x02
	ATStatusInvalidParameter = 0x03
	ATStatusTxFailure        = 0x04
)

// Modem status codes
const (
	ModemHardwareReset       = 0x00
	ModemWatchdogReset       = 0x01
	ModemJoinedNetwork       = 0x02
	ModemDisassociated       = 0x03
	ModemCoordinatorStarted  = 0x06
	ModemSecurityKeyUpdated  = 0x07
	ModemVoltageExceeded     = 0x0D
	ModemConfigChangedOnJoin = 0x11
	ModemStackError          = 0x80
)

// Transmit delivery status codes
const (
	DeliverySuccess         = 0x00
	DeliveryMACAckFailure   = 0x01
	DeliveryCCAFailure      = 0x02
	DeliveryInvalidEndpoint = 0x15
	DeliveryNetworkAckFail  = 0x21
	DeliveryNotJoined       = 0x22
	DeliverySelfAddressed   = 0x23
	DeliveryAddressNotFound = 0x24
	DeliveryRouteNotFound   = 0x25
	DeliveryPayloadTooLarge = 0x74
)

// Association indication codes
const (
	AssociationSuccess          = 0x00
	AssociationNoPANs           = 0x21
	AssociationNoValidPAN       = 0x22
	AssociationJoinExpired      = 0x23
	AssociationNoJoinableBeacon = 0x24
	AssociationUnexpectedState  = 0x25
	AssociationSecurityFailure  = 0x27
	AssociationCoordStartFailed = 0x2A
	AssociationCheckingCoord    = 0x2B
	AssociationLeaveFailed      = 0x2C
	AssociationNoResponse       = 0xAB
	AssociationKeyUnsecured     = 0xAC
	AssociationKeyNotReceived   = 0xAD
	AssociationBadLinkKey       = 0xAF
	AssociationScanning         = 0xFF
)

// Addresses and network defaults
const (
	AddressUnknown16       = 0xFFFE
	DefaultChannelBitmask  = 0xFFFF
	DefaultScanDuration    = 3
	DefaultStackProfile    = 0
	JoinAlways             = 0xFF
	ReceiveOptionAck       = 0x01
	ReceiveOptionBroadcast = 0x02
)

// BaudCode returns the BD parameter for a serial rate. Unsupported rates
// fall back to the 9600 code.
func BaudCode(rate int) uint8 {
	switch rate {
	case 1200:
		return 0
	case 2400:
		return 1
	case 4800:
		return 2
	case 19200:
		return 4
	case 38400:
		return 5
	case 57600:
		return 6
	case 115200:
		return 7
	default:
		return 3
	}
}
