// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame counters and error rates for a link
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames      uint64
	ValidFrames      uint64
	SentFrames       uint64
	ATResponses      uint64
	ModemStatuses    uint64
	TransmitStatuses uint64
	ReceivedPackets  uint64
	ChecksumErrors   uint64
	DecodeErrors     uint64
	Timeouts         uint64
	ATFailures       uint64
	DeliveryFailures uint64
	ModemAnomalies   uint64
	EmptyPayloads    uint64
	Duplicates       uint64
	MailboxDrops     uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update records one decoded frame, or one decode failure when decodeErr is set
func (s *Statistics) Update(f Frame, decodeErr error, validationErrors []ValidationError) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrChecksum) {
			s.ChecksumErrors++
		} else {
			s.DecodeErrors++
		}
		return
	}

	switch f.(type) {
	case *ATCommandResponse:
		s.ATResponses++
	case *ModemStatus:
		s.ModemStatuses++
	case *TransmitStatus:
		s.TransmitStatuses++
	case *ReceivePacket:
		s.ReceivedPackets++
	}

	if len(validationErrors) == 0 {
		s.ValidFrames++
		return
	}

	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyATError:
			s.ATFailures++
		case AnomalyDeliveryFailure:
			s.DeliveryFailures++
		case AnomalyEmptyPayload:
			s.EmptyPayloads++
		case AnomalyModemReset, AnomalyStackError, AnomalyDisassociated:
			s.ModemAnomalies++
		}
	}
}

// RecordSent counts a frame written to the radio
func (s *Statistics) RecordSent() {
	s.SentFrames++
}

// RecordTimeout counts a read that ended without a frame
func (s *Statistics) RecordTimeout() {
	s.Timeouts++
}

// RecordDuplicate counts a receive packet flagged as a retransmission
func (s *Statistics) RecordDuplicate() {
	s.Duplicates++
}

// RecordMailboxDrop counts a mailbox command that was discarded
func (s *Statistics) RecordMailboxDrop() {
	s.MailboxDrops++
}

// Errors returns the number of frames that failed to decode or carried an anomaly
func (s *Statistics) Errors() uint64 {
	return s.ChecksumErrors + s.DecodeErrors + s.ATFailures + s.DeliveryFailures + s.ModemAnomalies + s.EmptyPayloads
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)
	result += fmt.Sprintf("  AT Responses:     %5d\n", s.ATResponses)
	result += fmt.Sprintf("  Modem Status:     %5d\n", s.ModemStatuses)
	result += fmt.Sprintf("  Transmit Status:  %5d\n", s.TransmitStatuses)
	result += fmt.Sprintf("  Receive Packets:  %5d\n", s.ReceivedPackets)

	if s.SentFrames > 0 {
		result += fmt.Sprintf("Sent Frames:     %8d\n", s.SentFrames)
	}
	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d\n", s.ChecksumErrors)
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d\n", s.DecodeErrors)
	}
	if s.Timeouts > 0 {
		result += fmt.Sprintf("Read Timeouts:   %8d\n", s.Timeouts)
	}
	if s.ATFailures > 0 {
		result += fmt.Sprintf("AT Failures:     %8d\n", s.ATFailures)
	}
	if s.DeliveryFailures > 0 {
		result += fmt.Sprintf("Delivery Fails:  %8d\n", s.DeliveryFailures)
	}
	if s.ModemAnomalies > 0 {
		result += fmt.Sprintf("Modem Anomalies: %8d\n", s.ModemAnomalies)
	}
	if s.Duplicates > 0 {
		result += fmt.Sprintf("Duplicates:      %8d\n", s.Duplicates)
	}
	if s.MailboxDrops > 0 {
		result += fmt.Sprintf("Mailbox Drops:   %8d\n", s.MailboxDrops)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
