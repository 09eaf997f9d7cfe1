// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package xbee

// Checksum computes 0xFF minus the low byte of the sum of data. data is the
// region from the frame type through the last body byte.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return 0xFF - sum
}

// validChecksum reports whether the trailing byte of frame matches the
// checksum of the bytes before it.
func validChecksum(frame []byte) bool {
	var sum byte
	for _, b := range frame {
		sum += b
	}
	return sum == 0xFF
}
