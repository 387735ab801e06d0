// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bwa

import "github.com/sigurn/crc8"

// CRC-8 configuration: polynomial 0x07, no reflection, init and xor-out 0x02
var crcParams = crc8.Params{
	Poly:   0x07,
	Init:   0x02,
	RefIn:  false,
	RefOut: false,
	XorOut: 0x02,
	Check:  0x04,
	Name:   "CRC-8/BWA",
}

var crcTable = crc8.MakeTable(crcParams)

// Checksum computes the frame checksum over the given bytes
func Checksum(data []byte) byte {
	return crc8.Checksum(data, crcTable)
}
