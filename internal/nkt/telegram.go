// Package nkt implements the register-level Interbus protocol spoken by NKT
// Photonics laser modules, together with the register tables for the two
// hardware revisions of the SuperK Fianium main module.
//
// A telegram is framed by a start byte (0x0D) and an end byte (0x0A). The
// content between them is [destination, source, type, register, payload...]
// followed by a big-endian CRC-16/CCITT of the unescaped content. Any content
// byte that collides with the framing bytes or the escape byte (0x5E) is
// escaped as 0x5E followed by the byte plus 0x40.
package nkt

import (
	"fmt"
)

const (
	sotByte   = 0x0D // start of telegram
	eotByte   = 0x0A // end of telegram
	escByte   = 0x5E
	escOffset = 0x40
)

// Interbus message types.
const (
	msgRead     = 0x04
	msgWrite    = 0x05
	msgDatagram = 0x08 // reply carrying register data
	msgNack     = 0x20
	msgCRCError = 0x21
	msgBusy     = 0x22
	msgAck      = 0x23
)

// telegram is one decoded Interbus message.
type telegram struct {
	Dest     byte
	Source   byte
	Type     byte
	Register byte
	Payload  []byte
}

// crc16 computes CRC-16/CCITT (polynomial 0x1021, initial value 0) over data,
// MSB first. This matches the checksum the modules compute over the unescaped
// telegram content.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// needsEscape reports whether b collides with a framing or escape byte.
func needsEscape(b byte) bool {
	return b == sotByte || b == eotByte || b == escByte
}

// appendEscaped appends b to dst, escaping it if required.
func appendEscaped(dst []byte, b byte) []byte {
	if needsEscape(b) {
		return append(dst, escByte, b+escOffset)
	}
	return append(dst, b)
}

// encode serialises the telegram into a framed, escaped byte sequence ready
// to be written to the transport.
func (t telegram) encode() []byte {
	content := make([]byte, 0, 4+len(t.Payload))
	content = append(content, t.Dest, t.Source, t.Type, t.Register)
	content = append(content, t.Payload...)
	crc := crc16(content)

	frame := make([]byte, 0, len(content)+8)
	frame = append(frame, sotByte)
	for _, b := range content {
		frame = appendEscaped(frame, b)
	}
	frame = appendEscaped(frame, byte(crc>>8))
	frame = appendEscaped(frame, byte(crc))
	frame = append(frame, eotByte)
	return frame
}

// decodeTelegram parses a framed byte sequence (including the start and end
// bytes) into a telegram, unescaping the content and verifying the checksum.
func decodeTelegram(frame []byte) (telegram, error) {
	if len(frame) < 2 || frame[0] != sotByte || frame[len(frame)-1] != eotByte {
		return telegram{}, fmt.Errorf("malformed telegram frame: % X", frame)
	}

	var content []byte
	escaped := false
	for _, b := range frame[1 : len(frame)-1] {
		if escaped {
			content = append(content, b-escOffset)
			escaped = false
			continue
		}
		if b == escByte {
			escaped = true
			continue
		}
		content = append(content, b)
	}
	if escaped {
		return telegram{}, fmt.Errorf("truncated escape sequence in telegram: % X", frame)
	}

	// destination, source, type, register plus two CRC bytes
	if len(content) < 6 {
		return telegram{}, fmt.Errorf("telegram too short: % X", frame)
	}

	body := content[:len(content)-2]
	want := uint16(content[len(content)-2])<<8 | uint16(content[len(content)-1])
	if got := crc16(body); got != want {
		return telegram{}, fmt.Errorf("telegram checksum mismatch: got %04X, want %04X", got, want)
	}

	return telegram{
		Dest:     body[0],
		Source:   body[1],
		Type:     body[2],
		Register: body[3],
		Payload:  body[4:],
	}, nil
}
