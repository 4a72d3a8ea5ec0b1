package nkt

import (
	"bytes"
	"testing"
)

func TestCRC16KnownValue(t *testing.T) {
	// CRC-16/CCITT with zero init over "123456789" is the XMODEM check value
	if got := crc16([]byte("123456789")); got != 0x31C3 {
		t.Errorf("crc16 = %04X, want 31C3", got)
	}
	if got := crc16(nil); got != 0 {
		t.Errorf("crc16(nil) = %04X, want 0", got)
	}
}

func TestTelegramEncodeFraming(t *testing.T) {
	frame := telegram{Dest: LaserAddr, Source: hostAddr, Type: msgRead, Register: 0x32}.encode()

	if frame[0] != sotByte {
		t.Errorf("frame starts with %02X, want %02X", frame[0], sotByte)
	}
	if frame[len(frame)-1] != eotByte {
		t.Errorf("frame ends with %02X, want %02X", frame[len(frame)-1], eotByte)
	}
	// 0x0F A2 04 32 are all plain bytes so only the CRC may grow the frame
	if len(frame) < 8 {
		t.Errorf("frame too short: % X", frame)
	}
}

func TestTelegramEscaping(t *testing.T) {
	// payload bytes that collide with framing must be escaped
	frame := telegram{
		Dest:     LaserAddr,
		Source:   hostAddr,
		Type:     msgWrite,
		Register: 0x6C,
		Payload:  []byte{sotByte, eotByte, escByte},
	}.encode()

	inner := frame[1 : len(frame)-1]
	if bytes.IndexByte(inner, eotByte) != -1 {
		t.Errorf("unescaped end byte inside frame: % X", frame)
	}
	if bytes.IndexByte(inner, sotByte) != -1 {
		t.Errorf("unescaped start byte inside frame: % X", frame)
	}
}

func TestTelegramRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   telegram
	}{
		{"read request", telegram{Dest: LaserAddr, Source: hostAddr, Type: msgRead, Register: 0x31}},
		{"write with data", telegram{Dest: LaserAddr, Source: hostAddr, Type: msgWrite, Register: 0x37, Payload: []byte{0xE8, 0x03}}},
		{"payload needing escapes", telegram{Dest: PanelAddr, Source: hostAddr, Type: msgWrite, Register: 0x72, Payload: []byte{0x0A, 0x0D, 0x5E, 0x41}}},
		{"datagram reply", telegram{Dest: hostAddr, Source: LaserAddr, Type: msgDatagram, Register: 0x32, Payload: []byte{0x02, 0x00}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeTelegram(tt.in.encode())
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if got.Dest != tt.in.Dest || got.Source != tt.in.Source ||
				got.Type != tt.in.Type || got.Register != tt.in.Register {
				t.Errorf("header mismatch: got %+v, want %+v", got, tt.in)
			}
			if !bytes.Equal(got.Payload, tt.in.Payload) {
				t.Errorf("payload = % X, want % X", got.Payload, tt.in.Payload)
			}
		})
	}
}

func TestDecodeTelegramErrors(t *testing.T) {
	valid := telegram{Dest: LaserAddr, Source: hostAddr, Type: msgRead, Register: 0x31}.encode()

	corrupted := append([]byte(nil), valid...)
	corrupted[2] ^= 0xFF // flip a content byte so the CRC no longer matches

	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty", nil},
		{"missing start", valid[1:]},
		{"missing end", valid[:len(valid)-1]},
		{"too short", []byte{sotByte, 0x01, eotByte}},
		{"checksum mismatch", corrupted},
		{"dangling escape", []byte{sotByte, 0x0F, 0xA2, 0x04, 0x31, 0x00, escByte, eotByte}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := decodeTelegram(tt.frame); err == nil {
				t.Errorf("decodeTelegram(% X) expected error", tt.frame)
			}
		})
	}
}
