package nkt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MSLNZ/pr-superk-mono/internal/serialport"
)

// queueReply appends an encoded device reply to the port's read buffer.
func queueReply(port *serialport.TestablePort, reply telegram) {
	port.QueueRead(reply.encode())
}

func TestConnReadU16(t *testing.T) {
	port := serialport.NewTestablePort()
	conn := NewConn(port)

	queueReply(port, telegram{
		Dest: hostAddr, Source: LaserAddr, Type: msgDatagram,
		Register: 0x32, Payload: []byte{0x02, 0x00},
	})

	v, err := conn.ReadU16(LaserAddr, 0x32)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), v)

	// the request on the wire is a read telegram for the same register
	req, err := decodeTelegram(port.Written())
	require.NoError(t, err)
	assert.Equal(t, LaserAddr, req.Dest)
	assert.Equal(t, byte(msgRead), req.Type)
	assert.Equal(t, byte(0x32), req.Register)
	assert.Empty(t, req.Payload)
}

func TestConnReadS16Negative(t *testing.T) {
	port := serialport.NewTestablePort()
	conn := NewConn(port)

	// -15 little-endian
	queueReply(port, telegram{
		Dest: hostAddr, Source: LaserAddr, Type: msgDatagram,
		Register: 0x11, Payload: []byte{0xF1, 0xFF},
	})

	v, err := conn.ReadS16(LaserAddr, 0x11)
	require.NoError(t, err)
	assert.Equal(t, int16(-15), v)
}

func TestConnReadStringTrimsNULs(t *testing.T) {
	port := serialport.NewTestablePort()
	conn := NewConn(port)

	queueReply(port, telegram{
		Dest: hostAddr, Source: LaserAddr, Type: msgDatagram,
		Register: 0x65, Payload: []byte("F1234\x00\x00"),
	})

	s, err := conn.ReadString(LaserAddr, 0x65)
	require.NoError(t, err)
	assert.Equal(t, "F1234", s)
}

func TestConnWriteU16EncodesLittleEndian(t *testing.T) {
	port := serialport.NewTestablePort()
	conn := NewConn(port)

	queueReply(port, telegram{Dest: hostAddr, Source: LaserAddr, Type: msgAck, Register: 0x37})

	require.NoError(t, conn.WriteU16(LaserAddr, 0x37, 1000))

	req, err := decodeTelegram(port.Written())
	require.NoError(t, err)
	assert.Equal(t, byte(msgWrite), req.Type)
	assert.Equal(t, []byte{0xE8, 0x03}, req.Payload)
}

func TestConnWriteReadU16(t *testing.T) {
	port := serialport.NewTestablePort()
	conn := NewConn(port)

	queueReply(port, telegram{Dest: hostAddr, Source: LaserAddr, Type: msgAck, Register: 0x31})
	queueReply(port, telegram{
		Dest: hostAddr, Source: LaserAddr, Type: msgDatagram,
		Register: 0x31, Payload: []byte{0x04, 0x00},
	})

	v, err := conn.WriteReadU16(LaserAddr, 0x31, 4)
	require.NoError(t, err)
	assert.Equal(t, uint16(4), v)
}

func TestConnDeviceFaultReplies(t *testing.T) {
	tests := []struct {
		name    string
		msgType byte
	}{
		{"nack", msgNack},
		{"checksum error", msgCRCError},
		{"busy", msgBusy},
		{"unexpected type", 0x42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := serialport.NewTestablePort()
			conn := NewConn(port)
			queueReply(port, telegram{Dest: hostAddr, Source: LaserAddr, Type: tt.msgType, Register: 0x30})

			err := conn.WriteU8(LaserAddr, 0x30, 3)
			require.Error(t, err)
			// a protocol-level fault is not a transport failure
			assert.Equal(t, PortReady, conn.PortStatus())
		})
	}
}

func TestConnWrongSourceModule(t *testing.T) {
	port := serialport.NewTestablePort()
	conn := NewConn(port)

	queueReply(port, telegram{
		Dest: hostAddr, Source: 0x10, Type: msgDatagram,
		Register: 0x32, Payload: []byte{0x02, 0x00},
	})

	_, err := conn.ReadU16(LaserAddr, 0x32)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0x10")
}

func TestConnTransportErrorMarksPort(t *testing.T) {
	port := serialport.NewTestablePort()
	conn := NewConn(port)
	require.Equal(t, PortReady, conn.PortStatus())

	port.WriteError = errors.New("device unplugged")

	_, err := conn.ReadU16(LaserAddr, 0x32)
	require.Error(t, err)
	assert.Equal(t, PortError, conn.PortStatus())
}

func TestConnSkipsLeadingNoise(t *testing.T) {
	port := serialport.NewTestablePort()
	conn := NewConn(port)

	port.QueueRead([]byte{0x00, 0xFF}) // line noise before the reply
	queueReply(port, telegram{
		Dest: hostAddr, Source: LaserAddr, Type: msgDatagram,
		Register: 0x32, Payload: []byte{0x02, 0x00},
	})

	v, err := conn.ReadU16(LaserAddr, 0x32)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), v)
}
