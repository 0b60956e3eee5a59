// Package thorlabs provides wrappers around Thorlabs motion hardware.
// The K10CR2 cage rotator speaks the APT binary protocol over its FTDI
// virtual COM port; no vendor runtime is required.
package thorlabs

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/kmoncr/horibactl/comm"
	"github.com/kmoncr/horibactl/util"

	"github.com/tarm/serial"
)

// APT messages are a 6 byte little-endian header, optionally followed by a
// data packet.  Header layout: message id (u16), param1, param2 (or packet
// length as u16 when a data packet follows), destination, source.  The
// destination byte has its top bit set when a data packet follows.

const (
	aptHost    = 0x01 // host controller (us)
	aptGeneric = 0x50 // generic USB device
	aptLong    = 0x80 // or-ed into dest when a data packet follows

	msgMoveHome      = 0x0443
	msgMoveHomed     = 0x0444
	msgMoveAbsolute  = 0x0453
	msgMoveCompleted = 0x0464
	msgReqPosCounter = 0x0411
	msgGetPosCounter = 0x0412
	msgReqStatusBits = 0x0429
	msgGetStatusBits = 0x042A

	// status dword bits indicating the axis is in motion
	statusMovingCW  = 0x00000010
	statusMovingCCW = 0x00000020
	statusHoming    = 0x00000200

	// CountsPerDegree is the microstep scaling of the K10CR1/K10CR2
	// rotator (409600 microsteps per motor rev through a 120:1 worm drive)
	CountsPerDegree = 136533.33

	channel = 1
)

// ErrUnexpectedMessage is generated when the rotator answers a request with
// a message id the driver was not waiting for and could not discard
type ErrUnexpectedMessage struct {
	Want, Got uint16
}

// Error satisfies the error interface
func (e ErrUnexpectedMessage) Error() string {
	return fmt.Sprintf("k10cr2: expected message 0x%04X, got 0x%04X", e.Want, e.Got)
}

// message is one decoded APT message
type message struct {
	id     uint16
	param1 byte
	param2 byte
	data   []byte
}

// K10CR2 represents a K10CR2 integrated stepper rotation mount
type K10CR2 struct {
	// Addr is the serial port of the FTDI bridge, e.g. /dev/ttyUSB1
	Addr string

	conn io.ReadWriteCloser
}

// NewK10CR2 returns a new K10CR2 for the serial port at addr
func NewK10CR2(addr string) *K10CR2 {
	return &K10CR2{Addr: addr}
}

// SerialConf satisfies comm.SerialConfigurator; APT bridges run 115200 8N1
func (k *K10CR2) SerialConf() *serial.Config {
	return &serial.Config{
		Name: k.Addr,
		Baud: 115200}
}

// Connect opens the serial port
func (k *K10CR2) Connect() error {
	conn, err := comm.OpenSerial(k.SerialConf())
	if err != nil {
		return err
	}
	k.conn = conn
	return nil
}

// Disconnect closes the serial port
func (k *K10CR2) Disconnect() error {
	if k.conn == nil {
		return nil
	}
	err := k.conn.Close()
	k.conn = nil
	return err
}

// Connected reports whether the serial port is open
func (k *K10CR2) Connected() bool {
	return k.conn != nil
}

// sendHeader writes a header-only message
func (k *K10CR2) sendHeader(id uint16, param1, param2 byte) error {
	if k.conn == nil {
		return comm.ErrNotConnected
	}
	buf := make([]byte, 6)
	binary.LittleEndian.PutUint16(buf[0:2], id)
	buf[2] = param1
	buf[3] = param2
	buf[4] = aptGeneric
	buf[5] = aptHost
	_, err := k.conn.Write(buf)
	return err
}

// sendData writes a message with a trailing data packet
func (k *K10CR2) sendData(id uint16, data []byte) error {
	if k.conn == nil {
		return comm.ErrNotConnected
	}
	buf := make([]byte, 6, 6+len(data))
	binary.LittleEndian.PutUint16(buf[0:2], id)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(data)))
	buf[4] = aptGeneric | aptLong
	buf[5] = aptHost
	buf = append(buf, data...)
	_, err := k.conn.Write(buf)
	return err
}

// readMessage decodes one message off the wire
func (k *K10CR2) readMessage() (message, error) {
	var m message
	if k.conn == nil {
		return m, comm.ErrNotConnected
	}
	hdr := make([]byte, 6)
	if _, err := io.ReadFull(k.conn, hdr); err != nil {
		return m, err
	}
	m.id = binary.LittleEndian.Uint16(hdr[0:2])
	m.param1 = hdr[2]
	m.param2 = hdr[3]
	if hdr[4]&aptLong != 0 {
		length := binary.LittleEndian.Uint16(hdr[2:4])
		m.data = make([]byte, length)
		if _, err := io.ReadFull(k.conn, m.data); err != nil {
			return m, err
		}
	}
	return m, nil
}

// waitFor reads messages until one with the wanted id arrives.  The mount
// emits unsolicited completion notices (MOVE_COMPLETED, MOVED_HOME) which
// are discarded here; anything else after a few reads is a protocol fault.
func (k *K10CR2) waitFor(id uint16) (message, error) {
	for tries := 0; tries < 8; tries++ {
		m, err := k.readMessage()
		if err != nil {
			return m, err
		}
		if m.id == id {
			return m, nil
		}
		if m.id == msgMoveCompleted || m.id == msgMoveHomed {
			continue
		}
		return m, ErrUnexpectedMessage{Want: id, Got: m.id}
	}
	return message{}, ErrUnexpectedMessage{Want: id}
}

// Counts returns the raw position counter
func (k *K10CR2) Counts() (int32, error) {
	err := k.sendHeader(msgReqPosCounter, channel, 0)
	if err != nil {
		return 0, err
	}
	m, err := k.waitFor(msgGetPosCounter)
	if err != nil {
		return 0, err
	}
	if len(m.data) < 6 {
		return 0, fmt.Errorf("k10cr2: short POSCOUNTER packet, %d bytes", len(m.data))
	}
	return int32(binary.LittleEndian.Uint32(m.data[2:6])), nil
}

// Position returns the mount angle in degrees, in [0, 360)
func (k *K10CR2) Position() (float64, error) {
	counts, err := k.Counts()
	if err != nil {
		return 0, err
	}
	return util.ModDegrees(float64(counts) / CountsPerDegree), nil
}

// MoveAbs starts an absolute move to the given angle in degrees; the caller
// polls Busy for completion.  The target is normalized into [0, 360).
func (k *K10CR2) MoveAbs(deg float64) error {
	deg = util.ModDegrees(deg)
	counts := int32(math.Round(deg * CountsPerDegree))
	data := make([]byte, 6)
	binary.LittleEndian.PutUint16(data[0:2], channel)
	binary.LittleEndian.PutUint32(data[2:6], uint32(counts))
	return k.sendData(msgMoveAbsolute, data)
}

// Home starts a homing run; the caller polls Busy
func (k *K10CR2) Home() error {
	return k.sendHeader(msgMoveHome, channel, 0)
}

// Busy reports whether the mount is moving or homing
func (k *K10CR2) Busy() (bool, error) {
	err := k.sendHeader(msgReqStatusBits, channel, 0)
	if err != nil {
		return false, err
	}
	m, err := k.waitFor(msgGetStatusBits)
	if err != nil {
		return false, err
	}
	if len(m.data) < 6 {
		return false, fmt.Errorf("k10cr2: short STATUSBITS packet, %d bytes", len(m.data))
	}
	status := binary.LittleEndian.Uint32(m.data[2:6])
	return status&(statusMovingCW|statusMovingCCW|statusHoming) != 0, nil
}
