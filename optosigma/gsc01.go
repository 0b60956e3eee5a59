// Package optosigma provides a wrapper around OptoSigma GSC-01 stage
// controllers speaking their ASCII protocol over RS232.
package optosigma

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kmoncr/horibactl/comm"
	"github.com/kmoncr/horibactl/util"

	"github.com/tarm/serial"
)

// the GSC-01 ASCII language is a one-letter command, a colon, and arguments.
// Set commands answer "OK" or "NG"; queries answer their payload.  Moves are
// two-phase: "A:" stages the target, "G:" executes it.  The controller
// signals completion through the "!:" status query, which answers "R"
// (ready) or "B" (busy).

const (
	// DegPerPulse is the resolution of the OSMS-60YAW rotation stage this
	// controller drives, in degrees per microstep pulse
	DegPerPulse = 0.0025

	// FullCircleDeg is one revolution
	FullCircleDeg = 360.0
)

// ErrNG is generated when the controller rejects a command
type ErrNG struct {
	// Cmd is the rejected command
	Cmd string
}

// Error satisfies the error interface
func (e ErrNG) Error() string {
	return fmt.Sprintf("gsc01: controller answered NG to %q", e.Cmd)
}

// GSC01 represents a GSC-01 stage controller
type GSC01 struct {
	comm.RemoteDevice
}

// NewGSC01 returns a new GSC01 for the serial port at addr,
// e.g. /dev/ttyUSB0 or COM3
func NewGSC01(addr string) *GSC01 {
	return &GSC01{RemoteDevice: comm.NewRemoteDevice(addr, true)}
}

// SerialConf satisfies comm.SerialConfigurator; the GSC-01 is fixed at
// 9600 8N1 with hardware flow control
func (g *GSC01) SerialConf() *serial.Config {
	return &serial.Config{
		Name: g.Addr,
		Baud: 9600}
}

// Connect opens the serial port
func (g *GSC01) Connect() error {
	conn, err := comm.OpenSerial(g.SerialConf())
	if err != nil {
		return err
	}
	g.Conn = conn
	return nil
}

// Disconnect closes the serial port
func (g *GSC01) Disconnect() error {
	return g.Close()
}

// Connected reports whether the serial port is open
func (g *GSC01) Connected() bool {
	return g.Conn != nil
}

// writeRead sends one command with CRLF termination and returns the
// CRLF-stripped response line
func (g *GSC01) writeRead(cmd string) (string, error) {
	if g.Conn == nil {
		return "", comm.ErrNotConnected
	}
	_, err := g.Conn.Write([]byte(cmd + "\r\n"))
	if err != nil {
		return "", err
	}
	line, err := bufio.NewReader(g.Conn).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// writeOK sends a command and checks for the OK acknowledgement
func (g *GSC01) writeOK(cmd string) error {
	resp, err := g.writeRead(cmd)
	if err != nil {
		return err
	}
	if resp != "OK" {
		return ErrNG{Cmd: cmd}
	}
	return nil
}

// Pulses returns the raw pulse count of the axis
func (g *GSC01) Pulses() (int, error) {
	resp, err := g.writeRead("Q:")
	if err != nil {
		return 0, err
	}
	// response is "<pos>,ACK1,ACK2,ACK3" with the position space-padded
	fields := strings.Split(resp, ",")
	pos := strings.ReplaceAll(fields[0], " ", "")
	return strconv.Atoi(pos)
}

// Position returns the stage angle in degrees, in [0, 360)
func (g *GSC01) Position() (float64, error) {
	pulses, err := g.Pulses()
	if err != nil {
		return 0, err
	}
	revolution := int(FullCircleDeg / DegPerPulse)
	pulses = ((pulses % revolution) + revolution) % revolution
	return float64(pulses) * DegPerPulse, nil
}

// MoveAbs starts an absolute move to the given angle in degrees; the caller
// polls Busy for completion.  The target is normalized into [0, 360).
func (g *GSC01) MoveAbs(deg float64) error {
	deg = util.ModDegrees(deg)
	pulses := int(math.Round(deg / DegPerPulse))
	err := g.writeOK(fmt.Sprintf("A:W+P%d", pulses))
	if err != nil {
		return err
	}
	return g.writeOK("G:")
}

// Home starts a mechanical origin return; the caller polls Busy
func (g *GSC01) Home() error {
	return g.writeOK("H:W")
}

// Stop decelerates and halts the axis
func (g *GSC01) Stop() error {
	return g.writeOK("L:W")
}

// Busy reports whether the axis is still moving
func (g *GSC01) Busy() (bool, error) {
	resp, err := g.writeRead("!:")
	if err != nil {
		return false, err
	}
	return resp == "B", nil
}
