// Package hardware drives the arm's actuator board: servo and solenoid
// outputs, encoder feedback, and the fixed-rate control loop that moves
// joints toward their commanded positions within velocity limits.
package hardware

import (
	"bufio"
	"fmt"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// Board is the actuator board the control loop talks to. Channel numbers are
// board-local; controllers carry their own channel assignment.
type Board interface {
	// WriteServo commands a servo channel to a pulse width in microseconds.
	WriteServo(channel, pulseUS int) error
	// WriteSolenoid switches a digital output on or off.
	WriteSolenoid(channel int, on bool) error
	// ReadEncoder returns the current tick count of an encoder channel.
	ReadEncoder(channel int) (int, error)
	Close() error
}

// SerialBoard speaks the board's line protocol over a serial port:
//
//	S <channel> <pulse_us>\n   servo command
//	D <channel> <0|1>\n        digital (solenoid) command
//	E <channel>\n              encoder query, answered "E <channel> <ticks>\n"
type SerialBoard struct {
	mu     sync.Mutex
	port   serial.Port
	reader *bufio.Reader
}

// OpenSerialBoard opens the board's serial port at the given baud rate.
func OpenSerialBoard(path string, baud int) (*SerialBoard, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("hardware: open board %s: %w", path, err)
	}
	return &SerialBoard{port: port, reader: bufio.NewReader(port)}, nil
}

func (b *SerialBoard) WriteServo(channel, pulseUS int) error {
	return b.send(fmt.Sprintf("S %d %d\n", channel, pulseUS))
}

func (b *SerialBoard) WriteSolenoid(channel int, on bool) error {
	v := 0
	if on {
		v = 1
	}
	return b.send(fmt.Sprintf("D %d %d\n", channel, v))
}

func (b *SerialBoard) ReadEncoder(channel int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.port.Write([]byte(fmt.Sprintf("E %d\n", channel))); err != nil {
		return 0, fmt.Errorf("hardware: encoder query: %w", err)
	}
	line, err := b.reader.ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("hardware: encoder read: %w", err)
	}

	var ch, ticks int
	if _, err := fmt.Sscanf(strings.TrimSpace(line), "E %d %d", &ch, &ticks); err != nil {
		return 0, fmt.Errorf("hardware: bad encoder reply %q: %w", line, err)
	}
	if ch != channel {
		return 0, fmt.Errorf("hardware: encoder reply for channel %d, queried %d", ch, channel)
	}
	return ticks, nil
}

func (b *SerialBoard) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.port.Close()
}

func (b *SerialBoard) send(cmd string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.port.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("hardware: write %q: %w", strings.TrimSpace(cmd), err)
	}
	return nil
}
