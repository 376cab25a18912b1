package hardware

import (
	"fmt"
	"math"

	"github.com/strikelab/go-armctl/pkg/chain"
	"github.com/strikelab/go-armctl/pkg/kinmath"
)

// Servo drives a position-controlled joint. Each Update step moves the held
// position toward the target by at most velocity*dt, then maps the position
// linearly onto the servo's pulse range.
//
// Controllers are not safe for concurrent use; the Loop serializes access.
type Servo struct {
	joint   string
	channel int
	limits  chain.Limits

	minPulseUS int
	maxPulseUS int

	position float64
	target   float64
}

// NewServo builds a servo controller for the named joint. The limits come
// from the chain so commanded positions can never leave them.
func NewServo(joint string, channel int, limits chain.Limits, minPulseUS, maxPulseUS int) (*Servo, error) {
	if maxPulseUS <= minPulseUS {
		return nil, fmt.Errorf("hardware: servo %s: pulse range [%d, %d] inverted",
			joint, minPulseUS, maxPulseUS)
	}
	if limits.Max <= limits.Min {
		return nil, fmt.Errorf("hardware: servo %s: position range [%g, %g] inverted",
			joint, limits.Min, limits.Max)
	}
	s := &Servo{
		joint:      joint,
		channel:    channel,
		limits:     limits,
		minPulseUS: minPulseUS,
		maxPulseUS: maxPulseUS,
	}
	s.position = kinmath.Clamp(0, limits.Min, limits.Max)
	s.target = s.position
	return s, nil
}

func (s *Servo) Joint() string {
	return s.joint
}

func (s *Servo) SetTarget(pos float64) {
	if math.IsNaN(pos) {
		return
	}
	s.target = kinmath.Clamp(pos, s.limits.Min, s.limits.Max)
}

func (s *Servo) Position() float64 {
	return s.position
}

func (s *Servo) Update(board Board, dt float64) error {
	step := s.limits.Velocity * dt
	delta := s.target - s.position
	if step > 0 && math.Abs(delta) > step {
		delta = math.Copysign(step, delta)
	}
	s.position += delta
	return board.WriteServo(s.channel, s.pulse(s.position))
}

// pulse maps a position inside the limits onto the pulse range.
func (s *Servo) pulse(pos float64) int {
	span := s.limits.Max - s.limits.Min
	frac := (pos - s.limits.Min) / span
	us := float64(s.minPulseUS) + frac*float64(s.maxPulseUS-s.minPulseUS)
	return int(math.Round(us))
}
