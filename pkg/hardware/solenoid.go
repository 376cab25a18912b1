package hardware

import (
	"github.com/strikelab/go-armctl/pkg/chain"
)

// Solenoid drives a two-state joint (a gripper latch). Targets in the upper
// half of the position range energize the coil; the held position snaps to
// the matching limit once the command is on the wire. A positive dwell makes
// the trigger momentary: the coil releases after dwell seconds.
type Solenoid struct {
	joint   string
	channel int
	limits  chain.Limits
	dwell   float64 // seconds energized; 0 holds until commanded off

	position float64
	target   float64
	on       bool
	elapsed  float64
}

func NewSolenoid(joint string, channel int, limits chain.Limits, dwell float64) *Solenoid {
	return &Solenoid{
		joint:    joint,
		channel:  channel,
		limits:   limits,
		dwell:    dwell,
		position: limits.Min,
		target:   limits.Min,
	}
}

func (s *Solenoid) Joint() string {
	return s.joint
}

func (s *Solenoid) SetTarget(pos float64) {
	s.target = pos
}

func (s *Solenoid) Position() float64 {
	return s.position
}

func (s *Solenoid) Update(board Board, dt float64) error {
	want := s.target >= (s.limits.Min+s.limits.Max)/2
	if s.on {
		s.elapsed += dt
		if s.dwell > 0 && s.elapsed >= s.dwell {
			want = false
			s.target = s.limits.Min
		}
	}
	if want != s.on {
		if err := board.WriteSolenoid(s.channel, want); err != nil {
			return err
		}
		s.on = want
		s.elapsed = 0
	}
	if s.on {
		s.position = s.limits.Max
	} else {
		s.position = s.limits.Min
	}
	return nil
}
