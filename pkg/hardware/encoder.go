package hardware

// Encoder converts tick counts from a board channel into joint positions:
// position = Scale*ticks + Offset.
type Encoder struct {
	joint   string
	channel int
	scale   float64
	offset  float64
}

func NewEncoder(joint string, channel int, scale, offset float64) *Encoder {
	if scale == 0 {
		scale = 1
	}
	return &Encoder{joint: joint, channel: channel, scale: scale, offset: offset}
}

func (e *Encoder) Joint() string {
	return e.joint
}

// Read queries the board and returns the measured joint position.
func (e *Encoder) Read(board Board) (float64, error) {
	ticks, err := board.ReadEncoder(e.channel)
	if err != nil {
		return 0, err
	}
	return e.scale*float64(ticks) + e.offset, nil
}
