package hardware

// Controller moves one joint toward its commanded position. Implementations
// keep their own notion of the current position; the loop calls Update once
// per cycle with the elapsed time.
type Controller interface {
	// Joint returns the name of the chain joint this controller actuates.
	Joint() string
	// SetTarget commands a new goal position (radians or meters).
	SetTarget(pos float64)
	// Update advances toward the target by at most dt seconds of motion and
	// writes the resulting command to the board.
	Update(board Board, dt float64) error
	// Position returns the position the controller believes the joint is at.
	Position() float64
}
