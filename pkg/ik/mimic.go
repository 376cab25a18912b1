package ik

import "github.com/strikelab/go-armctl/pkg/chain"

// Propagate writes the position of every joint directly mimicking the master
// joint into states: slave = clamp(factor*master + offset, slave limits).
// Propagation is one level deep; chains of mimics are rejected when the
// chain is built, so direct targets are all there is.
func Propagate(c *chain.Chain, master int, masterState float64, states []float64) {
	for _, slave := range c.MimicTargets(master) {
		j := c.Joint(slave)
		states[slave] = j.ClampPosition(j.Mimic.Factor*masterState + j.Mimic.Offset)
	}
}
