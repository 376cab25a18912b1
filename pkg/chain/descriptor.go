package chain

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Descriptor is the host-facing chain description: ordered joints with axes,
// limits and mimic relations, plus an optional fixed effector frame attached
// to the wrist child link.
type Descriptor struct {
	Name     string
	Joints   []JointDescriptor
	Effector *EffectorDescriptor
}

// JointDescriptor describes one joint.
type JointDescriptor struct {
	Name   string
	Type   string // "revolute" or "prismatic"
	Parent string
	Child  string
	Origin OriginDescriptor
	Axis   [3]float64
	Limits LimitDescriptor
	Mimic  *MimicDescriptor
}

// OriginDescriptor is the fixed transform from the parent link to the joint
// frame: translation xyz in meters and roll/pitch/yaw in radians.
type OriginDescriptor struct {
	XYZ [3]float64
	RPY [3]float64
}

// LimitDescriptor bounds position (radians or meters by joint type) and
// velocity.
type LimitDescriptor struct {
	Lower    float64
	Upper    float64
	Velocity float64
}

// MimicDescriptor declares position = Factor*master + Offset.
type MimicDescriptor struct {
	Joint  string
	Factor float64
	Offset float64
}

// EffectorDescriptor is a fixed tip frame beyond the wrist child link.
type EffectorDescriptor struct {
	Link   string
	Parent string
	XYZ    [3]float64
}

// URDF-style XML wire format. Attribute vectors are space-delimited floats,
// matching the convention robot description files use.
type xmlRobot struct {
	XMLName xml.Name   `xml:"robot"`
	Name    string     `xml:"name,attr"`
	Joints  []xmlJoint `xml:"joint"`
}

type xmlJoint struct {
	Name   string     `xml:"name,attr"`
	Type   string     `xml:"type,attr"`
	Parent xmlLinkRef `xml:"parent"`
	Child  xmlLinkRef `xml:"child"`
	Origin *xmlOrigin `xml:"origin"`
	Axis   *xmlAxis   `xml:"axis"`
	Limit  *xmlLimit  `xml:"limit"`
	Mimic  *xmlMimic  `xml:"mimic"`
}

type xmlLinkRef struct {
	Link string `xml:"link,attr"`
}

type xmlOrigin struct {
	XYZ string `xml:"xyz,attr"`
	RPY string `xml:"rpy,attr"`
}

type xmlAxis struct {
	XYZ string `xml:"xyz,attr"`
}

type xmlLimit struct {
	Lower    float64 `xml:"lower,attr"`
	Upper    float64 `xml:"upper,attr"`
	Velocity float64 `xml:"velocity,attr"`
}

type xmlMimic struct {
	Joint  string  `xml:"joint,attr"`
	Factor float64 `xml:"multiplier,attr"`
	Offset float64 `xml:"offset,attr"`
}

// LoadDescriptor reads and parses a chain descriptor file.
func LoadDescriptor(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("chain: read descriptor: %w", err)
	}
	return ParseDescriptor(data)
}

// ParseDescriptor parses a URDF-style XML chain descriptor. Exactly one
// fixed joint is allowed; it becomes the effector tip frame.
func ParseDescriptor(data []byte) (Descriptor, error) {
	var robot xmlRobot
	if err := xml.Unmarshal(data, &robot); err != nil {
		return Descriptor{}, fmt.Errorf("chain: parse descriptor: %w", err)
	}

	d := Descriptor{Name: robot.Name}
	for _, xj := range robot.Joints {
		if xj.Type == "fixed" {
			if d.Effector != nil {
				return Descriptor{}, fmt.Errorf("%w: more than one fixed tip frame", ErrTopology)
			}
			eff := EffectorDescriptor{Link: xj.Child.Link, Parent: xj.Parent.Link}
			if xj.Origin != nil {
				xyz, err := parseVec(xj.Origin.XYZ, xj.Name)
				if err != nil {
					return Descriptor{}, err
				}
				eff.XYZ = xyz
			}
			d.Effector = &eff
			continue
		}

		jd := JointDescriptor{
			Name:   xj.Name,
			Type:   xj.Type,
			Parent: xj.Parent.Link,
			Child:  xj.Child.Link,
		}
		if xj.Origin != nil {
			xyz, err := parseVec(xj.Origin.XYZ, xj.Name)
			if err != nil {
				return Descriptor{}, err
			}
			rpy, err := parseVec(xj.Origin.RPY, xj.Name)
			if err != nil {
				return Descriptor{}, err
			}
			jd.Origin = OriginDescriptor{XYZ: xyz, RPY: rpy}
		}
		if xj.Axis != nil {
			axis, err := parseVec(xj.Axis.XYZ, xj.Name)
			if err != nil {
				return Descriptor{}, err
			}
			jd.Axis = axis
		}
		if xj.Limit != nil {
			jd.Limits = LimitDescriptor{
				Lower:    xj.Limit.Lower,
				Upper:    xj.Limit.Upper,
				Velocity: xj.Limit.Velocity,
			}
		}
		if xj.Mimic != nil {
			jd.Mimic = &MimicDescriptor{
				Joint:  xj.Mimic.Joint,
				Factor: xj.Mimic.Factor,
				Offset: xj.Mimic.Offset,
			}
		}
		d.Joints = append(d.Joints, jd)
	}
	return d, nil
}

// parseVec parses a space-delimited "x y z" attribute. An empty attribute
// is the zero vector.
func parseVec(s, joint string) ([3]float64, error) {
	var v [3]float64
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return v, nil
	}
	if len(fields) != 3 {
		return v, fmt.Errorf("chain: joint %q: expected 3 components in %q", joint, s)
	}
	for i, f := range fields {
		val, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return v, fmt.Errorf("chain: joint %q: bad component %q: %w", joint, f, err)
		}
		v[i] = val
	}
	return v, nil
}
