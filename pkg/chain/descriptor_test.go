package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testXML = `
<robot name="testarm">
  <joint name="mount" type="revolute">
    <parent link="base"/>
    <child link="column"/>
    <origin xyz="0 0 0.10" rpy="0 0 0"/>
    <axis xyz="0 0 1"/>
    <limit lower="-3.0" upper="3.0" velocity="1.0"/>
  </joint>
  <joint name="shoulder" type="revolute">
    <parent link="column"/>
    <child link="upper_arm"/>
    <origin xyz="0 0 0.05"/>
    <axis xyz="0 -1 0"/>
    <limit lower="-1.2" upper="1.8" velocity="1.0"/>
  </joint>
  <joint name="elbow" type="revolute">
    <parent link="upper_arm"/>
    <child link="forearm"/>
    <origin xyz="0.30 0 0"/>
    <axis xyz="0 -1 0"/>
    <limit lower="-2.5" upper="0.5" velocity="1.5"/>
  </joint>
  <joint name="wrist" type="revolute">
    <parent link="forearm"/>
    <child link="hand"/>
    <origin xyz="0.25 0 0"/>
    <axis xyz="0 -1 0"/>
    <limit lower="-1.0" upper="1.0" velocity="2.0"/>
    <mimic joint="elbow" multiplier="0.5" offset="0.1"/>
  </joint>
  <joint name="effector" type="fixed">
    <parent link="hand"/>
    <child link="tip"/>
    <origin xyz="0.05 0 0"/>
  </joint>
</robot>`

func TestParseDescriptor(t *testing.T) {
	d, err := ParseDescriptor([]byte(testXML))
	require.NoError(t, err)

	assert.Equal(t, "testarm", d.Name)
	require.Len(t, d.Joints, 4)

	mount := d.Joints[0]
	assert.Equal(t, "mount", mount.Name)
	assert.Equal(t, "revolute", mount.Type)
	assert.Equal(t, "base", mount.Parent)
	assert.Equal(t, "column", mount.Child)
	assert.Equal(t, [3]float64{0, 0, 0.10}, mount.Origin.XYZ)
	assert.Equal(t, [3]float64{0, 0, 1}, mount.Axis)
	assert.Equal(t, -3.0, mount.Limits.Lower)
	assert.Equal(t, 3.0, mount.Limits.Upper)

	wrist := d.Joints[3]
	require.NotNil(t, wrist.Mimic)
	assert.Equal(t, "elbow", wrist.Mimic.Joint)
	assert.Equal(t, 0.5, wrist.Mimic.Factor)
	assert.Equal(t, 0.1, wrist.Mimic.Offset)

	require.NotNil(t, d.Effector)
	assert.Equal(t, "tip", d.Effector.Link)
	assert.Equal(t, "hand", d.Effector.Parent)
	assert.Equal(t, [3]float64{0.05, 0, 0}, d.Effector.XYZ)
}

func TestParseDescriptor_BuildsValidChain(t *testing.T) {
	d, err := ParseDescriptor([]byte(testXML))
	require.NoError(t, err)

	c, err := New(d)
	require.NoError(t, err)
	assert.Equal(t, "tip", c.TipLink())

	off, ok := c.TipOffset()
	require.True(t, ok)
	assert.Equal(t, 0.05, off.X)
}

func TestParseDescriptor_Errors(t *testing.T) {
	t.Run("malformed xml", func(t *testing.T) {
		_, err := ParseDescriptor([]byte("<robot><joint></robot>"))
		assert.Error(t, err)
	})

	t.Run("bad vector attribute", func(t *testing.T) {
		_, err := ParseDescriptor([]byte(
			`<robot><joint name="j" type="revolute"><axis xyz="1 0"/></joint></robot>`))
		assert.Error(t, err)
	})

	t.Run("non-numeric component", func(t *testing.T) {
		_, err := ParseDescriptor([]byte(
			`<robot><joint name="j" type="revolute"><axis xyz="a b c"/></joint></robot>`))
		assert.Error(t, err)
	})

	t.Run("two fixed frames", func(t *testing.T) {
		_, err := ParseDescriptor([]byte(`<robot>
			<joint name="e1" type="fixed"><parent link="a"/><child link="b"/></joint>
			<joint name="e2" type="fixed"><parent link="b"/><child link="c"/></joint>
		</robot>`))
		assert.ErrorIs(t, err, ErrTopology)
	})
}
