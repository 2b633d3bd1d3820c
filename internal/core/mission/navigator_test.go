package mission

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/missionsim/internal/core/systems/physics"
)

func TestNavigatorRecordsMoves(t *testing.T) {
	a := newAgent(RoleScout, physics.Vec2{})
	a.target = physics.Vec2{X: 50}
	nav := Navigator{Speed: 20, Arrival: 3}

	var arrivedAt int
	for i := 1; i <= 10; i++ {
		if nav.Advance(a).Arrived {
			arrivedAt = i
			break
		}
	}

	// 20, 40, then clamped to 50; arrival is seen on the following tick
	assert.Equal(t, 4, arrivedAt)
	assert.Equal(t, physics.Vec2{X: 50}, a.Position())
	assert.Equal(t, []physics.Vec2{{X: 20}, {X: 40}, {X: 50}}, a.Path().Points())
}

func TestNavigatorArrivedDoesNotMove(t *testing.T) {
	a := newAgent(RoleRelay, physics.Vec2{X: 10, Y: 10})
	a.target = physics.Vec2{X: 12, Y: 10}
	res := Navigator{Speed: 20, Arrival: 3}.Advance(a)

	assert.True(t, res.Arrived)
	assert.Equal(t, physics.Vec2{X: 10, Y: 10}, a.Position())
	assert.Zero(t, a.Path().Len())
}

func TestDetectorBoundary(t *testing.T) {
	d := Detector{Zone: Zone{Center: physics.Vec2{}, Radius: 10}, Margin: 5}
	assert.Equal(t, 15.0, d.Range())
	assert.True(t, d.Intrudes(physics.Vec2{X: 15}))
	assert.True(t, d.Intrudes(physics.Vec2{X: 3, Y: 4}))
	assert.False(t, d.Intrudes(physics.Vec2{X: 15.0001}))
}

func TestPathLifecycle(t *testing.T) {
	p := NewPath()
	assert.Zero(t, p.Length())
	p.Append(physics.Vec2{X: 0, Y: 0})
	assert.Zero(t, p.Length())
	p.Append(physics.Vec2{X: 3, Y: 4})
	p.Append(physics.Vec2{X: 3, Y: 10})
	assert.Equal(t, 3, p.Len())
	assert.InDelta(t, 11.0, p.Length(), 1e-9)

	p.Clear()
	assert.Zero(t, p.Len())
	assert.Empty(t, p.Points())
}

func TestPathFeature(t *testing.T) {
	p := NewPath()
	f := p.Feature(RoleScout)
	assert.Equal(t, orb.LineString{}, f.Geometry)
	assert.Equal(t, "surveillance", f.Properties["role"])
	assert.Equal(t, 0, f.Properties["points"])

	p.Append(physics.Vec2{X: 1, Y: 1})
	p.Append(physics.Vec2{X: 4, Y: 5})
	f = p.Feature(RoleRelay)
	line, ok := f.Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Equal(t, orb.LineString{{1, 1}, {4, 5}}, line)
	assert.Equal(t, 5.0, f.Properties["length"])

	// the feature owns its geometry
	line[0] = orb.Point{9, 9}
	assert.Equal(t, physics.Vec2{X: 1, Y: 1}, p.Points()[0])
}
