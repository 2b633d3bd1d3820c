// Package physics holds the 2-D vector math used by agent movement.
package physics

import "math"

// Vec2 is a point or displacement in scene coordinates.
type Vec2 struct {
	X float64 `json:"x" yaml:"x" msgpack:"x"`
	Y float64 `json:"y" yaml:"y" msgpack:"y"`
}

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }
func (v Vec2) Scale(k float64) Vec2 { return Vec2{X: v.X * k, Y: v.Y * k} }
func (v Vec2) IsZero() bool         { return v.X == 0 && v.Y == 0 }
func (v Vec2) IsFinite() bool       { return isFinite(v.X) && isFinite(v.Y) }
func (v Vec2) Array() [2]float64    { return [2]float64{v.X, v.Y} }

// FromArray converts an orb style [x, y] pair.
func FromArray(a [2]float64) Vec2 {
	return Vec2{X: a[0], Y: a[1]}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Direction is the componentwise difference to - from.
func Direction(from, to Vec2) Vec2 {
	return to.Sub(from)
}

// Magnitude is the Euclidean length of v; zero for the zero vector.
func Magnitude(v Vec2) float64 {
	return math.Hypot(v.X, v.Y)
}

// Normalize returns the unit vector along v, or the zero vector when v has no length.
func Normalize(v Vec2) Vec2 {
	m := Magnitude(v)
	if m == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / m, Y: v.Y / m}
}

// Distance computes Euclidean distance between two points.
func Distance(a, b Vec2) float64 {
	return Magnitude(Direction(a, b))
}

// StepResult is the outcome of moving one tick toward a target.
type StepResult struct {
	Position Vec2
	Arrived  bool
	// Remaining is the distance to the target after the step.
	Remaining float64
}

// Step moves from position toward target by at most speed units.
//
// When position is already within threshold of target the step reports
// Arrived and leaves position unchanged. Otherwise the move is clamped to the
// remaining distance, so the target is never overshot.
func Step(position, target Vec2, speed, threshold float64) StepResult {
	dir := Direction(position, target)
	dist := Magnitude(dir)
	if dist <= threshold {
		return StepResult{Position: position, Arrived: true, Remaining: dist}
	}
	if dist <= speed {
		return StepResult{Position: target, Remaining: 0}
	}

	next := position.Add(Normalize(dir).Scale(speed))
	return StepResult{Position: next, Remaining: dist - speed}
}
