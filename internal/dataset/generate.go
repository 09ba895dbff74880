package dataset

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// NumFeatures is the width of a Sample.
const NumFeatures = 5

// DeadZone is the half-width of the band around the paddle inside which the paddle holds.
const DeadZone = 0.05

// MaxVelocity bounds both velocity components to [-MaxVelocity, MaxVelocity).
const MaxVelocity = 0.01

// Feature column indices within a Sample.
const (
	BallX = iota
	BallY
	BallVelX
	BallVelY
	PaddleY
)

// Movement labels.
const (
	MoveUp   float32 = -1
	Hold     float32 = 0
	MoveDown float32 = 1
)

// Sample is one feature row: ball position, ball velocity and paddle position.
type Sample [NumFeatures]float32

// LabelMove returns the paddle movement for a ball/paddle pair. Only the vertical positions
// matter; a ball exactly DeadZone away from the paddle is still a hold.
func LabelMove(ballY, paddleY float32) float32 {
	switch {
	case ballY < paddleY-DeadZone:
		return MoveUp
	case ballY > paddleY+DeadZone:
		return MoveDown
	default:
		return Hold
	}
}

// Label applies LabelMove to the sample's ball and paddle rows.
func (s Sample) Label() float32 {
	return LabelMove(s[BallY], s[PaddleY])
}

// NewSample draws one sample from rng. Positions are uniform in [0,1) and velocities are
// uniform in [-MaxVelocity, MaxVelocity).
func NewSample(rng *rand.Rand) Sample {
	var s Sample
	s[BallX] = rng.Float32()
	s[BallY] = rng.Float32()
	s[BallVelX] = velocity(rng)
	s[BallVelY] = velocity(rng)
	s[PaddleY] = rng.Float32()
	return s
}

func velocity(rng *rand.Rand) float32 {
	v := (rng.Float32() - 0.5) * 2 * MaxVelocity
	// float32 rounding can land exactly on the open upper bound.
	if v >= MaxVelocity {
		v = math.Nextafter32(MaxVelocity, 0)
	}
	return v
}

// Dataset holds samples and their labels as parallel, ordered slices.
type Dataset struct {
	samples []Sample
	labels  []float32
}

// Generate draws n labelled samples from rng.
func Generate(n int, rng *rand.Rand) (*Dataset, error) {
	if n <= 0 {
		return nil, fmt.Errorf("dataset: sample count must be > 0 (got %d)", n)
	}
	if rng == nil {
		return nil, errors.New("dataset: nil random source")
	}
	ds := &Dataset{
		samples: make([]Sample, n),
		labels:  make([]float32, n),
	}
	for i := range ds.samples {
		s := NewSample(rng)
		ds.samples[i] = s
		ds.labels[i] = s.Label()
	}
	return ds, nil
}

// FromSamples labels the given samples with LabelMove.
func FromSamples(samples []Sample) *Dataset {
	ds := &Dataset{
		samples: append([]Sample(nil), samples...),
		labels:  make([]float32, len(samples)),
	}
	for i, s := range ds.samples {
		ds.labels[i] = s.Label()
	}
	return ds
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.samples)
}

// Sample returns row i.
func (d *Dataset) Sample(i int) Sample { return d.samples[i] }

// Label returns the label of row i.
func (d *Dataset) Label(i int) float32 { return d.labels[i] }

// Features returns all rows flattened row-major into a new slice of Len()*NumFeatures values.
func (d *Dataset) Features() []float32 {
	out := make([]float32, 0, d.Len()*NumFeatures)
	for _, s := range d.samples {
		out = append(out, s[:]...)
	}
	return out
}

// Labels returns a copy of the labels.
func (d *Dataset) Labels() []float32 {
	return append([]float32(nil), d.labels...)
}
