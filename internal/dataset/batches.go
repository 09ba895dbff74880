package dataset

import (
	"errors"
	"fmt"
	"math/rand"
)

// Batch is a minibatch of flattened row-major features and their labels.
type Batch struct {
	Features []float32
	Labels   []float32
}

// Size returns the number of rows in the batch.
func (b Batch) Size() int { return len(b.Labels) }

// Split holds out the trailing floor(Len*fraction) rows for validation and returns the
// remaining leading rows as the training set. Rows are not shuffled first.
func (d *Dataset) Split(fraction float64) (train, val *Dataset, err error) {
	if fraction < 0 || fraction >= 1 {
		return nil, nil, fmt.Errorf("dataset: validation fraction must be in [0,1) (got %g)", fraction)
	}
	n := d.Len()
	cut := n - int(float64(n)*fraction)
	if cut <= 0 {
		return nil, nil, errors.New("dataset: validation split leaves no training rows")
	}
	train = &Dataset{samples: d.samples[:cut:cut], labels: d.labels[:cut:cut]}
	val = &Dataset{samples: d.samples[cut:], labels: d.labels[cut:]}
	return train, val, nil
}

// Batches shuffles the row order with rng and cuts it into batches of batchSize rows. The
// last batch holds the remainder. A nil rng keeps the stored order.
func (d *Dataset) Batches(batchSize int, rng *rand.Rand) ([]Batch, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("dataset: batch size must be > 0 (got %d)", batchSize)
	}
	order := make([]int, d.Len())
	for i := range order {
		order[i] = i
	}
	if rng != nil {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	batches := make([]Batch, 0, (len(order)+batchSize-1)/batchSize)
	for start := 0; start < len(order); start += batchSize {
		end := start + batchSize
		if end > len(order) {
			end = len(order)
		}
		batches = append(batches, d.gather(order[start:end]))
	}
	return batches, nil
}

func (d *Dataset) gather(rows []int) Batch {
	b := Batch{
		Features: make([]float32, 0, len(rows)*NumFeatures),
		Labels:   make([]float32, 0, len(rows)),
	}
	for _, r := range rows {
		b.Features = append(b.Features, d.samples[r][:]...)
		b.Labels = append(b.Labels, d.labels[r])
	}
	return b
}

// All returns every row as a single batch in stored order.
func (d *Dataset) All() Batch {
	return Batch{Features: d.Features(), Labels: d.Labels()}
}
