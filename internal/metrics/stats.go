package metrics

import "time"

// Window accumulates loss, accuracy and timing across the steps of a pass.
type Window struct {
	samples int
	correct int
	lossSum float64
	data    time.Duration
	compute time.Duration
	steps   int
}

// Record adds one batch. loss is the batch mean and is weighted by batchSize.
func (w *Window) Record(batchSize, correct int, loss float64, dataTime, computeTime time.Duration) {
	w.samples += batchSize
	w.correct += correct
	w.lossSum += loss * float64(batchSize)
	w.data += dataTime
	w.compute += computeTime
	w.steps++
}

// Steps returns the number of batches recorded since the last Snapshot.
func (w *Window) Steps() int {
	return w.steps
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Samples: w.samples, Correct: w.correct}
	if w.samples > 0 {
		snap.AvgLoss = w.lossSum / float64(w.samples)
		snap.Accuracy = float64(w.correct) / float64(w.samples)
	}
	total := w.data + w.compute
	if total > 0 {
		snap.SamplesPerSec = float64(w.samples) / total.Seconds()
	}
	if w.steps > 0 {
		snap.AvgDataMS = (w.data.Seconds() * 1000) / float64(w.steps)
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.steps)
	}

	*w = Window{}
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Samples       int
	Correct       int
	AvgLoss       float64
	Accuracy      float64
	SamplesPerSec float64
	AvgDataMS     float64
	AvgComputeMS  float64
}
