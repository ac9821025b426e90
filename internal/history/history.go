package history

import "time"

// EpochRecord holds the metrics of one completed epoch.
type EpochRecord struct {
	Epoch         int           `json:"epoch"`
	TrainLoss     float64       `json:"train_loss"`
	TrainAccuracy float64       `json:"train_accuracy"`
	ValLoss       float64       `json:"val_loss"`
	ValAccuracy   float64       `json:"val_accuracy"`
	LearningRate  float64       `json:"learning_rate"`
	Duration      time.Duration `json:"duration"`
}

// History is the per-epoch record of a training run.
type History struct {
	Epochs []EpochRecord `json:"epochs"`
	// BestEpoch is the 1-based epoch whose parameters were kept as best,
	// or 0 when no epoch has been recorded.
	BestEpoch int  `json:"best_epoch"`
	Restored  bool `json:"restored"`
}

// Add appends rec and reports whether it is the new best epoch: highest
// validation accuracy, then lowest validation loss, then earliest.
func (h *History) Add(rec EpochRecord) bool {
	h.Epochs = append(h.Epochs, rec)
	best, ok := h.Best()
	if ok && !better(rec, best) {
		return false
	}
	h.BestEpoch = rec.Epoch
	return true
}

// Best returns the current best epoch record.
func (h *History) Best() (EpochRecord, bool) {
	for _, rec := range h.Epochs {
		if rec.Epoch == h.BestEpoch {
			return rec, true
		}
	}
	return EpochRecord{}, false
}

// Last returns the most recent epoch record.
func (h *History) Last() (EpochRecord, bool) {
	if len(h.Epochs) == 0 {
		return EpochRecord{}, false
	}
	return h.Epochs[len(h.Epochs)-1], true
}

// TrainLosses returns the training loss of every epoch in order.
func (h *History) TrainLosses() []float64 {
	out := make([]float64, len(h.Epochs))
	for i, rec := range h.Epochs {
		out[i] = rec.TrainLoss
	}
	return out
}

func better(a, b EpochRecord) bool {
	if a.ValAccuracy != b.ValAccuracy {
		return a.ValAccuracy > b.ValAccuracy
	}
	return a.ValLoss < b.ValLoss
}
