package training

import "github.com/alexenache10/NeuralPortofolio/internal/services/dataset"

// NaiveBaselineMSE scores the "tomorrow equals today" predictor on ds: each
// label is predicted by the last target value inside its window.
func NaiveBaselineMSE(ds *dataset.Windowed) float64 {
	if ds == nil || ds.Len() == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < ds.Len(); i++ {
		_, label, _ := ds.Get(i)
		prev, _ := ds.LastObserved(i)
		d := label - prev
		sum += d * d
	}
	return sum / float64(ds.Len())
}
