package domain

// StatisticRecord holds the aggregate raster values computed over the
// footprint of one input feature. Min, Max, Mean and Sum are nil when no
// valid pixel fell inside the footprint.
type StatisticRecord struct {
	// FeatureIndex is the zero-based position of the feature in the submitted collection
	FeatureIndex int `json:"feature_index"`

	// FeatureID echoes the GeoJSON feature "id" member, if any
	FeatureID any `json:"feature_id,omitempty"`

	Count int      `json:"count"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Mean  *float64 `json:"mean"`
	Sum   *float64 `json:"sum"`
}

// Accumulator folds pixel values into a StatisticRecord.
type Accumulator struct {
	count    int
	min, max float64
	sum      float64
}

// Add includes one valid pixel value.
func (a *Accumulator) Add(v float64) {
	if a.count == 0 {
		a.min, a.max = v, v
	} else {
		if v < a.min {
			a.min = v
		}
		if v > a.max {
			a.max = v
		}
	}
	a.sum += v
	a.count++
}

// Record returns the statistics gathered so far for the feature at index.
func (a *Accumulator) Record(index int, featureID any) StatisticRecord {
	rec := StatisticRecord{FeatureIndex: index, FeatureID: featureID, Count: a.count}
	if a.count == 0 {
		return rec
	}

	minV, maxV, sum := a.min, a.max, a.sum
	mean := sum / float64(a.count)
	rec.Min, rec.Max, rec.Sum, rec.Mean = &minV, &maxV, &sum, &mean
	return rec
}
