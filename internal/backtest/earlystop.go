package backtest

// EarlyStop decides when additional trials stop changing the rolling
// accuracy. The monitor watches the accuracy after each trial; once the last
// Window values vary by less than Epsilon the estimate has converged and the
// run may finish early. It never fires before MinTrials completed trials.
type EarlyStop struct {
	MinTrials int
	Window    int
	Epsilon   float64
}

// ShouldStop reports whether the per-trial correctness sequence has
// converged. correct holds one entry per completed trial in order.
func (e *EarlyStop) ShouldStop(correct []bool) bool {
	n := len(correct)
	if n < e.MinTrials || n < e.MinTrials+e.Window-1 {
		return false
	}

	hits := 0
	var rolling []float64
	for i, c := range correct {
		if c {
			hits++
		}
		if i+1 >= e.MinTrials {
			rolling = append(rolling, float64(hits)/float64(i+1))
		}
	}

	window := rolling[len(rolling)-e.Window:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(len(window))

	variance := 0.0
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(window))

	return variance < e.Epsilon
}
