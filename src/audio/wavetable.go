package audio

type wavetable struct {
	values []float64
}

// newWavetable fills one cycle by sampling phaseToValue at phase01 = i/samples.
func newWavetable(samples int, phaseToValue func(phase01 float64) float64) *wavetable {
	wt := &wavetable{
		values: make([]float64, samples),
	}
	for i := 0; i < samples; i++ {
		wt.values[i] = phaseToValue(float64(i) / float64(samples))
	}
	return wt
}

func (wt *wavetable) at(sampleIndex int64) float64 {
	return wt.values[int(sampleIndex%int64(len(wt.values)))]
}
