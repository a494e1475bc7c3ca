package audio

// SampleFrame is the output of one tick: the stereo mix, the mono sum and
// the seven individual harmonic samples.
type SampleFrame struct {
	Left      float64
	Right     float64
	Mono      float64
	Harmonics [numHarmonics]float64
}

// generateFrame synthesizes one frame from a consistent params snapshot.
// Per harmonic: frequency = base * harmonic number, plus the modulation
// matrix contribution of every source amplitude, plus the assigned CV
// channels in channel order. The mix sums are exact; callers that hand
// frames to a device clamp a copy first.
func generateFrame(p *params, sampleIndex int64) SampleFrame {
	var f SampleFrame
	for i := 0; i < numHarmonics; i++ {
		freq := p.baseFreq * float64(i+1)
		for j := 0; j < numHarmonics; j++ {
			freq += p.matrix[j][i] * p.harmonics[j].amplitude
		}
		amp := p.harmonics[i].amplitude
		for _, c := range p.cv {
			freq, amp = applyCV(c, p.baseFreq, freq, amp)
		}
		s := amp * waveSample(p.wave, sampleIndex, freq)
		pan := p.harmonics[i].pan
		f.Left += s * (1 - pan)
		f.Right += s * pan
		f.Mono += s
		f.Harmonics[i] = s
	}
	return f
}

func (f SampleFrame) clamped() SampleFrame {
	f.Left = clamp(f.Left, -1, 1)
	f.Right = clamp(f.Right, -1, 1)
	f.Mono = clamp(f.Mono, -1, 1)
	for i := range f.Harmonics {
		f.Harmonics[i] = clamp(f.Harmonics[i], -1, 1)
	}
	return f
}
