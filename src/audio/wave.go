package audio

import (
	"math"
)

// ----- Wave Kind ----- //

const (
	waveSine = iota
	waveSaw
	waveTriangle
	wavePulse
)

func waveKindFromString(s string) int {
	switch s {
	case "sine":
		return waveSine
	case "saw":
		return waveSaw
	case "triangle":
		return waveTriangle
	case "pulse":
		return wavePulse
	}
	return -1
}

func waveKindToString(kind int) string {
	switch kind {
	case waveSine:
		return "sine"
	case waveSaw:
		return "saw"
	case waveTriangle:
		return "triangle"
	case wavePulse:
		return "pulse"
	}
	return ""
}

// Saw, triangle and pulse repeat a fixed 256-sample cycle; only the sine
// tracks freq. The shaped waves keep the module's original coarse pitch.
var (
	sawTable      = newWavetable(periodLength, sawWave)
	triangleTable = newWavetable(periodLength, triangleWave)
	pulseTable    = newWavetable(periodLength, pulseWave)
)

func sawWave(p float64) float64 { return p*2 - 1 }

func triangleWave(p float64) float64 { return 2*math.Abs(p*2-1) - 1 }

func pulseWave(p float64) float64 {
	if p < 0.5 {
		return 1
	}
	return -1
}

func waveSample(kind int, sampleIndex int64, freq float64) float64 {
	switch kind {
	case waveSine:
		return math.Sin(2.0 * math.Pi * float64(sampleIndex) * freq / sampleRate)
	case waveSaw:
		return sawTable.at(sampleIndex)
	case waveTriangle:
		return triangleTable.at(sampleIndex)
	case wavePulse:
		return pulseTable.at(sampleIndex)
	}
	return 0
}
