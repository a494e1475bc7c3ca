package audio

// ----- Scale ----- //

const (
	scaleMajor = iota
	scaleMinor
	scaleNaturalHarmonic
	scalePentatonic
)

func scaleFromString(s string) int {
	switch s {
	case "major":
		return scaleMajor
	case "minor":
		return scaleMinor
	case "natural-harmonic":
		return scaleNaturalHarmonic
	case "pentatonic":
		return scalePentatonic
	}
	return -1
}

func scaleToString(kind int) string {
	switch kind {
	case scaleMajor:
		return "major"
	case scaleMinor:
		return "minor"
	case scaleNaturalHarmonic:
		return "natural-harmonic"
	case scalePentatonic:
		return "pentatonic"
	}
	return ""
}

// scaleRatios returns one amplitude coefficient per harmonic. The ratios are
// interval ratios relative to the tonic and may exceed 1.
func scaleRatios(kind int) [numHarmonics]float64 {
	switch kind {
	case scaleMajor:
		return [numHarmonics]float64{1, 1.122, 1.26, 1.335, 1.5, 1.682, 1.888}
	case scaleMinor:
		return [numHarmonics]float64{1, 1.122, 1.189, 1.335, 1.5, 1.587, 1.782}
	case scaleNaturalHarmonic:
		return [numHarmonics]float64{1, 1.125, 1.25, 1.375, 1.5, 1.625, 1.75}
	case scalePentatonic:
		return [numHarmonics]float64{1, 1.125, 1.25, 1.5, 1.75, 2, 2.25}
	}
	return [numHarmonics]float64{}
}
