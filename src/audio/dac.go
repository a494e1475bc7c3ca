package audio

// DACFrame mirrors the module's converter outputs: 8-bit words for the
// stereo pair, 12-bit words for the mono sum and the individual harmonics.
type DACFrame struct {
	Left      uint8
	Right     uint8
	Mono      uint16
	Harmonics [numHarmonics]uint16
}

// ToDAC encodes a frame the way the hardware drives its converters:
// value words are (sample + 1) * half-range, saturating at the rails.
func ToDAC(f SampleFrame) DACFrame {
	d := DACFrame{
		Left:  dacWord8(f.Left),
		Right: dacWord8(f.Right),
		Mono:  dacWord12(f.Mono),
	}
	for i, s := range f.Harmonics {
		d.Harmonics[i] = dacWord12(s)
	}
	return d
}

func dacWord8(value float64) uint8 {
	v := (clamp(value, -1, 1) + 1.0) * 127.5
	return uint8(v)
}

func dacWord12(value float64) uint16 {
	v := (clamp(value, -1, 1) + 1.0) * 2047.5
	return uint16(v)
}
