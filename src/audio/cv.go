package audio

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
)

// ----- CV Mode ----- //

const (
	cvNone = iota
	cvLinearFM
	cvExponentialFM
	cvAmplitude
	cvPitchPerOctave
)
const numCVModes = cvPitchPerOctave + 1

func cvModeFromString(s string) int {
	switch s {
	case "none":
		return cvNone
	case "linear-fm":
		return cvLinearFM
	case "exponential-fm":
		return cvExponentialFM
	case "amplitude":
		return cvAmplitude
	case "pitch-per-octave":
		return cvPitchPerOctave
	}
	return -1
}

func cvModeToString(mode int) string {
	switch mode {
	case cvNone:
		return "none"
	case cvLinearFM:
		return "linear-fm"
	case cvExponentialFM:
		return "exponential-fm"
	case cvAmplitude:
		return "amplitude"
	case cvPitchPerOctave:
		return "pitch-per-octave"
	}
	return ""
}

// ----- CV Channel ----- //

type cvChannel struct {
	mode  int
	value float64 // 0-1, last received reading
}
type cvJSON struct {
	Mode  string  `json:"mode"`
	Value float64 `json:"value"`
}

func (c *cvChannel) applyJSON(data json.RawMessage) {
	var j cvJSON
	err := json.Unmarshal(data, &j)
	if err != nil {
		log.Println("failed to apply JSON to cvChannel")
		return
	}
	mode := cvModeFromString(j.Mode)
	if mode < 0 {
		log.Printf("unknown cv mode %q\n", j.Mode)
		return
	}
	c.mode = mode
	c.value = clamp01(j.Value)
}
func (c *cvChannel) toJSON() json.RawMessage {
	return toRawMessage(&cvJSON{
		Mode:  cvModeToString(c.mode),
		Value: c.value,
	})
}
func (c *cvChannel) set(key string, value string) error {
	switch key {
	case "mode":
		mode := cvModeFromString(value)
		if mode < 0 {
			return fmt.Errorf("unknown cv mode %q", value)
		}
		c.mode = mode
	case "value":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		c.value = clamp01(v)
	default:
		return fmt.Errorf("unknown cv key %q", key)
	}
	return nil
}

// applyCV maps one channel onto a harmonic's frequency and amplitude.
// Amplitude mode scales the synthesis amplitude of the current tick only;
// the stored amplitude is left untouched.
func applyCV(c cvChannel, baseFreq float64, freq float64, amp float64) (float64, float64) {
	switch c.mode {
	case cvLinearFM:
		freq += c.value * baseFreq
	case cvExponentialFM:
		freq *= math.Pow(2, c.value)
	case cvAmplitude:
		amp *= c.value
	case cvPitchPerOctave:
		freq *= math.Pow(2, c.value-1)
	}
	return freq, amp
}
