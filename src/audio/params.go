package audio

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
)

// ----- Harmonic Params ----- //

type harmonicParams struct {
	amplitude float64 // 0-1
	pan       float64 // 0-1, 0 is hard left
}
type harmonicJSON struct {
	Amplitude float64 `json:"amplitude"`
	Pan       float64 `json:"pan"`
}

func (h *harmonicParams) applyJSON(data json.RawMessage) {
	var j harmonicJSON
	err := json.Unmarshal(data, &j)
	if err != nil {
		log.Println("failed to apply JSON to harmonicParams")
		return
	}
	h.amplitude = clamp01(j.Amplitude)
	h.pan = clamp01(j.Pan)
}
func (h *harmonicParams) toJSON() json.RawMessage {
	return toRawMessage(&harmonicJSON{
		Amplitude: h.amplitude,
		Pan:       h.pan,
	})
}
func (h *harmonicParams) set(key string, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	switch key {
	case "amplitude":
		h.amplitude = clamp01(v)
	case "pan":
		h.pan = clamp01(v)
	default:
		return fmt.Errorf("unknown harmonic key %q", key)
	}
	return nil
}
func (h *harmonicParams) nudge(key string, value string) error {
	delta, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return err
	}
	switch key {
	case "amplitude":
		h.amplitude = clamp01(h.amplitude + delta)
	case "pan":
		h.pan = clamp01(h.pan + delta)
	default:
		return fmt.Errorf("unknown harmonic key %q", key)
	}
	return nil
}

// ----- Params ----- //

// params is everything the generator consumes. It contains no pointers, so
// one struct assignment is a complete consistent snapshot.
type params struct {
	baseFreq  float64
	wave      int
	harmonics [numHarmonics]harmonicParams
	matrix    [numHarmonics][numHarmonics]float64 // [source][target], Hz per unit of source amplitude
	cv        [numCVChannels]cvChannel
}

func newParams() *params {
	p := &params{
		baseFreq: defaultFreq,
		wave:     waveSine,
	}
	p.harmonics[0].amplitude = 1
	for i := range p.harmonics {
		p.harmonics[i].pan = 0.5
	}
	return p
}

func (p *params) setFreq(value float64) {
	p.baseFreq = math.Max(0, value)
}

func (p *params) setMatrix(source int, target int, value float64) error {
	if source < 0 || source >= numHarmonics || target < 0 || target >= numHarmonics {
		return fmt.Errorf("matrix index out of range: %v %v", source, target)
	}
	p.matrix[source][target] = clamp01(value)
	return nil
}

func (p *params) nudgeMatrix(source int, target int, delta float64) error {
	if source < 0 || source >= numHarmonics || target < 0 || target >= numHarmonics {
		return fmt.Errorf("matrix index out of range: %v %v", source, target)
	}
	p.matrix[source][target] = clamp01(p.matrix[source][target] + delta)
	return nil
}

// applyScale overwrites all seven amplitudes with the scale's interval
// ratios, exactly as given. The ratios weight amplitudes, not frequencies,
// and may land above 1; set and nudge still clamp later edits.
func (p *params) applyScale(kind int) {
	ratios := scaleRatios(kind)
	for i := range p.harmonics {
		p.harmonics[i].amplitude = ratios[i]
	}
}

type paramsJSON struct {
	Freq      float64           `json:"freq"`
	Wave      string            `json:"wave"`
	Harmonics []json.RawMessage `json:"harmonics"`
	Matrix    [][]float64       `json:"matrix"`
	CV        []json.RawMessage `json:"cv"`
}

func (p *params) applyJSON(data json.RawMessage) {
	var j paramsJSON
	err := json.Unmarshal(data, &j)
	if err != nil {
		log.Println(err)
		log.Println("failed to apply JSON to params")
		return
	}
	p.setFreq(j.Freq)
	if kind := waveKindFromString(j.Wave); kind >= 0 {
		p.wave = kind
	} else {
		log.Printf("unknown wave kind %q\n", j.Wave)
	}
	if len(j.Harmonics) == len(p.harmonics) {
		for i, raw := range j.Harmonics {
			p.harmonics[i].applyJSON(raw)
		}
	} else {
		log.Println("failed to apply JSON to harmonic params")
	}
	if len(j.Matrix) == len(p.matrix) {
		for source, row := range j.Matrix {
			if len(row) != len(p.matrix[source]) {
				log.Println("failed to apply JSON to matrix row")
				continue
			}
			for target, value := range row {
				p.matrix[source][target] = clamp01(value)
			}
		}
	} else {
		log.Println("failed to apply JSON to matrix")
	}
	if len(j.CV) == len(p.cv) {
		for i, raw := range j.CV {
			p.cv[i].applyJSON(raw)
		}
	} else {
		log.Println("failed to apply JSON to cv params")
	}
}
func (p *params) toJSON() json.RawMessage {
	harmonicJsons := make([]json.RawMessage, len(p.harmonics))
	for i := range p.harmonics {
		harmonicJsons[i] = p.harmonics[i].toJSON()
	}
	matrix := make([][]float64, len(p.matrix))
	for source := range p.matrix {
		matrix[source] = make([]float64, len(p.matrix[source]))
		copy(matrix[source], p.matrix[source][:])
	}
	cvJsons := make([]json.RawMessage, len(p.cv))
	for i := range p.cv {
		cvJsons[i] = p.cv[i].toJSON()
	}
	return toRawMessage(&paramsJSON{
		Freq:      p.baseFreq,
		Wave:      waveKindToString(p.wave),
		Harmonics: harmonicJsons,
		Matrix:    matrix,
		CV:        cvJsons,
	})
}
