package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	sampleRate    = 1000 // ticks per second
	numHarmonics  = 7
	numCVChannels = 4
	periodLength  = 256 // samples in one fixed wave cycle
	fftSize       = 256
)
const tickPeriod = time.Second / sampleRate
const defaultFreq = 440.0

var fft = NewFFT(fftSize)

// ----- Utility ----- //

func now() float64 {
	return float64(time.Now().UnixNano()) / 1000 / 1000 / 1000
}
func clamp(value float64, min float64, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
func clamp01(value float64) float64 {
	return clamp(value, 0, 1)
}
func parseIndex(s string, limit int) (int, error) {
	index, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if index < 0 || int(index) >= limit {
		return 0, fmt.Errorf("index out of range: %v", index)
	}
	return int(index), nil
}
func toRawMessage(v interface{}) json.RawMessage {
	bytes, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return json.RawMessage(bytes)
}

// ----- Changes ----- //

// Changes collects flags for state the control surface has not fetched yet.
type Changes struct {
	sync.Mutex
	dict map[string]struct{}
}

// Add ...
func (c *Changes) Add(key string) {
	c.Lock()
	c.dict[key] = struct{}{}
	c.Unlock()
}

// Has ...
func (c *Changes) Has(key string) bool {
	c.Lock()
	_, ok := c.dict[key]
	c.Unlock()
	return ok
}

// Delete ...
func (c *Changes) Delete(key string) {
	c.Lock()
	delete(c.dict, key)
	c.Unlock()
}

// ----- State ----- //

type state struct {
	sync.Mutex
	params      *params
	sampleIndex int64
	pos         int64
	out         []float64 // length: fftSize, rolling mono output
	lastFrame   SampleFrame
}

func newState() *state {
	return &state{
		params: newParams(),
		out:    make([]float64, fftSize),
	}
}

// ----- Engine ----- //

// Engine owns the parameter state and runs the tick loop against a Sink.
// Control mutations arrive on CommandCh or through the exported methods;
// every tick reads one consistent snapshot of the parameters.
type Engine struct {
	ticks     int64 // atomic
	dropped   int64 // atomic
	CommandCh chan []string
	Changes   *Changes
	state     *state
	snapshot  params // generator-private copy, reused every tick
	sink      Sink
	fftResult []float64 // length: fftSize
}

// NewEngine ...
func NewEngine(sink Sink) *Engine {
	e := &Engine{
		CommandCh: make(chan []string, 256),
		Changes: &Changes{
			dict: make(map[string]struct{}),
		},
		state:     newState(),
		sink:      sink,
		fftResult: make([]float64, fftSize),
	}
	go processCommands(e, e.CommandCh)
	return e
}

func processCommands(e *Engine, commandCh <-chan []string) {
	for command := range commandCh {
		if err := e.update(command); err != nil {
			log.Printf("command %v failed: %v\n", command, err)
		}
	}
	log.Println("processCommands() ended.")
}

func (e *Engine) update(command []string) error {
	e.state.Lock()
	defer e.state.Unlock()
	if len(command) == 0 {
		return fmt.Errorf("empty command")
	}
	p := e.state.params
	switch command[0] {
	case "set":
		if err := e.set(command[1:]); err != nil {
			return err
		}
	case "nudge":
		if err := e.nudge(command[1:]); err != nil {
			return err
		}
	case "cycle":
		if len(command) != 3 || command[1] != "cv" {
			return fmt.Errorf("invalid cycle command %v", command)
		}
		index, err := parseIndex(command[2], numCVChannels)
		if err != nil {
			return err
		}
		p.cv[index].mode = (p.cv[index].mode + 1) % numCVModes
	case "scale":
		if len(command) != 2 {
			return fmt.Errorf("invalid scale command %v", command)
		}
		kind := scaleFromString(command[1])
		if kind < 0 {
			return fmt.Errorf("unknown scale %q", command[1])
		}
		p.applyScale(kind)
	case "apply":
		if len(command) != 2 {
			return fmt.Errorf("invalid apply command %v", command)
		}
		p.applyJSON(json.RawMessage(command[1]))
	case "reset":
		*p = *newParams()
	default:
		return fmt.Errorf("unknown command %v", command[0])
	}
	e.Changes.Add("data")
	return nil
}

// set dispatches "set ..." commands. The caller holds the state lock.
func (e *Engine) set(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("set: missing target")
	}
	p := e.state.params
	switch command[0] {
	case "freq":
		if len(command) != 2 {
			return fmt.Errorf("invalid key-value pair %v", command)
		}
		value, err := strconv.ParseFloat(command[1], 64)
		if err != nil {
			return err
		}
		p.setFreq(value)
	case "wave":
		if len(command) != 2 {
			return fmt.Errorf("invalid key-value pair %v", command)
		}
		kind := waveKindFromString(command[1])
		if kind < 0 {
			return fmt.Errorf("unknown wave kind %q", command[1])
		}
		p.wave = kind
	case "harmonic":
		command = command[1:]
		if len(command) != 3 {
			return fmt.Errorf("invalid key-value pair %v", command)
		}
		index, err := parseIndex(command[0], numHarmonics)
		if err != nil {
			return err
		}
		return p.harmonics[index].set(command[1], command[2])
	case "cv":
		command = command[1:]
		if len(command) != 3 {
			return fmt.Errorf("invalid key-value pair %v", command)
		}
		index, err := parseIndex(command[0], numCVChannels)
		if err != nil {
			return err
		}
		return p.cv[index].set(command[1], command[2])
	case "matrix":
		command = command[1:]
		if len(command) != 3 {
			return fmt.Errorf("invalid key-value pair %v", command)
		}
		source, err := parseIndex(command[0], numHarmonics)
		if err != nil {
			return err
		}
		target, err := parseIndex(command[1], numHarmonics)
		if err != nil {
			return err
		}
		value, err := strconv.ParseFloat(command[2], 64)
		if err != nil {
			return err
		}
		return p.setMatrix(source, target, value)
	default:
		return fmt.Errorf("unknown set target %q", command[0])
	}
	return nil
}

// nudge dispatches "nudge ..." commands, the encoder-style relative edits.
// The caller holds the state lock.
func (e *Engine) nudge(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("nudge: missing target")
	}
	p := e.state.params
	switch command[0] {
	case "harmonic":
		command = command[1:]
		if len(command) != 3 {
			return fmt.Errorf("invalid key-value pair %v", command)
		}
		index, err := parseIndex(command[0], numHarmonics)
		if err != nil {
			return err
		}
		return p.harmonics[index].nudge(command[1], command[2])
	case "matrix":
		command = command[1:]
		if len(command) != 3 {
			return fmt.Errorf("invalid key-value pair %v", command)
		}
		source, err := parseIndex(command[0], numHarmonics)
		if err != nil {
			return err
		}
		target, err := parseIndex(command[1], numHarmonics)
		if err != nil {
			return err
		}
		delta, err := strconv.ParseFloat(command[2], 64)
		if err != nil {
			return err
		}
		return p.nudgeMatrix(source, target, delta)
	default:
		return fmt.Errorf("unknown nudge target %q", command[0])
	}
}

// ApplyJSON ...
func (e *Engine) ApplyJSON(data []byte) {
	e.state.Lock()
	defer e.state.Unlock()
	e.state.params.applyJSON(json.RawMessage(data))
}

// ToJSON ...
func (e *Engine) ToJSON() []byte {
	e.state.Lock()
	defer e.state.Unlock()
	return []byte(e.state.params.toJSON())
}

// SetCVValue stores one normalized reading; out-of-range values clamp.
func (e *Engine) SetCVValue(channel int, value float64) {
	if channel < 0 || channel >= numCVChannels {
		return
	}
	e.state.Lock()
	e.state.params.cv[channel].value = clamp01(value)
	e.state.Unlock()
}

func (e *Engine) tick() {
	s := e.state
	s.Lock()
	e.snapshot = *s.params
	index := s.sampleIndex
	s.sampleIndex++
	s.Unlock()

	frame := generateFrame(&e.snapshot, index).clamped()

	s.Lock()
	s.out[s.pos%fftSize] = frame.Mono
	s.pos++
	s.lastFrame = frame
	s.Unlock()

	e.sink.Write(frame)
	atomic.AddInt64(&e.ticks, 1)
}

// missedTicks counts the periods that elapsed between two ticker firings
// beyond the expected single one.
func missedTicks(prev time.Time, tickTime time.Time) int64 {
	if n := int64(tickTime.Sub(prev) / tickPeriod); n > 1 {
		return n - 1
	}
	return 0
}

// Start runs the tick loop until ctx is done. Ticks the runtime could not
// deliver in time are dropped and counted, never replayed in a burst.
func (e *Engine) Start(ctx context.Context) error {
	t := time.NewTicker(tickPeriod)
	defer t.Stop()
	prev := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Println("Start() ended.")
			return nil
		case tickTime := <-t.C:
			if n := missedTicks(prev, tickTime); n > 0 {
				atomic.AddInt64(&e.dropped, n)
			}
			prev = tickTime
			e.tick()
		}
	}
}

// Stats ...
func (e *Engine) Stats() (ticks int64, dropped int64) {
	return atomic.LoadInt64(&e.ticks), atomic.LoadInt64(&e.dropped)
}

// Frame returns the last frame handed to the sink.
func (e *Engine) Frame() SampleFrame {
	e.state.Lock()
	defer e.state.Unlock()
	return e.state.lastFrame
}

// GetFFT ...
func (e *Engine) GetFFT() []float64 {
	e.state.Lock()
	// out:       | 4 | 1 | 2 | 3 |
	// offset:        ^
	// fftResult: | 1 | 2 | 3 | 4 |
	// return:    |<----->|
	offset := e.state.pos % fftSize
	copy(e.fftResult, e.state.out[offset:])
	copy(e.fftResult[fftSize-offset:], e.state.out[:offset])
	e.state.Unlock()
	applyWindow(e.fftResult, han)
	fft.CalcAbs(e.fftResult)
	for i, value := range e.fftResult {
		e.fftResult[i] = value * 2 / fftSize
	}
	return e.fftResult[:fftSize/2]
}

// Close ...
func (e *Engine) Close() error {
	log.Println("Closing Engine...")
	close(e.CommandCh)
	return e.sink.Close()
}
