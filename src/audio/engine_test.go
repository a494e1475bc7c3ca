package audio

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
)

func expectNoError(t *testing.T, err error) {
	if err != nil {
		t.Errorf("expected no error, but got: %v", err)
	}
}

type captureSink struct {
	sync.Mutex
	frames []SampleFrame
}

func (c *captureSink) Write(f SampleFrame) {
	c.Lock()
	c.frames = append(c.frames, f)
	c.Unlock()
}
func (c *captureSink) Close() error { return nil }
func (c *captureSink) count() int {
	c.Lock()
	defer c.Unlock()
	return len(c.frames)
}

func TestUpdateCommands(t *testing.T) {
	e := NewEngine(NewDiscardOutput())
	expectNoError(t, e.update([]string{"set", "freq", "220"}))
	expectNoError(t, e.update([]string{"set", "wave", "saw"}))
	expectNoError(t, e.update([]string{"set", "harmonic", "3", "amplitude", "0.8"}))
	expectNoError(t, e.update([]string{"set", "harmonic", "3", "pan", "0.25"}))
	expectNoError(t, e.update([]string{"nudge", "harmonic", "3", "amplitude", "-0.1"}))
	expectNoError(t, e.update([]string{"set", "matrix", "2", "5", "0.3"}))
	expectNoError(t, e.update([]string{"nudge", "matrix", "2", "5", "0.1"}))
	expectNoError(t, e.update([]string{"set", "cv", "1", "mode", "linear-fm"}))
	expectNoError(t, e.update([]string{"set", "cv", "1", "value", "0.5"}))
	p := e.state.params
	expectEqual(t, p.baseFreq, 220.0)
	expectEqual(t, p.wave, waveSaw)
	expectNearlyEqual(t, p.harmonics[3].amplitude, 0.7)
	expectEqual(t, p.harmonics[3].pan, 0.25)
	expectNearlyEqual(t, p.matrix[2][5], 0.4)
	expectEqual(t, p.cv[1].mode, cvLinearFM)
	expectEqual(t, p.cv[1].value, 0.5)
	if !e.Changes.Has("data") {
		t.Errorf("expected a pending data change")
	}
}

func TestUpdateCycleCV(t *testing.T) {
	e := NewEngine(NewDiscardOutput())
	order := []int{cvLinearFM, cvExponentialFM, cvAmplitude, cvPitchPerOctave, cvNone}
	for _, want := range order {
		expectNoError(t, e.update([]string{"cycle", "cv", "2"}))
		expectEqual(t, e.state.params.cv[2].mode, want)
	}
}

func TestUpdateScaleAndReset(t *testing.T) {
	e := NewEngine(NewDiscardOutput())
	expectNoError(t, e.update([]string{"scale", "natural-harmonic"}))
	expectEqual(t, e.state.params.harmonics[1].amplitude, 1.125)
	expectEqual(t, e.state.params.harmonics[6].amplitude, 1.75)
	expectNoError(t, e.update([]string{"reset"}))
	fresh := NewEngine(NewDiscardOutput())
	if !bytes.Equal(e.ToJSON(), fresh.ToJSON()) {
		t.Errorf("expected reset to restore the defaults")
	}
}

func TestUpdateRejectsMalformedCommands(t *testing.T) {
	e := NewEngine(NewDiscardOutput())
	commands := [][]string{
		{},
		{"quit"},
		{"set"},
		{"set", "freq", "abc"},
		{"set", "wave", "noise"},
		{"set", "harmonic", "7", "amplitude", "1"},
		{"set", "harmonic", "0", "detune", "1"},
		{"set", "cv", "4", "mode", "none"},
		{"set", "cv", "0", "mode", "gate"},
		{"set", "matrix", "0", "9", "0.5"},
		{"nudge", "matrix", "0", "0", "x"},
		{"cycle", "cv", "nan"},
		{"scale", "chromatic"},
		{"apply"},
	}
	for _, command := range commands {
		if err := e.update(command); err == nil {
			t.Errorf("expected an error for %v", command)
		}
	}
	// nothing was mutated along the way
	fresh := NewEngine(NewDiscardOutput())
	if !bytes.Equal(e.ToJSON(), fresh.ToJSON()) {
		t.Errorf("expected rejected commands to leave the state untouched")
	}
}

func TestUpdateApplyJSON(t *testing.T) {
	e := NewEngine(NewDiscardOutput())
	expectNoError(t, e.update([]string{"set", "freq", "880"}))
	snapshot := e.ToJSON()
	other := NewEngine(NewDiscardOutput())
	expectNoError(t, other.update([]string{"apply", string(snapshot)}))
	expectEqual(t, other.state.params.baseFreq, 880.0)

	third := NewEngine(NewDiscardOutput())
	third.ApplyJSON(snapshot)
	expectEqual(t, third.state.params.baseFreq, 880.0)
}

func TestCommandChannel(t *testing.T) {
	e := NewEngine(NewDiscardOutput())
	e.CommandCh <- []string{"set", "wave", "pulse"}
	deadline := time.Now().Add(time.Second)
	for {
		if strings.Contains(string(e.ToJSON()), `"wave":"pulse"`) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("command was not applied in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSetCVValue(t *testing.T) {
	e := NewEngine(NewDiscardOutput())
	e.SetCVValue(2, 0.75)
	expectEqual(t, e.state.params.cv[2].value, 0.75)
	e.SetCVValue(2, 1.5)
	expectEqual(t, e.state.params.cv[2].value, 1.0)
	e.SetCVValue(-1, 0.5)
	e.SetCVValue(numCVChannels, 0.5)
	expectEqual(t, e.state.params.cv[2].value, 1.0)
}

func TestTickWritesClampedFrames(t *testing.T) {
	sink := &captureSink{}
	e := NewEngine(sink)
	expectNoError(t, e.update([]string{"scale", "pentatonic"})) // amplitudes sum well over 1
	expectNoError(t, e.update([]string{"set", "wave", "pulse"}))
	for i := 0; i < 10; i++ {
		e.tick()
	}
	expectEqual(t, sink.count(), 10)
	for _, f := range sink.frames {
		if f.Mono < -1 || f.Mono > 1 || f.Left < -1 || f.Left > 1 || f.Right < -1 || f.Right > 1 {
			t.Fatalf("expected clamped output, got %+v", f)
		}
	}
	expectEqual(t, sink.frames[0].Mono, 1.0) // pulse high, seven ratios sum past the rail
	ticks, _ := e.Stats()
	expectEqual(t, ticks, int64(10))
	expectEqual(t, e.Frame(), sink.frames[9])
}

// Ticks must never observe a half-applied update: amplitudes are always
// exactly one scale's ratios, never a mixture of two.
func TestTickSeesConsistentSnapshots(t *testing.T) {
	e := NewEngine(NewDiscardOutput())
	expectNoError(t, e.update([]string{"scale", "major"}))
	major := scaleRatios(scaleMajor)
	pentatonic := scaleRatios(scalePentatonic)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			expectNoError(t, e.update([]string{"scale", "pentatonic"}))
			expectNoError(t, e.update([]string{"scale", "major"}))
			e.SetCVValue(0, float64(i)/500)
			e.GetFFT()
			e.Frame()
		}
	}()
	for i := 0; i < 5000; i++ {
		e.tick()
		var got [numHarmonics]float64
		for j := range got {
			got[j] = e.snapshot.harmonics[j].amplitude
		}
		if got != major && got != pentatonic {
			t.Fatalf("tick %d observed a torn amplitude set: %v", i, got)
		}
	}
	<-done
}

func TestMissedTickCounting(t *testing.T) {
	base := time.Now()
	expectEqual(t, missedTicks(base, base.Add(tickPeriod)), int64(0))
	expectEqual(t, missedTicks(base, base.Add(tickPeriod/2)), int64(0))
	expectEqual(t, missedTicks(base, base.Add(tickPeriod*3)), int64(2))
	expectEqual(t, missedTicks(base, base.Add(tickPeriod*5/2)), int64(1))
}

func TestStartStopsOnCancel(t *testing.T) {
	sink := &captureSink{}
	e := NewEngine(sink)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() {
		errCh <- e.Start(ctx)
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()
	expectNoError(t, <-errCh)
	if n := sink.count(); n < 10 {
		t.Errorf("expected the tick loop to produce frames, got %v", n)
	}
}

func TestGetFFTFindsTheFundamental(t *testing.T) {
	e := NewEngine(NewDiscardOutput())
	expectNoError(t, e.update([]string{"set", "freq", "125"})) // bin 32 of 256 at 1kHz
	for i := 0; i < fftSize; i++ {
		e.tick()
	}
	result := e.GetFFT()
	expectEqual(t, len(result), fftSize/2)
	peak := 0
	for i, v := range result {
		if v > result[peak] {
			peak = i
		}
	}
	expectEqual(t, peak, 32)
	if math.Abs(result[32]-0.5) > 0.01 {
		t.Errorf("expected a windowed peak near 0.5, got %v", result[32])
	}
}

func TestEngineClose(t *testing.T) {
	e := NewEngine(NewDiscardOutput())
	expectNoError(t, e.update([]string{"set", "freq", "220"}))
	expectNoError(t, e.Close())
}

func TestBenchmark(t *testing.T) {
	times := 10000
	e := NewEngine(NewDiscardOutput())
	expectNoError(t, e.update([]string{"scale", "major"}))
	expectNoError(t, e.update([]string{"set", "cv", "0", "mode", "exponential-fm"}))
	expectNoError(t, e.update([]string{"set", "matrix", "0", "1", "0.5"}))
	e.tick()
	start := now()
	for n := 0; n < times; n++ {
		e.tick()
	}
	end := now()
	averageProcessTime := (end - start) / float64(times) * 1000
	fmt.Printf("average tick time: %.4fms\n", averageProcessTime)
}
