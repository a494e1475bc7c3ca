package audio

import (
	"context"
	"io"
	"log"

	"github.com/hajimehoshi/oto"
)

// Sink consumes one clamped frame per tick. Write must not block.
type Sink interface {
	Write(f SampleFrame)
	Close() error
}

const (
	deviceRate      = 48000
	channelNum      = 2
	bitDepthInBytes = 2
)
const bytesPerSample = bitDepthInBytes * channelNum
const bufferSizeInBytes = 4096

// holdSamples is how many device samples one tick frame covers. Holding the
// frame flat models the converter output of the hardware.
const holdSamples = deviceRate / sampleRate
const ringCapacity = 64 // frames, 64ms of slack between tick loop and device

// OtoOutput plays the stereo mix on the default audio device. The tick loop
// pushes frames into a ring; the device pulls at its own rate and each frame
// is held for holdSamples samples.
type OtoOutput struct {
	ctx        context.Context
	otoContext *oto.Context
	ring       *frameRing
	current    SampleFrame
	remaining  int
}

var _ io.Reader = (*OtoOutput)(nil)
var _ Sink = (*OtoOutput)(nil)

// NewOtoOutput ...
func NewOtoOutput() (*OtoOutput, error) {
	otoContext, err := oto.NewContext(deviceRate, channelNum, bitDepthInBytes, bufferSizeInBytes)
	if err != nil {
		return nil, err
	}
	return &OtoOutput{
		ctx:        context.Background(),
		otoContext: otoContext,
		ring:       newFrameRing(ringCapacity),
	}, nil
}

// Write ...
func (o *OtoOutput) Write(f SampleFrame) {
	o.ring.push(f)
}

func (o *OtoOutput) Read(buf []byte) (int, error) {
	select {
	case <-o.ctx.Done():
		log.Println("Read() interrupted.")
		return 0, io.EOF
	default:
		samples := len(buf) / bytesPerSample
		for i := 0; i < samples; i++ {
			if o.remaining == 0 {
				o.current = o.ring.pop()
				o.remaining = holdSamples
			}
			writeSample(buf, i, 0, o.current.Left)
			writeSample(buf, i, 1, o.current.Right)
			o.remaining--
		}
		return samples * bytesPerSample, nil
	}
}

func writeSample(buf []byte, i int, ch int, value float64) {
	switch bitDepthInBytes {
	case 1:
		const max = 127
		b := int(value * max)
		buf[bytesPerSample*i+ch] = byte(b + 128)
	case 2:
		const max = 32767
		b := int16(value * max)
		buf[bytesPerSample*i+2*ch] = byte(b)
		buf[bytesPerSample*i+2*ch+1] = byte(b >> 8)
	}
}

// Start ...
func (o *OtoOutput) Start(ctx context.Context) error {
	p := o.otoContext.NewPlayer()
	defer func() {
		if err := p.Close(); err != nil {
			log.Printf("error: %v", err)
		}
	}()
	o.ctx = ctx

	// block until cancel() called
	if _, err := io.CopyBuffer(p, o, make([]byte, bufferSizeInBytes)); err != nil {
		return err
	}
	log.Println("Start() ended.")
	return nil
}

// Stats ...
func (o *OtoOutput) Stats() (held int64, dropped int64) {
	return o.ring.stats()
}

// Close ...
func (o *OtoOutput) Close() error {
	return o.otoContext.Close()
}

// ----- Discard ----- //

type discardSink struct{}

// NewDiscardOutput returns a Sink for running without a playback device.
func NewDiscardOutput() Sink {
	return discardSink{}
}

func (discardSink) Write(f SampleFrame) {}
func (discardSink) Close() error        { return nil }
