package audio

import (
	"context"
	"log"

	"gitlab.com/gomidi/rtmididrv"
)

// MIDI control changes stand in for the module's analog CV jacks:
// CC 70..73 drive CV channels 0..3.
const ccCVBase = 70

// CVEvent is one normalized reading for one CV channel.
type CVEvent struct {
	Channel int
	Value   float64 // 0-1
}

func decodeCVEvent(data []byte) (CVEvent, bool) {
	if len(data) < 3 || data[0]>>4 != 0xb {
		return CVEvent{}, false
	}
	cc := int(data[1])
	if cc < ccCVBase || cc >= ccCVBase+numCVChannels {
		return CVEvent{}, false
	}
	return CVEvent{
		Channel: cc - ccCVBase,
		Value:   float64(data[2]) / 127.0,
	}, true
}

// ListenToCVIn opens the first MIDI IN port and streams the control changes
// mapped to CV channels. The channel is closed when ctx is done or no port
// could be opened.
func ListenToCVIn(ctx context.Context) <-chan CVEvent {
	ch := make(chan CVEvent, 256)
	go func() {
		defer close(ch)
		drv, err := rtmididrv.New()
		if err != nil {
			log.Printf("failed to initialize MIDI driver: %v\n", err)
			return
		}
		defer func() {
			err := drv.Close()
			if err != nil {
				log.Printf("failed to close MIDI driver: %v\n", err)
			}
		}()
		ins, err := drv.Ins()
		if err != nil {
			log.Printf("failed to get MIDI IN: %v\n", err)
			return
		}
		if len(ins) == 0 {
			log.Println("WARN: MIDI IN not found")
			return
		}
		in := ins[0]
		if err := in.Open(); err != nil {
			log.Printf("failed to open MIDI IN: %v\n", err)
			return
		}
		log.Println("opened " + in.String())
		defer func() {
			err := in.Close()
			if err != nil {
				log.Printf("failed to close MIDI IN: %v\n", err)
			}
		}()
		log.Println("start listening MIDI IN...")
		if err := in.SetListener(func(data []byte, deltaMicroseconds int64) {
			e, ok := decodeCVEvent(data)
			if !ok {
				return
			}
			select {
			case ch <- e:
			default:
				// a stale reading is fine, drop instead of blocking the driver
			}
		}); err != nil {
			log.Println("failed to set listener: " + err.Error())
		}
		defer func() {
			log.Println("stop listening MIDI IN...")
			err := in.StopListening()
			if err != nil {
				log.Printf("failed to stop listening: %v\n", err)
			}
		}()
		<-ctx.Done()
	}()
	return ch
}
