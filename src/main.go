package main

import (
	"bufio"
	"context"
	"flag"
	"io"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jinjor/harmonic-osc/src/audio"
	"golang.org/x/sync/errgroup"
)

const reportInterval = 100 * time.Millisecond

var sockFileName = flag.String("sock", "/tmp/harmonic-osc.sock", "unix socket for the control surface")
var silent = flag.Bool("silent", false, "run without a playback device")
var midiIn = flag.Bool("midi", true, "map MIDI control changes onto the CV channels")

func main() {
	flag.Parse()
	log.SetFlags(log.Lshortfile)
	log.Printf("NumCPU: %v\n", runtime.NumCPU())

	ctx := context.Background()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sink audio.Sink
	var output *audio.OtoOutput
	if *silent {
		sink = audio.NewDiscardOutput()
	} else {
		var err error
		output, err = audio.NewOtoOutput()
		if err != nil {
			log.Fatalf("error: %v\n", err)
		}
		sink = output
	}
	engine := audio.NewEngine(sink)
	defer engine.Close()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, os.Kill, syscall.SIGTERM)
	defer func() {
		signal.Stop(signalCh)
		cancel()
	}()
	go func() {
		sig := <-signalCh
		log.Printf("Caught signal %s: shutting down...\n", sig)
		cancel()
	}()
	err := withIPCConnection(ctx, func(conn net.Conn) error {
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return engine.Start(ctx)
		})
		if output != nil {
			g.Go(func() error {
				return output.Start(ctx)
			})
		}
		if *midiIn {
			g.Go(func() error {
				return receiveCV(ctx, engine)
			})
		}
		g.Go(func() error {
			return receiveCommands(ctx, conn, engine.CommandCh)
		})
		g.Go(func() error {
			return sendReports(ctx, conn, engine, output)
		})
		return g.Wait()
	})
	if err != nil {
		log.Fatalf("error: %v\n", err)
	}
	log.Println("main() ended.")
}

func withIPCConnection(ctx context.Context, f func(net.Conn) error) error {
	os.Remove(*sockFileName)
	listener, err := new(net.ListenConfig).Listen(ctx, "unix", *sockFileName)
	if err != nil {
		return err
	}
	defer func() {
		log.Println("Closing IPC...")
		err := listener.Close()
		if err != nil {
			log.Printf("error while closing listener: %v", err)
		}
		os.Remove(*sockFileName)
	}()
	log.Printf("start listening...\n")
	conn, err := listener.Accept()
	if err != nil {
		return err
	}
	defer func() {
		err := conn.Close()
		if err != nil {
			log.Printf("error while closing connection: %v", err)
		}
	}()
	return f(conn)
}

func receiveCommands(ctx context.Context, conn net.Conn, commandCh chan<- []string) error {
	reader := bufio.NewReader(conn)
	var line []byte
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("Connection interrupted")
			break loop
		default:
		}
		next, isPrefix, err := reader.ReadLine()
		if err == io.EOF {
			break loop
		}
		if err != nil {
			return err
		}
		line = append(line, next...)
		if isPrefix {
			continue
		}
		command, err := parseCommand(string(line))
		if err != nil {
			return err
		}
		commandCh <- command
		log.Printf("received: %s\n", string(line))
		line = []byte{}
	}
	log.Println("receiveCommands() ended.")
	return nil
}

func parseCommand(line string) ([]string, error) {
	lineStr := strings.Split(line, " ")
	for i, item := range lineStr {
		escaped, err := url.QueryUnescape(item)
		if err != nil {
			return nil, err
		}
		lineStr[i] = escaped
	}
	return lineStr, nil
}

func receiveCV(ctx context.Context, engine *audio.Engine) error {
	ch := audio.ListenToCVIn(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("receiveCV() interrupted")
			return nil
		case e, ok := <-ch:
			if !ok {
				log.Println("receiveCV() ended.")
				return nil
			}
			engine.SetCVValue(e.Channel, e.Value)
		}
	}
}

func sendReports(ctx context.Context, conn net.Conn, engine *audio.Engine, output *audio.OtoOutput) error {
	t := time.NewTicker(reportInterval)
	defer t.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("sendReports() interrupted")
			break loop
		case <-t.C:
			frame := engine.Frame()
			lines := []string{
				frameReport(frame),
				dacReport(audio.ToDAC(frame)),
				fftReport(engine.GetFFT()),
				statsReport(engine, output),
			}
			if engine.Changes.Has("data") {
				engine.Changes.Delete("data")
				lines = append(lines, "state "+url.QueryEscape(string(engine.ToJSON())))
			}
			select {
			case <-ctx.Done():
				log.Println("sendReports() interrupted")
				break loop
			default:
				if _, err := conn.Write([]byte(strings.Join(lines, "\n") + "\n")); err != nil {
					return err
				}
			}
		}
	}
	log.Println("sendReports() ended.")
	return nil
}

func frameReport(frame audio.SampleFrame) string {
	s := "frame"
	s += " " + strconv.FormatFloat(frame.Left, 'f', 6, 64)
	s += " " + strconv.FormatFloat(frame.Right, 'f', 6, 64)
	s += " " + strconv.FormatFloat(frame.Mono, 'f', 6, 64)
	for _, value := range frame.Harmonics {
		s += " " + strconv.FormatFloat(value, 'f', 6, 64)
	}
	return s
}

func dacReport(d audio.DACFrame) string {
	s := "dac"
	s += " " + strconv.FormatUint(uint64(d.Left), 10)
	s += " " + strconv.FormatUint(uint64(d.Right), 10)
	s += " " + strconv.FormatUint(uint64(d.Mono), 10)
	for _, value := range d.Harmonics {
		s += " " + strconv.FormatUint(uint64(value), 10)
	}
	return s
}

func fftReport(result []float64) string {
	s := "fft"
	for _, value := range result {
		s += " " + strconv.FormatFloat(value, 'f', 6, 64)
	}
	return s
}

func statsReport(engine *audio.Engine, output *audio.OtoOutput) string {
	ticks, dropped := engine.Stats()
	var held, droppedFrames int64
	if output != nil {
		held, droppedFrames = output.Stats()
	}
	return "stats " + strconv.FormatInt(ticks, 10) +
		" " + strconv.FormatInt(dropped, 10) +
		" " + strconv.FormatInt(held, 10) +
		" " + strconv.FormatInt(droppedFrames, 10)
}
