// Command concierge-probe drives headless conversation turns against the
// realtime service and reports turn latency.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ent0n29/concierge/internal/app"
	"github.com/ent0n29/concierge/internal/config"
	"github.com/ent0n29/concierge/internal/media"
	"github.com/ent0n29/concierge/internal/realtime"
	"github.com/ent0n29/concierge/internal/session"
	"github.com/ent0n29/concierge/internal/transcript"
)

type options struct {
	serverURL      string
	transport      string
	turns          int
	texts          []string
	inputWAV       string
	recordWAV      string
	connectTimeout time.Duration
	turnTimeout    time.Duration
	settle         time.Duration
	verbose        bool
}

var defaultUtterances = []string{
	"I'm looking for running shoes under 250 dollars.",
	"Do you have anything from Nike?",
	"What fitness watches do you carry?",
}

func main() {
	_ = godotenv.Load()
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "concierge-probe:", err)
		os.Exit(2)
	}
	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "concierge-probe:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var (
		opts      options
		textsRaw  string
		fs        = flag.NewFlagSet("concierge-probe", flag.ContinueOnError)
		turnMS    int
		settleMS  int
		connectMS int
	)
	fs.StringVar(&opts.serverURL, "server-url", "", "companion server URL (default CONCIERGE_SERVER_URL)")
	fs.StringVar(&opts.transport, "transport", "websocket", "realtime transport: websocket or webrtc")
	fs.IntVar(&opts.turns, "turns", 3, "number of typed turns")
	fs.StringVar(&textsRaw, "texts", "", "utterances separated by '|' (optional)")
	fs.StringVar(&opts.inputWAV, "input-wav", "", "replay this 16-bit WAV as the microphone instead of typed turns")
	fs.StringVar(&opts.recordWAV, "record-wav", "", "write assistant audio to this WAV file")
	fs.IntVar(&connectMS, "connect-timeout-ms", 20000, "timeout waiting for the control channel to open")
	fs.IntVar(&turnMS, "turn-timeout-ms", 20000, "timeout waiting for the first assistant text per turn")
	fs.IntVar(&settleMS, "settle-ms", 1500, "quiet period that ends a turn")
	fs.BoolVar(&opts.verbose, "verbose", true, "print transcript lines")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.serverURL = strings.TrimRight(strings.TrimSpace(opts.serverURL), "/")
	opts.transport = strings.ToLower(strings.TrimSpace(opts.transport))
	if opts.transport != "websocket" && opts.transport != "webrtc" {
		return options{}, fmt.Errorf("transport must be websocket or webrtc, got %q", opts.transport)
	}
	if opts.turns <= 0 {
		return options{}, fmt.Errorf("turns must be > 0")
	}
	if turnMS < 1000 {
		turnMS = 1000
	}
	if settleMS < 100 {
		settleMS = 100
	}
	if connectMS < 1000 {
		connectMS = 1000
	}
	opts.turnTimeout = time.Duration(turnMS) * time.Millisecond
	opts.settle = time.Duration(settleMS) * time.Millisecond
	opts.connectTimeout = time.Duration(connectMS) * time.Millisecond

	opts.texts = splitTexts(textsRaw)
	if len(opts.texts) == 0 {
		if strings.TrimSpace(textsRaw) != "" {
			return options{}, fmt.Errorf("texts produced no non-empty utterances")
		}
		opts.texts = append([]string(nil), defaultUtterances...)
	}
	return opts, nil
}

func splitTexts(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, "|") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func run(opts options, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	cfg.RealtimeTransport = opts.transport
	cfg.AudioDevice = "none"
	cfg.MetricsNamespace = "concierge_probe"
	if opts.serverURL != "" {
		cfg.ServerURL = opts.serverURL
	}
	if opts.inputWAV != "" {
		cfg.RealtimeTurnDetection = string(session.ModeServerVAD)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	recorder := media.NewRecordingSpeaker(24000)
	clientOpts := []app.ClientOption{app.WithSpeaker(recorder)}
	if opts.inputWAV != "" {
		mic, err := media.NewWAVMicrophone(opts.inputWAV)
		if err != nil {
			return fmt.Errorf("load input wav: %w", err)
		}
		clientOpts = append(clientOpts, app.WithMicrophone(mic))
	}

	built, err := app.BuildClient(cfg, logger, clientOpts...)
	if err != nil {
		return err
	}
	defer built.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = built.Session.Run(ctx) }()
	updates := built.Feed.Updates()

	start := time.Now()
	if err := built.Session.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	snap, err := waitFor(updates, opts.connectTimeout, func(s session.Snapshot) bool {
		return s.State == realtime.StateOpen
	})
	if err != nil {
		return fmt.Errorf("await channel open: %w", err)
	}
	fmt.Fprintf(out, "probe: connected via %s in %s\n", opts.transport, time.Since(start).Round(time.Millisecond))

	if opts.inputWAV != "" {
		if err := voiceTurn(updates, snap, opts, out); err != nil {
			return err
		}
	} else {
		for i := range opts.turns {
			text := opts.texts[i%len(opts.texts)]
			if err := typedTurn(built.Session, updates, &snap, i+1, text, opts, out); err != nil {
				return err
			}
		}
	}

	built.Session.Disconnect()
	if opts.recordWAV != "" {
		samples, rate := recorder.Samples()
		if err := media.WriteWAVFile(opts.recordWAV, samples, rate); err != nil {
			return fmt.Errorf("write record wav: %w", err)
		}
		fmt.Fprintf(out, "probe: wrote %d samples to %s\n", len(samples), opts.recordWAV)
	}

	summary, _ := json.MarshalIndent(built.Metrics.LatencySnapshot(), "", "  ")
	fmt.Fprintf(out, "probe: latency %s\n", summary)
	return nil
}

func typedTurn(s *session.Session, updates <-chan session.Snapshot, snap *session.Snapshot, n int, text string, opts options, out io.Writer) error {
	before := assistantCount(*snap)
	fmt.Fprintf(out, "probe: turn %d/%d user=%q\n", n, opts.turns, text)
	t0 := time.Now()
	s.SendText(text)

	next, err := waitFor(updates, opts.turnTimeout, func(s session.Snapshot) bool {
		return assistantCount(s) > before
	})
	if err != nil {
		return fmt.Errorf("turn %d await assistant: %w", n, err)
	}
	fmt.Fprintf(out, "probe: turn %d first assistant text after %s\n", n, time.Since(t0).Round(time.Millisecond))

	*snap = settle(updates, next, opts.settle)
	if opts.verbose {
		printLast(out, *snap)
	}
	return nil
}

func voiceTurn(updates <-chan session.Snapshot, snap session.Snapshot, opts options, out io.Writer) error {
	before := assistantCount(snap)
	t0 := time.Now()
	next, err := waitFor(updates, opts.turnTimeout, func(s session.Snapshot) bool {
		return assistantCount(s) > before
	})
	if err != nil {
		return fmt.Errorf("voice turn await assistant: %w", err)
	}
	fmt.Fprintf(out, "probe: voice turn first assistant text after %s\n", time.Since(t0).Round(time.Millisecond))
	final := settle(updates, next, opts.settle)
	if opts.verbose {
		for _, e := range final.Entries {
			fmt.Fprintf(out, "probe: %s: %s\n", e.Role, e.Text)
		}
	}
	return nil
}

var errTimeout = errors.New("timed out")

// waitFor returns the first snapshot satisfying ok.
func waitFor(updates <-chan session.Snapshot, timeout time.Duration, ok func(session.Snapshot) bool) (session.Snapshot, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case s := <-updates:
			if ok(s) {
				return s, nil
			}
		case <-timer.C:
			return session.Snapshot{}, fmt.Errorf("%w after %s", errTimeout, timeout)
		}
	}
}

// settle consumes snapshots until none arrives for quiet.
func settle(updates <-chan session.Snapshot, last session.Snapshot, quiet time.Duration) session.Snapshot {
	timer := time.NewTimer(quiet)
	defer timer.Stop()
	for {
		select {
		case s := <-updates:
			last = s
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(quiet)
		case <-timer.C:
			return last
		}
	}
}

func assistantCount(s session.Snapshot) int {
	n := 0
	for _, e := range s.Entries {
		if e.Role == transcript.RoleAssistant && e.Text != "" {
			n++
		}
	}
	return n
}

func printLast(out io.Writer, s session.Snapshot) {
	for i := len(s.Entries) - 1; i >= 0; i-- {
		if s.Entries[i].Role == transcript.RoleAssistant {
			fmt.Fprintf(out, "probe: assistant=%q\n", s.Entries[i].Text)
			return
		}
	}
}
