package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/activitysync/internal/bus"
	"github.com/roach88/activitysync/internal/compiler"
	"github.com/roach88/activitysync/internal/config"
	"github.com/roach88/activitysync/internal/engine"
	"github.com/roach88/activitysync/internal/store"
	"github.com/roach88/activitysync/internal/transport"
)

// stopGrace is added to the request timeout when waiting for the sign-off poll.
const stopGrace = 5 * time.Second

// maxSignalLine bounds one stdin JSON line.
const maxSignalLine = 1 << 20

// RunOptions holds flags for the run command. Flags override the
// ACTIVITYSYNC_* environment.
type RunOptions struct {
	*RootOptions
	URL      string
	Interval time.Duration
	Timeout  time.Duration
	HTTP2    bool
	Journal  string
}

// inboundSignal is one stdin line.
type inboundSignal struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <descriptors>",
		Short: "Run the sync engine",
		Long: `Start the sync engine against a remote collaboration endpoint.

Signals are read from stdin as JSON lines:
  {"event": "editor.focus", "payload": {"id": "doc-1"}}

Every broadcast (remote activities) is written to stdout as one JSON line.
EOF, SIGINT or SIGTERM stops the engine with a sign-off poll.

Configuration comes from ACTIVITYSYNC_SERVICE_URL, ACTIVITYSYNC_POLL_INTERVAL,
ACTIVITYSYNC_REQUEST_TIMEOUT, ACTIVITYSYNC_HTTP2 and ACTIVITYSYNC_JOURNAL;
flags take precedence.

Examples:
  activitysync run ./descriptors --url https://collab.example.com
  activitysync run editor.cue --url http://localhost:8080 --http2 --journal ./sync.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "", "service base URL")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "poll interval (default 5s)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-request timeout (default 10s)")
	cmd.Flags().BoolVar(&opts.HTTP2, "http2", false, "use HTTP/2 (prior knowledge for http:// URLs)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite journal")

	return cmd
}

// resolveConfig layers explicitly set flags over the environment.
func resolveConfig(opts *RunOptions, cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.ServiceURL = opts.URL
	}
	if flags.Changed("interval") {
		cfg.PollInterval = opts.Interval
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout = opts.Timeout
	}
	if flags.Changed("http2") {
		cfg.HTTP2 = opts.HTTP2
	}
	if flags.Changed("journal") {
		cfg.Journal = opts.Journal
	}
	return cfg, cfg.Validate()
}

func runEngine(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	loadResult, loadErrors := LoadDescriptors(path, LoadModeFailFast)
	if len(loadErrors) > 0 {
		code, message := parseLoadError(loadErrors[0])
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}
	if verrs := compiler.Validate(loadResult.Descriptors); len(verrs) > 0 {
		_ = formatter.Error(verrs[0].Code, verrs[0].Error(), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("descriptor validation failed with %d error(s)", len(verrs)))
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	engineOpts := append(cfg.EngineOptions(), engine.WithLogger(logger))

	if cfg.Journal != "" {
		st, err := store.Open(cfg.Journal)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("opening journal: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer st.Close()

		// Appending to an existing journal continues its sequence.
		last, err := st.LastSeq(context.Background())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		engineOpts = append(engineOpts, engine.WithJournal(st), engine.WithSequence(engine.NewSequenceAt(last)))
	}

	b := bus.NewMemory()
	out := &broadcastWriter{enc: json.NewEncoder(cmd.OutOrStdout()), logger: logger}
	sub := b.Subscribe(engine.BroadcastEvent, out.write)
	defer sub.Unsubscribe()

	eng, err := engine.New(b, transport.BuildClient(cfg.TransportOptions()), cfg.ServiceURL, engineOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}
	if err := eng.Start(loadResult.Descriptors...); err != nil {
		return WrapExitError(ExitCommandError, "failed to start engine", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := pumpSignals(ctx, cmd.InOrStdin(), b, logger); err != nil {
		logger.Error("reading signals", "error", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), max(cfg.RequestTimeout, 0)+stopGrace)
	defer cancel()
	if err := eng.Stop(stopCtx); err != nil {
		return WrapExitError(ExitFailure, "sign-off poll failed", err)
	}
	return nil
}

// pumpSignals publishes stdin JSON lines on the bus until EOF or ctx ends.
// Undecodable lines are logged and skipped.
func pumpSignals(ctx context.Context, in io.Reader, b bus.Bus, logger *slog.Logger) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxSignalLine)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			select {
			case lines <- bytes.Clone(line):
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	n := 0
	for {
		select {
		case <-ctx.Done():
			logger.Info("interrupted, stopping")
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			n++
			var sig inboundSignal
			if err := json.Unmarshal(line, &sig); err != nil {
				logger.Error("undecodable signal line", "line", n, "error", err)
				continue
			}
			if sig.Event == "" {
				logger.Error("signal line without event", "line", n)
				continue
			}
			logger.Debug("publishing signal", "line", n, "event", sig.Event)
			b.Publish(sig.Event, sig.Payload)
		}
	}
}

// broadcastWriter writes each broadcast payload as one JSON line.
type broadcastWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	logger *slog.Logger
}

func (w *broadcastWriter) write(payload any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(payload); err != nil {
		w.logger.Error("writing broadcast", "error", err)
	}
}
