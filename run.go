package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"go.aimuz.me/commentator/activity"
	"go.aimuz.me/commentator/internal/app"
)

var (
	runSettings   []string
	runDevice     string
	runSessionURL string
	runOutputDir  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a commentary session and read commands from stdin",
	Long: `Start a commentary session against the token server and the realtime
service, then read commands from stdin. Type "help" for the list.`,
	Example: `  commentator run --set style=Roast --set agents=2
  commentator run --device mic.raw --set url=https://example.com/video`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayVar(&runSettings, "set", nil, "commentary setting as key=value (repeatable)")
	runCmd.Flags().StringVar(&runDevice, "device", "", "raw s16le PCM file or FIFO used as the microphone")
	runCmd.Flags().StringVar(&runSessionURL, "session-url", "", "token server endpoint")
	runCmd.Flags().StringVar(&runOutputDir, "out-dir", "", "directory for finished recordings")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runDevice != "" {
		cfg.Audio.Device = runDevice
	}
	if runSessionURL != "" {
		cfg.Realtime.SessionURL = runSessionURL
	}
	if runOutputDir != "" {
		cfg.Recording.OutputDir = runOutputDir
	}
	for _, arg := range runSettings {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("invalid setting %q, want key=value", arg)
		}
		if err := cfg.Set(key, value); err != nil {
			return err
		}
	}
	// Commands arrive on stdin, so it cannot double as the microphone.
	if cfg.Audio.Device == "-" {
		return errors.New(`audio device "-" conflicts with the command console; use a file or FIFO`)
	}
	setupLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exporter, err := app.NewExporter(ctx, cfg.Recording)
	if err != nil {
		return err
	}

	out := &syncWriter{w: cmd.OutOrStdout()}
	svc := app.New(cfg, app.Options{
		Exporter: exporter,
		Emit:     printEvents(out),
	})

	slog.Info("starting commentary", "version", version, "session_url", cfg.Realtime.SessionURL)
	if err := svc.GenerateCommentary(ctx); err != nil {
		slog.Error("generate commentary", "error", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := readLines(cmd.InOrStdin())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		c := &console{svc: svc, out: out}
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if c.exec(gctx, line) {
					return nil
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, done := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer done()
		svc.Shutdown(shutdownCtx)
		return nil
	})
	return g.Wait()
}

// readLines delivers stdin lines until EOF. The reader goroutine is left
// blocked in Read if the program exits first.
func readLines(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

// printEvents renders service events on out.
func printEvents(out io.Writer) app.Emitter {
	return func(name string, data any) {
		switch name {
		case app.EventLogEntry:
			if e, ok := data.(activity.Entry); ok {
				fmt.Fprintf(out, "[%s] %s\n", e.Time.Format(time.TimeOnly), e.Text)
			}
		case app.EventSubtitles:
			if lines, ok := data.([]string); ok && len(lines) > 0 {
				fmt.Fprintf(out, "» %s\n", lines[len(lines)-1])
			}
		}
	}
}

// syncWriter serializes writes from event callbacks and the console.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
