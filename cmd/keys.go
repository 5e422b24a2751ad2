package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Rorical/RoriAgent/internal/capture"
	"github.com/Rorical/RoriAgent/internal/clock"
	"github.com/Rorical/RoriAgent/internal/config"
	"github.com/Rorical/RoriAgent/internal/logging"
	"github.com/Rorical/RoriAgent/internal/terminal"
)

var recordPath string

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Show how key presses are decoded",
	Long:  `Put the terminal in raw mode and print every decoded key event until Ctrl+C. With --record the raw input is saved for replay.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := logging.New(cfg.Logging.File, cfg.Logging.Level)
		if err != nil {
			return err
		}
		defer logger.Sync()

		var rec *capture.Recorder
		if recordPath != "" {
			f, err := os.Create(recordPath)
			if err != nil {
				return fmt.Errorf("failed to create recording: %w", err)
			}
			defer f.Close()
			if rec, err = capture.NewRecorder(f, clock.Real()); err != nil {
				return err
			}
			defer rec.Close()
		}

		term := terminal.NewTerminal(os.Stdin, os.Stdout, terminal.TerminalOptions{
			Kitty:  cfg.Terminal.KittyKeyboard,
			Logger: logger,
		})
		if err := term.Setup(); err != nil {
			return err
		}
		defer term.Restore()

		reader, err := terminal.NewReader(os.Stdin, logger)
		if err != nil {
			return err
		}
		defer reader.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		out := cmd.OutOrStdout()
		fmt.Fprint(out, "Press keys to see how they decode. Ctrl+C quits.\r\n")
		dec := terminal.NewDecoder(decoderOptions(cfg, logger))
		err = dec.Run(ctx, recordChunks(ctx, reader.Start(ctx), rec, logger), func(ev terminal.KeyEvent) {
			printKey(out, ev)
			if ev.Ctrl && ev.Name == "c" {
				cancel()
			}
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// recordChunks passes chunks through, saving each to rec when set.
func recordChunks(ctx context.Context, chunks <-chan []byte, rec *capture.Recorder, logger *zap.Logger) <-chan []byte {
	if rec == nil {
		return chunks
	}
	out := make(chan []byte)
	go func() {
		defer close(out)
		for chunk := range chunks {
			if err := rec.Record(chunk); err != nil {
				logger.Warn("failed to record input", zap.Error(err))
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func decoderOptions(cfg *config.Config, logger *zap.Logger) terminal.Options {
	return terminal.Options{
		MaxSequenceLen:       cfg.Terminal.MaxSequenceLen,
		BackslashEnterWindow: cfg.BackslashEnterWindow(),
		EscapeTimeout:        cfg.EscapeTimeout(),
		OptionAsMeta:         cfg.Terminal.OptionAsMeta,
		Logger:               logger,
	}
}

// printKey writes one event per line. Raw mode needs the explicit \r.
func printKey(w io.Writer, ev terminal.KeyEvent) {
	fmt.Fprintf(w, "%-24s %q\r\n", ev.String(), ev.Sequence)
}

var replayCmd = &cobra.Command{
	Use:   "replay [file]",
	Short: "Decode a recording made with keys --record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		header, frames, err := capture.Read(f)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "session %s, %d reads\n", header.SessionID, len(frames))
		for _, ev := range capture.Replay(frames, decoderOptions(cfg, nil)) {
			fmt.Fprintf(out, "%-24s %q\n", ev.String(), ev.Sequence)
		}
		return nil
	},
}

func init() {
	keysCmd.Flags().StringVar(&recordPath, "record", "", "save raw input to this file")
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(replayCmd)
}
