// Package cli implements the pptxctl commands.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pptxd/pkg/bus"
	"pptxd/pkg/config"
	"pptxd/pkg/deck"
	"pptxd/pkg/pptx"
	"pptxd/pkg/telemetry"
	"pptxd/services/builder"
)

// NewRootCommand returns the pptxctl command tree writing to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "pptxctl",
		Short:         "Build, publish and fetch slide decks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)

	cmd.AddCommand(newBuildCommand())
	cmd.AddCommand(newPublishCommand())
	cmd.AddCommand(newFetchCommand())
	cmd.AddCommand(newSweepCommand())
	cmd.AddCommand(newWatchCommand())
	cmd.AddCommand(newInspectCommand())
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openRuntime loads configuration and logs to stderr so stdout stays
// machine-readable.
func openRuntime(cmd *cobra.Command, withStore bool) (*builder.Runtime, error) {
	ctx := commandContext(cmd)
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	logger := telemetry.NewLogger("pptxctl", cfg.LogFormat, cmd.ErrOrStderr()).Level(zerolog.WarnLevel)
	return builder.Open(ctx, cfg, logger, withStore)
}

// readDeck picks the decoder by extension and sniffs anything else.
func readDeck(path string) (*deck.Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return deck.Decode(bytes.NewReader(data))
	case ".yaml", ".yml":
		return deck.DecodeYAML(bytes.NewReader(data))
	default:
		return deck.Parse(data)
	}
}

func newBuildCommand() *cobra.Command {
	var deckFile, output string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a deck file into a .pptx without storing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readDeck(deckFile)
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd, false)
			if err != nil {
				return err
			}
			defer rt.Close()

			out, err := rt.Builder.Build(commandContext(cmd), d)
			if err != nil {
				return err
			}
			if output == "" {
				output = out.Filename
			}
			if err := os.WriteFile(output, out.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			w := cmd.OutOrStdout()
			for _, n := range out.Notices {
				fmt.Fprintf(w, "notice: %s\n", n)
			}
			for _, diag := range out.Diagnostics {
				fmt.Fprintf(w, "slide %d: %s\n", diag.Slide, builder.NoteFor(diag.URL, diag.Reason))
			}
			fmt.Fprintf(w, "wrote %s (%d slides, %d bytes)\n", output, out.Slides, len(out.Data))
			return nil
		},
	}

	cmd.Flags().StringVar(&deckFile, "deck", "", "Deck file (JSON or YAML)")
	cmd.Flags().StringVar(&output, "out", "", "Destination .pptx (defaults to the deck's filename)")
	_ = cmd.MarkFlagRequired("deck")
	return cmd
}

func newPublishCommand() *cobra.Command {
	var deckFile string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Build a deck and store it for time-limited download",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readDeck(deckFile)
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			rec, err := rt.Builder.Publish(commandContext(cmd), d)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}

	cmd.Flags().StringVar(&deckFile, "deck", "", "Deck file (JSON or YAML)")
	_ = cmd.MarkFlagRequired("deck")
	return cmd
}

func newFetchCommand() *cobra.Command {
	var id, output string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download a stored artifact by id",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			data, rec, err := rt.Store.Get(commandContext(cmd), id)
			if err != nil {
				return err
			}
			if output == "" {
				output = rec.Filename
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes, expires %s)\n", output, len(data), rec.ExpiresAt.Format("2006-01-02 15:04 MST"))
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Artifact id")
	cmd.Flags().StringVar(&output, "out", "", "Destination file (defaults to the stored filename)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired artifacts once",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(cmd, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			n, err := rt.Store.Sweep(commandContext(cmd))
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired artifacts\n", n)
			return err
		},
	}
}

func newWatchCommand() *cobra.Command {
	var durable string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print artifact lifecycle events from NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := config.Load(ctx)
			if err != nil {
				return err
			}
			if cfg.NATSURL == "" {
				return errors.New("NATS_URL is not set")
			}
			b, err := bus.New(cfg.NATSURL)
			if err != nil {
				return err
			}
			defer b.Close()

			w := cmd.OutOrStdout()
			sub, err := b.Subscribe(ctx, bus.StreamSubject, durable, func(_ context.Context, subject string, data []byte) error {
				_, err := fmt.Fprintf(w, "%s %s\n", subject, data)
				return err
			})
			if err != nil {
				return err
			}
			defer sub.Close()

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&durable, "durable", "", "Durable consumer name; empty follows new events only")
	return cmd
}

func newInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.pptx>",
		Short: "Print the text and notes of each slide in a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			slides, err := pptx.Inspect(data)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for i, s := range slides {
				fmt.Fprintf(w, "slide %d: %s\n", i+1, strings.ReplaceAll(s.Text, "\n", " | "))
				if s.Notes != "" {
					fmt.Fprintf(w, "  notes: %s\n", s.Notes)
				}
			}
			return nil
		},
	}
}
