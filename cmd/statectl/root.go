package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/convostate/bridge"
	"github.com/tailored-agentic-units/convostate/observability"
	"github.com/tailored-agentic-units/convostate/store"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigFile string
	Driver     string // overrides config
	Path       string // overrides config
	Codec      string // overrides config
	Verbose    bool
}

// conversationOptions identify the conversation a command acts on.
type conversationOptions struct {
	*rootOptions
	Channel      string
	Conversation string
	Engine       bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "statectl",
		Short: "Inspect and replace stored conversation state",
		Long: `statectl reads and writes conversation documents in a state store.

Domain state is stored under the configured property (CONVERSATION_STATE by
default) and engine state under WOLF_STATE. Writes replace the whole value.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "path to config file (JSON or YAML)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "store driver: memory, file or sqlite (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Path, "path", "", "store path (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Codec, "codec", "", "document codec: json, cbor or proto (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging to stderr")

	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newShowCommand(opts))
	cmd.AddCommand(newReplaceCommand(opts))
	cmd.AddCommand(newClearCommand(opts))

	return cmd
}

// open builds a bridge from the config file and flag overrides. Events are
// logged to errOut and also delivered to the configured observer. The "slog"
// observer is served by the errOut logger itself.
func (o *rootOptions) open(errOut io.Writer) (*bridge.Bridge, error) {
	cfg := bridge.DefaultConfig()
	if o.ConfigFile != "" {
		loaded, err := bridge.LoadConfig(o.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	cfg.Merge(&bridge.Config{
		Store: store.Config{Driver: o.Driver, Path: o.Path},
		Codec: o.Codec,
	})

	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	observers := []observability.Observer{observability.NewSlogObserver(logger)}
	if cfg.Observer != "" && cfg.Observer != "slog" {
		obs, err := observability.GetObserver(cfg.Observer)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		observers = append(observers, obs)
	}

	return bridge.New(&cfg, bridge.WithObserver(observability.NewMultiObserver(observers...)))
}

func addConversationFlags(cmd *cobra.Command, opts *conversationOptions) {
	cmd.Flags().StringVar(&opts.Channel, "channel", "", "channel id (required)")
	_ = cmd.MarkFlagRequired("channel")
	cmd.Flags().StringVar(&opts.Conversation, "conversation", "", "conversation id (required)")
	_ = cmd.MarkFlagRequired("conversation")
}
