package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/convostate/bridge"
	"github.com/tailored-agentic-units/convostate/property"
	"github.com/tailored-agentic-units/convostate/statelayer"
)

func newListCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored conversation keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rootOpts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer b.Close()

			keys, err := b.Store().List(cmd.Context())
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		},
	}
}

func newShowCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &conversationOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a conversation's domain or engine state as JSON",
		Example: `  statectl show --driver sqlite --path state.db --channel web --conversation 42
  statectl show --config statectl.yaml --channel web --conversation 42 --engine`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var state map[string]any
			err := opts.run(cmd, false, func(ctx context.Context, s statelayer.Storage) error {
				var err error
				state, err = s.Read(ctx)
				return err
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd, state)
		},
	}

	addConversationFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.Engine, "engine", false, "show engine state (WOLF_STATE) instead of domain state")

	return cmd
}

func newReplaceCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &conversationOptions{rootOptions: rootOpts}
	var raw string

	cmd := &cobra.Command{
		Use:   "replace",
		Short: "Replace a conversation's domain or engine state",
		Long: `Replace a conversation's state with a JSON object.

Keys absent from the new object are removed; nothing is merged.`,
		Example: `  statectl replace --channel web --conversation 42 --state '{"alarms":[]}'`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var newState map[string]any
			if err := json.Unmarshal([]byte(raw), &newState); err != nil {
				return fmt.Errorf("invalid --state: %w", err)
			}

			var state map[string]any
			err := opts.run(cmd, true, func(ctx context.Context, s statelayer.Storage) error {
				if err := s.Save(ctx, newState); err != nil {
					return err
				}
				var err error
				state, err = s.Read(ctx)
				return err
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd, state)
		},
	}

	addConversationFlags(cmd, opts)
	cmd.Flags().BoolVar(&opts.Engine, "engine", false, "replace engine state (WOLF_STATE) instead of domain state")
	cmd.Flags().StringVar(&raw, "state", "", "new state as a JSON object (required)")
	_ = cmd.MarkFlagRequired("state")

	return cmd
}

func newClearCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &conversationOptions{rootOptions: rootOpts}
	var name string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete a conversation's stored document or one of its properties",
		Example: `  statectl clear --channel web --conversation 42
  statectl clear --channel web --conversation 42 --property WOLF_STATE`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := opts.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer b.Close()

			turn := property.NewTurn(opts.Channel, opts.Conversation)
			if name == "" {
				return b.Table().Delete(cmd.Context(), turn)
			}

			prop, ok := b.Table().Property(name)
			if !ok {
				return fmt.Errorf("unknown property %q: registered %v", name, b.Table().Properties())
			}
			return b.RunTurn(cmd.Context(), turn, nil, func(ctx context.Context, _ bridge.Bindings) error {
				return prop.Delete(ctx, turn)
			})
		},
	}

	addConversationFlags(cmd, opts)
	cmd.Flags().StringVar(&name, "property", "", "remove only this property, keeping the rest of the document")

	return cmd
}

// run executes fn as one turn against the selected layer. Only a turn that
// commits may write to the store.
func (o *conversationOptions) run(cmd *cobra.Command, commit bool, fn func(context.Context, statelayer.Storage) error) error {
	b, err := o.open(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer b.Close()

	layer := func(ctx context.Context, s bridge.Bindings) error {
		if o.Engine {
			return fn(ctx, s.Engine)
		}
		return fn(ctx, s.Domain)
	}

	turn := property.NewTurn(o.Channel, o.Conversation)
	if !commit {
		return b.ReadTurn(cmd.Context(), turn, nil, layer)
	}
	return b.RunTurn(cmd.Context(), turn, nil, layer)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
