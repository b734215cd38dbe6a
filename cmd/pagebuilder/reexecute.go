package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/pagebuilder"
	"github.com/aretw0/pagebuilder/internal/presentation/tui"
	"github.com/aretw0/pagebuilder/pkg/adapters/file"
	"github.com/aretw0/pagebuilder/pkg/registry"
	"github.com/spf13/cobra"
)

var reexecuteCmd = &cobra.Command{
	Use:   "reexecute <page-file> <node-id>",
	Short: "Re-execute a node of a page once",
	Long: `Loads a page file, mounts a widget for every --value given and asks the
backend to re-execute the node. Alerts and the resulting page are printed.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if url, _ := cmd.Flags().GetString("backend"); cmd.Flags().Changed("backend") {
			cfg.Backend.URL = url
		}
		rawValues, _ := cmd.Flags().GetStringArray("value")
		values, err := parseValues(rawValues)
		if err != nil {
			return err
		}

		req, err := file.ReadPageFile(args[0])
		if err != nil {
			return err
		}

		opts := append(appOptions(cfg, logger),
			pagebuilder.WithLogger(logger),
			pagebuilder.WithAlertSink(tui.NewAlertPrinter(cmd.ErrOrStderr())),
		)
		app := pagebuilder.New("cli", opts...)
		ctx := cmd.Context()
		app.Load(ctx, *req)
		for id, v := range values {
			app.Mount(id, pagebuilder.Widget{Provider: registry.ValueFunc(func(context.Context) (any, error) {
				return v, nil
			})})
		}

		runErr := app.TriggerReExecution(ctx, args[1])
		tui.PrintPage(cmd.OutOrStdout(), nodeStatuses(ctx, app))
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(reexecuteCmd)
	reexecuteCmd.Flags().StringArray("value", nil, "Widget value as node=json (repeatable)")
	reexecuteCmd.Flags().String("backend", "", "Backend JSON-RPC endpoint (overrides backend.url)")
}

// parseValues decodes node=value pairs. Values that are not valid JSON are
// kept as strings.
func parseValues(raw []string) (map[string]any, error) {
	values := make(map[string]any, len(raw))
	for _, kv := range raw {
		id, text, ok := strings.Cut(kv, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid value %q: expected node=value", kv)
		}
		var v any
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			v = text
		}
		values[id] = v
	}
	return values, nil
}

// nodeStatuses describes every node of the page loaded in app.
func nodeStatuses(ctx context.Context, app *pagebuilder.App) []tui.NodeStatus {
	page := app.Store().Page()
	dirty, err := app.Dirty(ctx)
	if err != nil {
		logger.Warn("Failed to compute dirty nodes", "err", err)
	}
	var nodes []tui.NodeStatus
	for _, id := range page.NodeIDs() {
		cfg, viewType, _ := page.Node(id)
		label, _ := cfg.Representation()["label"].(string)
		_, isDirty := dirty[id]
		nodes = append(nodes, tui.NodeStatus{
			ID:          id,
			ViewType:    viewType,
			Label:       label,
			Dirty:       isDirty,
			Reexecuting: app.Store().IsNodeReExecuting(id),
		})
	}
	return nodes
}
