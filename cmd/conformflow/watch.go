package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/logflow/conformflow/pkg/tui"
	"github.com/logflow/conformflow/pkg/watch"
)

func (a *app) watchCmd() *cobra.Command {
	var f checkFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-check a log whenever it or its automaton changes",
		Long: `Check once, then watch the log (and the automaton file, if any) and check
again after every change. Stop with Ctrl-C.

Examples:
  conformflow watch -l claims.xes -a model.yaml
  conformflow watch -l claims.csv -f "F(acceptclaim)" -o verdicts.parquet`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			f.quiet = true

			recheck := func(ctx context.Context, _ string) error {
				summary, err := a.check(ctx, f, cmd.ErrOrStderr())
				if err != nil {
					tui.PrintError(out, err)
					return err
				}
				tui.PrintConformanceSummary(out, summary)
				return nil
			}
			if err := recheck(ctx, f.log); err != nil {
				return err
			}

			w, err := watch.NewWatcher(watch.Options{Logger: a.logger})
			if err != nil {
				return err
			}
			paths := []string{f.log}
			if f.automaton != "" {
				paths = append(paths, f.automaton)
			}
			if err := w.Watch(paths...); err != nil {
				w.Close()
				return err
			}
			a.logger.Info("watching", zap.Strings("paths", paths))

			if err := w.Run(ctx, recheck); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	f.register(cmd)
	return cmd
}
