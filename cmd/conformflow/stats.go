package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/logflow/conformflow/pkg/eventlog"
	"github.com/logflow/conformflow/pkg/inspect"
	"github.com/logflow/conformflow/pkg/tui"
)

func (a *app) statsCmd() *cobra.Command {
	var (
		logPath   string
		prefixes  []int
		labelAttr string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Profile an event log before encoding",
		Long: `Report trace lengths, variants, activity and outcome label frequencies.
Each --prefix shows how many traces reach that length and how many the
encoder would pad.

Examples:
  conformflow stats -l claims.xes
  conformflow stats -l claims.xes -p 7,13,22 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := eventlog.DefaultOptions()
			opts.Logger = a.logger
			opts.LabelAttribute = a.cfg.Experiment.LabelAttribute
			if labelAttr != "" {
				opts.LabelAttribute = labelAttr
			}
			log, err := eventlog.Load(cmd.Context(), logPath, opts)
			if err != nil {
				return err
			}

			report := inspect.Analyze(log, opts.LabelAttribute, prefixes...)
			if asJSON {
				data, err := report.ToJSON()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			tui.PrintLogProfile(cmd.OutOrStdout(), logPath, report)
			return nil
		},
	}
	cmd.Flags().StringVarP(&logPath, "log", "l", "", "Event log")
	cmd.Flags().IntSliceVarP(&prefixes, "prefix", "p", nil, "Prefix lengths to evaluate")
	cmd.Flags().StringVar(&labelAttr, "label-attribute", "", "Trace attribute holding the outcome label")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	cmd.MarkFlagRequired("log")
	return cmd
}
