package cli

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nidhogg/crew/internal/orchestrator"
)

func newRunCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run one round (same as the bare command, for prompts that collide with a subcommand)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRound(cmd.Context(), o, args)
		},
	}
	cmd.Flags().BoolVar(&o.pretty, "pretty", false, "print a round summary to stderr")
	return cmd
}

// runRound executes one round and writes its report to stdout. The exit
// code is 1 when the prompt is missing or the artifact could not be written;
// agent failures alone still exit 0.
func runRound(ctx context.Context, o *options, args []string) error {
	prompt := strings.Join(args, " ")
	if prompt == "" {
		if err := o.writeReport(orchestrator.MissingPromptReport(time.Now())); err != nil {
			return err
		}
		return &exitError{code: 1}
	}

	cfg, _, logger, err := o.setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	report, runErr := a.steward.Run(ctx, prompt)
	if err := o.writeReport(report); err != nil {
		return err
	}
	if o.pretty {
		renderReport(o.err, report)
	}
	if runErr != nil {
		return &exitError{code: 1}
	}
	return nil
}

func (o *options) writeReport(r *orchestrator.Report) error {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
