package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"coursetrack/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor [root]...",
		Short: "Check binaries, log directory, and course folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			roots := make([]string, 0, len(args))
			for _, arg := range args {
				root, err := resolveRoot(arg)
				if err != nil {
					return err
				}
				roots = append(roots, root)
			}

			results := preflight.RunAll(cmd.Context(), cfg, roots)
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				state := "ok"
				switch {
				case !r.Passed && r.Optional:
					state = "skipped"
				case !r.Passed:
					state = "failed"
				}
				rows = append(rows, []string{r.Name, state, r.Detail})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"Check", "State", "Detail"}, rows, nil))
			if preflight.Failed(results) {
				return errors.New("one or more required checks failed")
			}
			return nil
		},
	}
}
