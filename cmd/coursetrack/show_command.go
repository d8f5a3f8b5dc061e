package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"coursetrack/internal/course"
	"coursetrack/internal/repository"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <root>",
		Short: "Show chapters, parts, and progress of a tracked course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			c, err := loadTracked(cmd.Context(), svc.repo, args[0])
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, c)
			}
			renderCourse(cmd.OutOrStdout(), c)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the stored course as JSON")
	return cmd
}

func loadTracked(ctx context.Context, repo repository.Repository, root string) (*course.Course, error) {
	resolved, err := resolveRoot(root)
	if err != nil {
		return nil, err
	}
	c, err := repo.Load(ctx, resolved)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("no course tracked at %s; run `coursetrack scan %s` first", resolved, root)
	}
	return c, nil
}

func renderCourse(out io.Writer, c *course.Course) {
	fmt.Fprintf(out, "Course:    %s\n", c.Title)
	fmt.Fprintf(out, "Root:      %s\n", c.RootPath)
	status := string(c.Status)
	if c.StatusNote != "" {
		status += " (" + c.StatusNote + ")"
	}
	fmt.Fprintf(out, "Status:    %s\n", status)
	fmt.Fprintf(out, "Watched:   %s of %s\n", formatSeconds(c.WatchedSeconds), formatOptionalSeconds(c.TotalDurationSeconds))
	fmt.Fprintf(out, "Last scan: %s\n", formatWhen(c.LastScanAt))
	if c.Resume != nil {
		label := c.Resume.PartID
		if part, _ := c.FindPart(c.Resume.PartID); part != nil {
			label = part.FileName
		}
		fmt.Fprintf(out, "Resume:    %s at %s\n", label, formatSeconds(c.Resume.PositionSeconds))
	}
	fmt.Fprintln(out)

	var rows [][]string
	for _, ch := range c.Chapters {
		for _, p := range ch.Parts {
			rows = append(rows, []string{
				ch.Title,
				formatIndex(p.Index),
				p.FileName,
				formatBytes(p.FileSizeBytes),
				formatOptionalSeconds(p.DurationSeconds),
				formatSeconds(p.LastPositionSeconds),
				yesNo(p.Watched),
				p.ID,
			})
		}
	}
	fmt.Fprintln(out, renderTable(out,
		[]string{"Chapter", "#", "Part", "Size", "Duration", "Position", "Watched", "ID"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	))
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
