package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"coursetrack/internal/course"
)

func newProgressCommand(ctx *commandContext) *cobra.Command {
	progressCmd := &cobra.Command{
		Use:   "progress",
		Short: "Record playback progress",
	}

	progressCmd.AddCommand(newProgressSetCommand(ctx))
	progressCmd.AddCommand(newProgressWatchedCommand(ctx))
	progressCmd.AddCommand(newProgressNotifyCommand(ctx))

	return progressCmd
}

func newProgressSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <root> <part> <seconds>",
		Short: "Save a playback position immediately",
		Long:  "Save a playback position immediately. <part> is a part id or the path of the video file.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			seconds, err := parseSeconds(args[2])
			if err != nil {
				return err
			}
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			c, err := loadTracked(cmd.Context(), svc.repo, args[0])
			if err != nil {
				return err
			}
			part, err := resolvePart(c, args[1])
			if err != nil {
				return err
			}
			if err := svc.persister().SavePositionByPartID(cmd.Context(), c.RootPath, part.ID, seconds); err != nil {
				return fmt.Errorf("save position: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s at %s\n", part.FileName, formatSeconds(seconds))
			return nil
		},
	}
}

func newProgressWatchedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watched <root> <part>",
		Short: "Mark a part as watched",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			c, err := loadTracked(cmd.Context(), svc.repo, args[0])
			if err != nil {
				return err
			}
			part, err := resolvePart(c, args[1])
			if err != nil {
				return err
			}
			if err := svc.persister().MarkWatched(cmd.Context(), c.RootPath, part.ID); err != nil {
				return fmt.Errorf("mark watched: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %s as watched\n", part.FileName)
			return nil
		},
	}
}

func newProgressNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notify <file> <seconds>...",
		Short: "Feed player position events through the debounced persister",
		Long: "Feed one or more position events for a video file through the debounced persister.\n" +
			"The course root is found by walking up to the metadata folder. Pending values are\n" +
			"flushed before the command exits.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			positions := make([]float64, 0, len(args)-1)
			for _, raw := range args[1:] {
				seconds, err := parseSeconds(raw)
				if err != nil {
					return err
				}
				positions = append(positions, seconds)
			}
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			persister := svc.persister()
			root, err := persister.ResolveCourseRoot(args[0])
			if err != nil {
				return err
			}
			for _, seconds := range positions {
				persister.NotifyPosition(cmd.Context(), args[0], seconds)
			}
			pending := persister.Pending(root)
			if err := persister.Close(cmd.Context()); err != nil {
				return fmt.Errorf("flush positions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Flushed %d pending position(s) for %s\n", pending, root)
			return nil
		},
	}
}

func resolvePart(c *course.Course, ref string) (*course.Part, error) {
	ref = strings.TrimSpace(ref)
	if part, _ := c.FindPart(ref); part != nil {
		return part, nil
	}
	if part := c.FindPartByPath(ref); part != nil {
		return part, nil
	}
	return nil, fmt.Errorf("no part %q in course %s", ref, c.RootPath)
}

func parseSeconds(raw string) (float64, error) {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || !course.ValidPosition(seconds) {
		return 0, fmt.Errorf("invalid position %q: expected non-negative seconds", raw)
	}
	return seconds, nil
}
