package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newBackupCommand(ctx *commandContext) *cobra.Command {
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage course repository snapshots",
	}

	backupCmd.AddCommand(newBackupCreateCommand(ctx))
	backupCmd.AddCommand(newBackupListCommand(ctx))

	return backupCmd
}

func newBackupCreateCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "create <root>",
		Short: "Snapshot the stored course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			root, err := resolveRoot(args[0])
			if err != nil {
				return err
			}
			release := svc.locks.Lock(root)
			path, err := svc.repo.Backup(cmd.Context(), root, reason)
			release()
			if err != nil {
				return fmt.Errorf("backup %s: %w", root, err)
			}
			if path == "" {
				return fmt.Errorf("no course tracked at %s; nothing to back up", root)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote backup %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "manual", "Label stored in the backup file name")
	return cmd
}

func newBackupListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list <root>",
		Short: "List snapshots, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			root, err := resolveRoot(args[0])
			if err != nil {
				return err
			}
			backups, err := svc.repo.ListBackups(cmd.Context(), root)
			if err != nil {
				return fmt.Errorf("list backups: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(backups) == 0 {
				fmt.Fprintln(out, "No backups")
				return nil
			}
			rows := make([][]string, 0, len(backups))
			for _, b := range backups {
				rows = append(rows, []string{
					filepath.Base(b.Path),
					b.Reason,
					humanize.Time(b.CreatedAt),
					formatBytes(b.SizeBytes),
				})
			}
			fmt.Fprintln(out, renderTable(out, []string{"File", "Reason", "Created", "Size"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight}))
			return nil
		},
	}
}
