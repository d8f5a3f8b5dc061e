package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"coursetrack/internal/config"
	"coursetrack/internal/fingerprint"
	"coursetrack/internal/library"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "scan <root>...",
		Short: "Scan course folders and reconcile them with saved progress",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.services()
			if err != nil {
				return err
			}
			syncer := svc.syncer()

			rows := make([][]string, 0, len(args))
			for _, root := range args {
				var report library.Report
				if force {
					report, err = syncer.ForceSync(cmd.Context(), root)
				} else {
					report, err = syncer.Sync(cmd.Context(), root)
				}
				if err != nil {
					return fmt.Errorf("scan %s: %w", root, err)
				}
				rows = append(rows, reportRow(report))
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(cmd.OutOrStdout(),
				[]string{"Course", "Result", "Status", "Parts", "Matched", "Backup", "Elapsed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Rescan even when the fingerprint is unchanged")
	return cmd
}

func reportRow(report library.Report) []string {
	result := "merged"
	switch {
	case report.Unchanged:
		result = "unchanged"
	case report.FirstScan:
		result = "first scan"
	}
	if report.FingerprintFailed {
		result += " (fingerprint failed)"
	}

	status, parts, matched := "-", "-", "-"
	if report.Course != nil {
		status = string(report.Course.Status)
		parts = fmt.Sprintf("%d", report.Course.PartCount())
	}
	if report.Merge != nil {
		matched = formatPercent(report.Merge.MatchedPercent)
	}
	backup := "-"
	if report.BackupPath != "" {
		backup = filepath.Base(report.BackupPath)
	}
	return []string{
		report.Root,
		result,
		status,
		parts,
		matched,
		backup,
		report.Elapsed.Round(time.Millisecond).String(),
	}
}

func newFingerprintCommand(ctx *commandContext) *cobra.Command {
	var manifest bool

	cmd := &cobra.Command{
		Use:   "fingerprint <root>",
		Short: "Print the content fingerprint of a course folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			root, err := resolveRoot(args[0])
			if err != nil {
				return err
			}
			return printFingerprint(cmd, cfg, root, manifest)
		},
	}

	cmd.Flags().BoolVarP(&manifest, "manifest", "m", false, "List the files that contribute to the fingerprint")
	return cmd
}

func printFingerprint(cmd *cobra.Command, cfg *config.Config, root string, manifest bool) error {
	exts := cfg.Scanner.AllowedExtensions
	metadataDir := cfg.Repository.MetadataDir
	out := cmd.OutOrStdout()

	if !manifest {
		fp, err := fingerprint.ComputeTimeout(cmd.Context(), root, exts, metadataDir, 0)
		if err != nil {
			return fmt.Errorf("fingerprint %s: %w", root, err)
		}
		fmt.Fprintln(out, fp)
		return nil
	}

	entries, err := fingerprint.Manifest(cmd.Context(), root, exts, metadataDir)
	if err != nil {
		return fmt.Errorf("fingerprint %s: %w", root, err)
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.RelativePath, formatBytes(e.SizeBytes), e.ModTime.Local().Format(time.DateTime)})
	}
	fmt.Fprintln(out, renderTable(out, []string{"File", "Size", "Modified"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft}))
	fmt.Fprintf(out, "Fingerprint: %s\n", fingerprint.Hash(entries))
	return nil
}
