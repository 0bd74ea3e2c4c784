package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"patchvault/internal/config"
	"patchvault/internal/models"
	"patchvault/internal/vault"
)

const ingestDateLayout = "2006-01-02"

func newIngestCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		distFlag string
		patch    int
		dateFlag string
		backfill bool
		replay   bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Admit a patch directory into the archive",
		Long: `Ingest walks a directory tree holding one patch's new or changed files
and admits every regular file under its slash-normalized, lower-cased
logical path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dist, err := models.ParseDistribution(distFlag)
			if err != nil {
				return err
			}
			if patch < 0 {
				return fmt.Errorf("--patch is required and must be >= 0")
			}
			date := time.Now().UTC()
			if dateFlag != "" {
				if date, err = time.Parse(ingestDateLayout, dateFlag); err != nil {
					return fmt.Errorf("invalid --date %q (want YYYY-MM-DD)", dateFlag)
				}
			}

			files, err := collectPatchFiles(args[0])
			if err != nil {
				return err
			}

			return withVault(cmd.Context(), cfg, func(deps *vaultDeps) error {
				opts := vault.IngestOptions{Backfill: backfill, Replay: replay}
				result, err := deps.ingestor.Ingest(cmd.Context(), dist, patch, date, files, opts)
				if err != nil {
					return err
				}
				if *jsonOutput {
					return writeJSON(result)
				}
				printf("admitted %s ps%04d: %d files, %d bytes\n", result.Distribution, result.Patch, result.Files, result.Bytes)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&distFlag, "dist", "", "distribution code (us, de, pt, es, ga)")
	cmd.Flags().IntVar(&patch, "patch", -1, "patch number")
	cmd.Flags().StringVar(&dateFlag, "date", "", "publication date (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&backfill, "backfill", false, "admit a patch below the high-water mark")
	cmd.Flags().BoolVar(&replay, "replay", false, "re-admit an already completed patch")
	_ = cmd.MarkFlagRequired("dist")
	_ = cmd.MarkFlagRequired("patch")

	return cmd
}

func collectPatchFiles(root string) ([]vault.IngestFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	var files []vault.IngestFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, vault.IngestFile{Path: filepath.ToSlash(rel), Content: content})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found under %s", root)
	}
	return files, nil
}
