package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"patchvault/internal/config"
	"patchvault/internal/models"
	"patchvault/internal/vault"
)

type manifestEntry struct {
	Path        string `json:"path" yaml:"path"`
	Checksum    string `json:"checksum" yaml:"checksum"`
	Size        int64  `json:"size" yaml:"size"`
	SourcePatch int    `json:"source_patch" yaml:"source_patch"`
}

type manifest struct {
	Distribution models.Distribution `json:"distribution" yaml:"distribution"`
	Patch        int                 `json:"patch" yaml:"patch"`
	Files        []manifestEntry     `json:"files" yaml:"files"`
}

func newResolveCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var yamlOutput bool

	cmd := &cobra.Command{
		Use:   "resolve <dist> <patch>",
		Short: "Resolve the file set of a distribution at a patch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dist, err := models.ParseDistribution(args[0])
			if err != nil {
				return err
			}
			patch, err := strconv.Atoi(args[1])
			if err != nil || patch < 0 {
				return fmt.Errorf("invalid patch: %q", args[1])
			}

			return withVault(cmd.Context(), cfg, func(deps *vaultDeps) error {
				ctx := cmd.Context()
				normalized, err := deps.resolver.NormalizePatch(ctx, dist, patch)
				if err != nil {
					return err
				}
				snapshot, err := deps.resolver.Resolve(ctx, dist, normalized)
				if err != nil {
					return err
				}

				out := manifest{Distribution: dist, Patch: normalized}
				for _, path := range vault.SortedPaths(snapshot) {
					resolved := snapshot[path]
					out.Files = append(out.Files, manifestEntry{
						Path:        path,
						Checksum:    fmt.Sprintf("%016x", resolved.Ref.Checksum),
						Size:        resolved.Ref.UncompressedSize,
						SourcePatch: resolved.SourcePatch,
					})
				}

				switch {
				case yamlOutput:
					return writeYAML(out)
				case *jsonOutput:
					return writeJSON(out)
				default:
					printf("%s ps%04d: %d files\n", out.Distribution, out.Patch, len(out.Files))
					for _, entry := range out.Files {
						printf("  %s  %10d  ps%04d  %s\n", entry.Checksum, entry.Size, entry.SourcePatch, entry.Path)
					}
					return nil
				}
			})
		},
	}

	cmd.Flags().BoolVar(&yamlOutput, "yaml", false, "output YAML")
	return cmd
}
