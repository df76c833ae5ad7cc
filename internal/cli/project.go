// internal/cli/project.go
package cli

import (
	"github.com/spf13/cobra"

	"creator-match/internal/engine/projection"
	"creator-match/internal/engine/style"
	"creator-match/internal/models"
)

func newProjectCommand(root *rootOptions) *cobra.Command {
	var payloadPath, hintsPath string

	cmd := &cobra.Command{
		Use:   "project",
		Short: "Project a scraped store page into a business profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload models.StorePayload
			if err := readJSON(payloadPath, &payload); err != nil {
				return err
			}
			var hints models.ProfileHints
			if hintsPath != "" {
				if err := readJSON(hintsPath, &hints); err != nil {
					return err
				}
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			tax, err := style.LoadTaxonomy(cfg.Matching.TaxonomyPath)
			if err != nil {
				return err
			}

			profile, err := projection.New(tax, nil).Project(payload, hints)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), profile)
		},
	}

	cmd.Flags().StringVar(&payloadPath, "payload", "", "Scraped store payload JSON file")
	cmd.Flags().StringVar(&hintsPath, "hints", "", "Optional profile hints JSON file")
	_ = cmd.MarkFlagRequired("payload")
	return cmd
}
