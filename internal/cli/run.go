// internal/cli/run.go
package cli

import (
	"github.com/spf13/cobra"

	"creator-match/internal/engine/orchestrator"
	"creator-match/internal/models"
)

func newRunCommand(root *rootOptions) *cobra.Command {
	var (
		profilePath string
		maxResults  int
		minScore    int
		refresh     bool
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a matching analysis for a business profile",
		Long: `Run a matching analysis for the business profile in --profile
("-" reads stdin) and print the ranked creators.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var profile models.BusinessProfile
			if err := readJSON(profilePath, &profile); err != nil {
				return err
			}

			a, err := root.buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.Orchestrator.RunAnalysis(cmd.Context(), profile, orchestrator.Options{
				MaxResults:   maxResults,
				MinScore:     minScore,
				ForceRefresh: refresh,
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rec)
			}
			renderRecord(cmd.OutOrStdout(), rec)
			return nil
		},
	}

	cmd.Flags().StringVarP(&profilePath, "profile", "p", "", "BusinessProfile JSON file")
	cmd.Flags().IntVarP(&maxResults, "max", "n", 0, "Maximum matches to return (0 = configured default)")
	cmd.Flags().IntVar(&minScore, "min-score", 0, "Minimum total score (0 = configured default)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore cached and stored results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the analysis record as JSON")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}
