// internal/cli/fingerprint.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	apperrors "creator-match/internal/common/errors"
	"creator-match/internal/engine/cache"
	"creator-match/internal/models"
)

func newFingerprintCommand() *cobra.Command {
	var profilePath string

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the cache fingerprint of a business profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			var profile models.BusinessProfile
			if err := readJSON(profilePath, &profile); err != nil {
				return err
			}
			if err := profile.Validate(); err != nil {
				return apperrors.NewInvalidProfileError(err)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), cache.ProfileFingerprint(profile))
			return err
		},
	}

	cmd.Flags().StringVarP(&profilePath, "profile", "p", "", "BusinessProfile JSON file")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}
