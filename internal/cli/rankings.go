package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/allfence/internal/api/response"
)

func newRankingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rankings",
		Short: "Leaderboards and ranking maintenance",
	}

	cmd.AddCommand(newRankingsLeaderboardCmd())
	cmd.AddCommand(newRankingsClubsCmd())
	cmd.AddCommand(newRankingsPointsCmd())
	cmd.AddCommand(newRankingsVerifyCmd())
	cmd.AddCommand(newRankingsRebuildCmd())
	cmd.AddCommand(newRankingsResetCmd())
	cmd.AddCommand(newRankingsExportCmd())

	return cmd
}

// leaderboardFlags are shared by leaderboard and export
type leaderboardFlags struct {
	bracket string
	weapon  string
	gender  string
}

func (f *leaderboardFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.bracket, "bracket", "", "Age bracket (required)")
	cmd.Flags().StringVar(&f.weapon, "weapon", "", "Only fencers of this weapon")
	cmd.Flags().StringVar(&f.gender, "gender", "", "Only fencers of this gender")
	_ = cmd.MarkFlagRequired("bracket")
}

func (f *leaderboardFlags) path(base string) string {
	return withQuery(base, map[string]string{
		"bracket": f.bracket,
		"weapon":  f.weapon,
		"gender":  f.gender,
	})
}

func newRankingsLeaderboardCmd() *cobra.Command {
	var flags leaderboardFlags

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show the ranked standings for a bracket",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Leaderboard
			if err := client.Get(flags.path("/api/v1/rankings"), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}

func newRankingsClubsCmd() *cobra.Command {
	var weapon string

	cmd := &cobra.Command{
		Use:   "clubs",
		Short: "Rank clubs by combined fencer points",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []response.ClubStanding
			if err := client.Get(withQuery("/api/v1/rankings/clubs", map[string]string{"weapon": weapon}), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&weapon, "weapon", "", "Only count fencers of this weapon")

	return cmd
}

func newRankingsPointsCmd() *cobra.Command {
	var tier string

	cmd := &cobra.Command{
		Use:   "points",
		Short: "Show the points awarded per placement",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []response.PointsTable
			if err := client.Get(withQuery("/api/v1/rankings/points-table", map[string]string{"tier": tier}), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&tier, "tier", "", "Only this tier")

	return cmd
}

func newRankingsVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Compare stored rankings with the result history",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.ConsistencyReport
			if err := client.Post("/api/v1/rankings/verify", nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newRankingsRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Recompute every ranking entry from the result history",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Affected
			if err := client.Post("/api/v1/rankings/rebuild", nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newRankingsResetCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Zero every ranking entry (non-production only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				output(cmd).PrintMessage("Refusing to reset rankings without --yes")
				return nil
			}

			var result response.Affected
			if err := client.Post("/api/v1/rankings/reset", nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "yes", false, "Confirm the reset")

	return cmd
}

func newRankingsExportCmd() *cobra.Command {
	var flags leaderboardFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Upload a CSV snapshot of a leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Export
			if err := client.Post(flags.path("/api/v1/rankings/export"), nil, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
	flags.register(cmd)

	return cmd
}
