package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/allfence/internal/api/request"
	"github.com/mcoot/allfence/internal/api/response"
)

func newFencerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fencer",
		Short: "Fencer management commands",
	}

	cmd.AddCommand(newFencerCreateCmd())
	cmd.AddCommand(newFencerGetCmd())
	cmd.AddCommand(newFencerListCmd())
	cmd.AddCommand(newFencerUpdateCmd())
	cmd.AddCommand(newFencerResultsCmd())
	cmd.AddCommand(newFencerProgressCmd())
	cmd.AddCommand(newFencerRankingsCmd())
	cmd.AddCommand(newFencerEligibleCmd())

	return cmd
}

func fencerPath(id string, sub ...string) string {
	p := "/api/v1/fencers/" + id
	for _, s := range sub {
		p += "/" + s
	}
	return p
}

func newFencerCreateCmd() *cobra.Command {
	var req request.CreateFencerRequest
	var club string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a fencer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if club != "" {
				req.ClubID = &club
			}

			var result response.Fencer
			if err := client.Post("/api/v1/fencers", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "First name (required)")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "Last name (required)")
	cmd.Flags().StringVar(&req.BirthDate, "birth-date", "", "Birth date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&req.Gender, "gender", "", "Gender: M or F (required)")
	cmd.Flags().StringVar(&req.Weapon, "weapon", "", "Weapon: sabre, foil or epee (required)")
	cmd.Flags().StringVar(&club, "club", "", "Club ID")
	for _, name := range []string{"first-name", "last-name", "birth-date", "gender", "weapon"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func newFencerGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <fencer-id>",
		Short: "Show a fencer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Fencer
			if err := client.Get(fencerPath(args[0]), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newFencerListCmd() *cobra.Command {
	var weapon, gender, club string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List fencers",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := withQuery("/api/v1/fencers", map[string]string{
				"weapon": weapon,
				"gender": gender,
				"club":   club,
			})

			var result []response.Fencer
			if err := client.Get(path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&weapon, "weapon", "", "Filter by weapon")
	cmd.Flags().StringVar(&gender, "gender", "", "Filter by gender")
	cmd.Flags().StringVar(&club, "club", "", "Filter by club ID")

	return cmd
}

func newFencerUpdateCmd() *cobra.Command {
	var firstName, lastName, weapon, club string
	var clearClub bool

	cmd := &cobra.Command{
		Use:   "update <fencer-id>",
		Short: "Update a fencer's name, weapon or club",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := request.UpdateFencerRequest{ClearClub: clearClub}
			set := func(flag string, dst **string, v string) {
				if cmd.Flags().Changed(flag) {
					*dst = &v
				}
			}
			set("first-name", &req.FirstName, firstName)
			set("last-name", &req.LastName, lastName)
			set("weapon", &req.Weapon, weapon)
			set("club", &req.ClubID, club)

			if req == (request.UpdateFencerRequest{}) {
				return fmt.Errorf("nothing to update")
			}

			var result response.Fencer
			if err := client.Patch(fencerPath(args[0]), req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&firstName, "first-name", "", "New first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "New last name")
	cmd.Flags().StringVar(&weapon, "weapon", "", "New weapon")
	cmd.Flags().StringVar(&club, "club", "", "New club ID")
	cmd.Flags().BoolVar(&clearClub, "clear-club", false, "Remove the fencer from their club")
	cmd.MarkFlagsMutuallyExclusive("club", "clear-club")

	return cmd
}

func newFencerResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results <fencer-id>",
		Short: "List every result record for a fencer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []response.ResultRecord
			if err := client.Get(fencerPath(args[0], "results"), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newFencerProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress <fencer-id>",
		Short: "Show a fencer's cumulative points over time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []response.ProgressPoint
			if err := client.Get(fencerPath(args[0], "progress"), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newFencerRankingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rankings <fencer-id>",
		Short: "Show a fencer's ranking entries per bracket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []response.RankingEntry
			if err := client.Get(fencerPath(args[0], "rankings"), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newFencerEligibleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eligible <fencer-id>",
		Short: "List open tournaments the fencer may register for",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []response.Tournament
			if err := client.Get(fencerPath(args[0], "eligible-tournaments"), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}
