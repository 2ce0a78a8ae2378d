package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/allfence/internal/api/request"
	"github.com/mcoot/allfence/internal/api/response"
)

func newClubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "club",
		Short: "Club management commands",
	}

	cmd.AddCommand(newClubCreateCmd())
	cmd.AddCommand(newClubGetCmd())
	cmd.AddCommand(newClubListCmd())
	cmd.AddCommand(newClubTotalCmd())

	return cmd
}

func newClubCreateCmd() *cobra.Command {
	var req request.CreateClubRequest
	var founded int
	var weapon string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a club",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("founded") {
				req.FoundedYear = &founded
			}
			if weapon != "" {
				req.WeaponSpecialization = &weapon
			}

			var result response.Club
			if err := client.Post("/api/v1/clubs", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Club name (required)")
	cmd.Flags().StringVar(&req.Status, "status", "", "Status: active, inactive, pending or suspended")
	cmd.Flags().IntVar(&founded, "founded", 0, "Year founded")
	cmd.Flags().StringVar(&weapon, "weapon", "", "Weapon specialization")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newClubGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <club-id>",
		Short: "Show a club",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Club
			if err := client.Get("/api/v1/clubs/"+args[0], &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newClubListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List clubs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []response.Club
			if err := client.Get("/api/v1/clubs", &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newClubTotalCmd() *cobra.Command {
	var weapon string

	cmd := &cobra.Command{
		Use:   "total <club-id>",
		Short: "Show a club's combined ranking points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := withQuery("/api/v1/clubs/"+args[0]+"/total", map[string]string{"weapon": weapon})

			var result response.ClubStanding
			if err := client.Get(path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&weapon, "weapon", "", "Only count fencers of this weapon")

	return cmd
}
