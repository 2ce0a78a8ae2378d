package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mcoot/allfence/internal/api/request"
	"github.com/mcoot/allfence/internal/api/response"
)

func newTournamentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tournament",
		Aliases: []string{"t"},
		Short:   "Tournament, registration and results commands",
	}

	cmd.AddCommand(newTournamentCreateCmd())
	cmd.AddCommand(newTournamentGetCmd())
	cmd.AddCommand(newTournamentListCmd())
	cmd.AddCommand(newTournamentStatusCmd())
	cmd.AddCommand(newTournamentRegisterCmd())
	cmd.AddCommand(newTournamentUnregisterCmd())
	cmd.AddCommand(newTournamentParticipantsCmd())
	cmd.AddCommand(newTournamentEligibilityCmd())
	cmd.AddCommand(newTournamentResultsCmd())
	cmd.AddCommand(newTournamentRecordCmd())
	cmd.AddCommand(newTournamentImportCmd())
	cmd.AddCommand(newTournamentCorrectCmd())

	return cmd
}

func tournamentPath(id string, sub ...string) string {
	p := "/api/v1/tournaments/" + id
	for _, s := range sub {
		p += "/" + s
	}
	return p
}

func newTournamentCreateCmd() *cobra.Command {
	var req request.CreateTournamentRequest
	var gender string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tournament",
		RunE: func(cmd *cobra.Command, args []string) error {
			if gender != "" {
				req.Gender = &gender
			}

			var result response.Tournament
			if err := client.Post("/api/v1/tournaments", req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Tournament name (required)")
	cmd.Flags().StringVar(&req.Location, "location", "", "Venue")
	cmd.Flags().StringVar(&req.Date, "date", "", "Date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&req.Weapon, "weapon", "", "Weapon (required)")
	cmd.Flags().StringVar(&req.Bracket, "bracket", "", "Age bracket, e.g. Junior (required)")
	cmd.Flags().StringVar(&req.Tier, "tier", "", "Tier: local, regional, national, championship, international (required)")
	cmd.Flags().StringVar(&gender, "gender", "", "Restrict to one gender; omit for mixed")
	cmd.Flags().IntVar(&req.Capacity, "capacity", 0, "Maximum registrations, 0 for unlimited")
	for _, name := range []string{"name", "date", "weapon", "bracket", "tier"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func newTournamentGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <tournament-id>",
		Short: "Show a tournament",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Tournament
			if err := client.Get(tournamentPath(args[0]), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newTournamentListCmd() *cobra.Command {
	var status, weapon, bracket string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tournaments",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := withQuery("/api/v1/tournaments", map[string]string{
				"status":  status,
				"weapon":  weapon,
				"bracket": bracket,
			})

			var result []response.Tournament
			if err := client.Get(path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&weapon, "weapon", "", "Filter by weapon")
	cmd.Flags().StringVar(&bracket, "bracket", "", "Filter by bracket")

	return cmd
}

func newTournamentStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <tournament-id> <status>",
		Short: "Move a tournament to its next lifecycle status",
		Long: `Move a tournament along upcoming -> registration_open -> in_progress -> completed.
Any tournament that has not finished may also be cancelled.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Tournament
			if err := client.Post(tournamentPath(args[0], "status"), request.TransitionRequest{Status: args[1]}, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newTournamentRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <tournament-id> <fencer-id>",
		Short: "Register a fencer for a tournament",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Registration
			if err := client.Post(tournamentPath(args[0], "participants"), request.RegisterRequest{FencerID: args[1]}, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newTournamentUnregisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unregister <tournament-id> <fencer-id>",
		Short: "Withdraw a fencer's registration",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Delete(tournamentPath(args[0], "participants", args[1])); err != nil {
				return err
			}

			output(cmd).PrintMessage(fmt.Sprintf("Unregistered %s from %s", args[1], args[0]))
			return nil
		},
	}
}

func newTournamentParticipantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "participants <tournament-id>",
		Short: "List registered fencers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []response.Participant
			if err := client.Get(tournamentPath(args[0], "participants"), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newTournamentEligibilityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eligibility <tournament-id> <fencer-id>",
		Short: "Explain whether a fencer may register",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.Eligibility
			if err := client.Get(tournamentPath(args[0], "eligibility", args[1]), &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newTournamentResultsCmd() *cobra.Command {
	var history bool

	cmd := &cobra.Command{
		Use:   "results <tournament-id>",
		Short: "Show current placements, optionally with the full record history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := tournamentPath(args[0], "results")
			if history {
				path += "?history=true"
			}

			var result response.TournamentResults
			if err := client.Get(path, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&history, "history", false, "Include every placement and correction record")

	return cmd
}

// parsePlacements turns FENCER=PLACE pairs into request placements
func parsePlacements(pairs []string) ([]request.Placement, error) {
	out := make([]request.Placement, 0, len(pairs))
	for _, pair := range pairs {
		id, place, ok := strings.Cut(pair, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid placement %q: want FENCER_ID=PLACE", pair)
		}
		n, err := strconv.Atoi(place)
		if err != nil {
			return nil, fmt.Errorf("invalid placement %q: %w", pair, err)
		}
		out = append(out, request.Placement{FencerID: id, Placement: n})
	}
	return out, nil
}

func newTournamentRecordCmd() *cobra.Command {
	var pairs []string

	cmd := &cobra.Command{
		Use:     "record <tournament-id>",
		Short:   "Record final placements",
		Example: `  allfence tournament record T-00000003 --place F-00000001=1 --place F-00000002=2`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			placements, err := parsePlacements(pairs)
			if err != nil {
				return err
			}

			var result []response.ResultRecord
			if err := client.Post(tournamentPath(args[0], "results"), request.RecordResultsRequest{Placements: placements}, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&pairs, "place", nil, "FENCER_ID=PLACE, repeatable (required)")
	_ = cmd.MarkFlagRequired("place")

	return cmd
}

func newTournamentImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <tournament-id> <file>",
		Short: "Record placements from a CSV or XLSX sheet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []response.ResultRecord
			if err := client.Upload(tournamentPath(args[0], "results", "import"), args[1], &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}
}

func newTournamentCorrectCmd() *cobra.Command {
	var req request.CorrectionRequest

	cmd := &cobra.Command{
		Use:   "correct <tournament-id> <fencer-id>",
		Short: "Correct a recorded placement",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.ResultRecord
			if err := client.Post(tournamentPath(args[0], "results", args[1], "correction"), req, &result); err != nil {
				return err
			}

			output(cmd).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&req.Placement, "place", 0, "Corrected placement (required)")
	cmd.Flags().StringVar(&req.Note, "note", "", "Reason for the correction")
	_ = cmd.MarkFlagRequired("place")

	return cmd
}
