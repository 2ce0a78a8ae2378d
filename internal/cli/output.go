package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/mcoot/allfence/internal/api/response"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case HealthResult:
		o.printf("Status: %s\n", v.Status)
	case response.AuthResponse:
		o.printf("Logged in as %s until %s\n", v.Username, v.ExpiresAt.Format("2006-01-02 15:04 MST"))
		o.printf("Token: %s\n", v.SessionToken)
	case response.Fencer:
		o.printFencer(v)
	case []response.Fencer:
		o.printFencers(v)
	case response.Club:
		o.printClub(v)
	case []response.Club:
		o.printClubs(v)
	case response.ClubStanding:
		o.printClubStandings([]response.ClubStanding{v})
	case []response.ClubStanding:
		o.printClubStandings(v)
	case response.Tournament:
		o.printTournament(v)
	case []response.Tournament:
		o.printTournaments(v)
	case response.Registration:
		o.printf("Registered %s for %s in bracket %s\n", v.FencerID, v.TournamentID, v.Bracket)
	case []response.Participant:
		o.printParticipants(v)
	case response.Eligibility:
		o.printEligibility(v)
	case response.ResultRecord:
		o.printRecords([]response.ResultRecord{v})
	case []response.ResultRecord:
		o.printRecords(v)
	case response.TournamentResults:
		o.printTournamentResults(v)
	case response.Leaderboard:
		o.printLeaderboard(v)
	case []response.RankingEntry:
		o.printRankingEntries(v)
	case []response.ProgressPoint:
		o.printProgress(v)
	case []response.PointsTable:
		o.printPointsTables(v)
	case response.ConsistencyReport:
		o.printConsistency(v)
	case response.Affected:
		o.printf("Entries affected: %d\n", v.Entries)
	case response.Export:
		o.printf("Exported %s\n", v.Key)
		o.printf("Location: %s\n", v.Location)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}

// table writes tab-separated rows as aligned columns
func (o *Output) table(header string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, header)
	for _, row := range rows {
		_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func fullName(f response.Fencer) string {
	return strings.TrimSpace(f.FirstName + " " + f.LastName)
}

func (o *Output) printFencer(f response.Fencer) {
	o.printf("Fencer: %s (%s)\n", fullName(f), f.ID)
	o.printf("Born: %s\n", f.BirthDate)
	o.printf("Gender: %s\n", f.Gender)
	o.printf("Weapon: %s\n", f.Weapon)
	o.printf("Club: %s\n", deref(f.ClubID))
}

func (o *Output) printFencers(fs []response.Fencer) {
	rows := make([][]string, len(fs))
	for i, f := range fs {
		rows[i] = []string{f.ID, fullName(f), f.BirthDate, f.Gender, f.Weapon, deref(f.ClubID)}
	}
	o.table("ID\tNAME\tBORN\tGENDER\tWEAPON\tCLUB", rows)
}

func (o *Output) printClub(c response.Club) {
	o.printf("Club: %s (%s)\n", c.Name, c.ID)
	o.printf("Status: %s\n", c.Status)
	if c.FoundedYear != nil {
		o.printf("Founded: %d\n", *c.FoundedYear)
	}
	if c.WeaponSpecialization != nil {
		o.printf("Weapon: %s\n", *c.WeaponSpecialization)
	}
}

func (o *Output) printClubs(cs []response.Club) {
	rows := make([][]string, len(cs))
	for i, c := range cs {
		rows[i] = []string{c.ID, c.Name, c.Status, deref(c.WeaponSpecialization)}
	}
	o.table("ID\tNAME\tSTATUS\tWEAPON", rows)
}

func (o *Output) printClubStandings(ss []response.ClubStanding) {
	rows := make([][]string, len(ss))
	for i, s := range ss {
		rows[i] = []string{
			s.Club.ID,
			s.Club.Name,
			fmt.Sprint(s.TotalPoints),
			fmt.Sprint(s.FencerCount),
			fmt.Sprintf("%.1f", s.AveragePoints),
		}
	}
	o.table("ID\tCLUB\tPOINTS\tFENCERS\tAVERAGE", rows)
}

func (o *Output) printTournament(t response.Tournament) {
	o.printf("Tournament: %s (%s)\n", t.Name, t.ID)
	o.printf("Date: %s\n", t.Date)
	if t.Location != "" {
		o.printf("Location: %s\n", t.Location)
	}
	gender := "mixed"
	if t.Gender != nil {
		gender = *t.Gender
	}
	o.printf("Event: %s %s %s, %s tier\n", t.Bracket, gender, t.Weapon, t.Tier)
	if t.Capacity > 0 {
		o.printf("Capacity: %d\n", t.Capacity)
	}
	o.printf("Status: %s\n", t.Status)
}

func (o *Output) printTournaments(ts []response.Tournament) {
	rows := make([][]string, len(ts))
	for i, t := range ts {
		rows[i] = []string{t.ID, t.Date, t.Name, t.Weapon, t.Bracket, t.Tier, t.Status}
	}
	o.table("ID\tDATE\tNAME\tWEAPON\tBRACKET\tTIER\tSTATUS", rows)
}

func (o *Output) printParticipants(ps []response.Participant) {
	rows := make([][]string, len(ps))
	for i, p := range ps {
		rows[i] = []string{p.FencerID, fullName(p.Fencer), p.Bracket, p.RegisteredAt.Format("2006-01-02 15:04")}
	}
	o.table("FENCER\tNAME\tBRACKET\tREGISTERED", rows)
}

func (o *Output) printEligibility(e response.Eligibility) {
	if e.Eligible {
		o.printf("%s is eligible for %s (bracket %s)\n", e.FencerID, e.TournamentID, e.Bracket)
		return
	}
	o.printf("%s is not eligible for %s (bracket %s):\n", e.FencerID, e.TournamentID, e.Bracket)
	for _, r := range e.Reasons {
		if r.Detail != "" {
			o.printf("  - %s: %s\n", r.Reason, r.Detail)
		} else {
			o.printf("  - %s\n", r.Reason)
		}
	}
}

func (o *Output) printRecords(rs []response.ResultRecord) {
	rows := make([][]string, len(rs))
	for i, r := range rs {
		rows[i] = []string{r.ID, r.TournamentID, r.FencerID, r.Kind, fmt.Sprint(r.Placement), fmt.Sprintf("%+d", r.Points), r.Note}
	}
	o.table("RECORD\tTOURNAMENT\tFENCER\tKIND\tPLACE\tPOINTS\tNOTE", rows)
}

func (o *Output) printTournamentResults(tr response.TournamentResults) {
	o.printf("Results for %s\n", tr.TournamentID)
	rows := make([][]string, len(tr.Results))
	for i, r := range tr.Results {
		corrected := ""
		if r.Corrected {
			corrected = "yes"
		}
		rows[i] = []string{fmt.Sprint(r.Placement), r.FencerID, fmt.Sprint(r.Points), corrected}
	}
	o.table("PLACE\tFENCER\tPOINTS\tCORRECTED", rows)
	if len(tr.History) > 0 {
		o.printf("\nHistory:\n")
		o.printRecords(tr.History)
	}
}

func (o *Output) printLeaderboard(l response.Leaderboard) {
	title := l.Bracket
	if l.Weapon != "" {
		title += " " + l.Weapon
	}
	if l.Gender != "" {
		title += " " + l.Gender
	}
	o.printf("Rankings: %s\n", title)
	rows := make([][]string, len(l.Standings))
	for i, s := range l.Standings {
		rows[i] = []string{
			fmt.Sprint(s.Rank),
			s.Fencer.ID,
			fullName(s.Fencer),
			deref(s.Fencer.ClubID),
			fmt.Sprint(s.Points),
			fmt.Sprint(s.TournamentsAttended),
		}
	}
	o.table("RANK\tFENCER\tNAME\tCLUB\tPOINTS\tEVENTS", rows)
}

func (o *Output) printRankingEntries(es []response.RankingEntry) {
	rows := make([][]string, len(es))
	for i, e := range es {
		rows[i] = []string{e.Bracket, fmt.Sprint(e.Points), fmt.Sprint(e.TournamentsAttended)}
	}
	o.table("BRACKET\tPOINTS\tEVENTS", rows)
}

func (o *Output) printProgress(ps []response.ProgressPoint) {
	rows := make([][]string, len(ps))
	for i, p := range ps {
		rows[i] = []string{p.Date, p.TournamentID, p.Kind, fmt.Sprint(p.Placement), fmt.Sprintf("%+d", p.Points), fmt.Sprint(p.Cumulative)}
	}
	o.table("DATE\tTOURNAMENT\tKIND\tPLACE\tPOINTS\tTOTAL", rows)
}

func (o *Output) printPointsTables(ts []response.PointsTable) {
	for i, t := range ts {
		if i > 0 {
			o.printf("\n")
		}
		o.printf("%s (x%.1f)\n", t.Tier, t.Multiplier)
		rows := make([][]string, len(t.Rows))
		for j, r := range t.Rows {
			places := fmt.Sprint(r.From)
			switch {
			case r.To == nil:
				places += "+"
			case *r.To != r.From:
				places += fmt.Sprintf("-%d", *r.To)
			}
			rows[j] = []string{places, fmt.Sprint(r.Base), fmt.Sprint(r.Points)}
		}
		o.table("PLACE\tBASE\tPOINTS", rows)
	}
}

func (o *Output) printConsistency(r response.ConsistencyReport) {
	if r.Consistent {
		o.printf("Rankings consistent (%d entries checked)\n", r.Checked)
		return
	}
	o.printf("Ranking drift in %d of %d entries:\n", len(r.Drifts), r.Checked)
	rows := make([][]string, len(r.Drifts))
	for i, d := range r.Drifts {
		rows[i] = []string{
			d.FencerID,
			d.Bracket,
			fmt.Sprintf("%d/%d", d.StoredPoints, d.ExpectedPoints),
			fmt.Sprintf("%d/%d", d.StoredAttended, d.ExpectedAttended),
		}
	}
	o.table("FENCER\tBRACKET\tPOINTS (STORED/EXPECTED)\tEVENTS (STORED/EXPECTED)", rows)
}
