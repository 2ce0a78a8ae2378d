// Package export writes leaderboard snapshots and stores them through an Uploader.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mcoot/allfence/internal/dependencies/clock"
	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/services/ranking"
)

// ContentType of every snapshot
const ContentType = "text/csv"

var header = []string{"rank", "fencer_id", "first_name", "last_name", "club_id", "bracket", "points", "tournaments_attended"}

// Exporter snapshots leaderboards
type Exporter struct {
	ranking  *ranking.Service
	uploader Uploader
	clock    clock.Clock
	logger   *slog.Logger
}

// New creates a new Exporter
func New(ranking *ranking.Service, uploader Uploader, clock clock.Clock, logger *slog.Logger) *Exporter {
	return &Exporter{
		ranking:  ranking,
		uploader: uploader,
		clock:    clock,
		logger:   logger,
	}
}

// WriteCSV writes standings as CSV with a header row
func WriteCSV(w io.Writer, standings []model.Standing) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, st := range standings {
		club := ""
		if st.Fencer.ClubID != nil {
			club = string(*st.Fencer.ClubID)
		}
		if err := cw.Write([]string{
			strconv.Itoa(st.Rank),
			string(st.Fencer.ID),
			st.Fencer.FirstName,
			st.Fencer.LastName,
			club,
			string(st.Entry.Bracket),
			strconv.Itoa(st.Entry.Points),
			strconv.Itoa(st.Entry.TournamentsAttended),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Key returns the object key for a snapshot taken now
func (e *Exporter) Key(q ranking.LeaderboardQuery) string {
	parts := []string{"rankings", strings.ToLower(string(q.Bracket))}
	if q.Weapon != "" {
		parts = append(parts, string(q.Weapon))
	}
	if q.Gender != "" {
		parts = append(parts, strings.ToLower(string(q.Gender)))
	}
	return strings.Join(parts, "/") + "/" + e.clock.Now().Format("20060102T150405Z") + ".csv"
}

// Export snapshots one leaderboard and uploads it
func (e *Exporter) Export(ctx context.Context, q ranking.LeaderboardQuery) (*UploadResult, error) {
	standings, err := e.ranking.Leaderboard(ctx, q)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, standings); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}

	key := e.Key(q)
	result, err := e.uploader.Upload(ctx, key, ContentType, &buf)
	if err != nil {
		e.logger.Error("ranking export failed", slog.String("key", key), slog.String("error", err.Error()))
		return nil, err
	}

	e.logger.Info("ranking exported",
		slog.String("key", key),
		slog.String("location", result.Location),
		slog.Int("rows", len(standings)),
	)
	return result, nil
}
