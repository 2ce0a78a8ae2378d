package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/allfence/internal/api/request"
	"github.com/mcoot/allfence/internal/api/response"
	"github.com/mcoot/allfence/internal/model"
	"github.com/mcoot/allfence/internal/services/results"
)

// importFormOverhead allows for multipart boundaries and headers around the file
const importFormOverhead = 64 << 10

// ResultsHandler handles result recording, import and correction
type ResultsHandler struct {
	recorder *results.Recorder
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(recorder *results.Recorder) *ResultsHandler {
	return &ResultsHandler{
		recorder: recorder,
	}
}

// List handles GET /api/v1/tournaments/{id}/results?history=true
func (h *ResultsHandler) List(w http.ResponseWriter, r *http.Request) {
	id := tournamentID(r)

	summary, err := h.recorder.TournamentResults(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	var history []model.ResultRecord
	if queryBool(r, "history") {
		history, err = h.recorder.TournamentHistory(r.Context(), id)
		if err != nil {
			WriteError(w, err)
			return
		}
	}

	response.JSON(w, http.StatusOK, response.TournamentResultsFromModel(id, summary, history))
}

// Record handles POST /api/v1/tournaments/{id}/results
func (h *ResultsHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req request.RecordResultsRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	placements := make(map[model.FencerID]int, len(req.Placements))
	for _, p := range req.Placements {
		if p.FencerID == "" {
			WriteError(w, NewInvalidRequestError("fencer_id is required for every placement"))
			return
		}
		id := model.FencerID(p.FencerID)
		if _, dup := placements[id]; dup {
			WriteError(w, NewInvalidRequestError(fmt.Sprintf("fencer %s is listed more than once", id)))
			return
		}
		placements[id] = p.Placement
	}

	records, err := h.recorder.RecordResults(r.Context(), tournamentID(r), placements)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.ResultRecordsFromModel(records))
}

// Import handles POST /api/v1/tournaments/{id}/results/import with a
// multipart "file" field holding a CSV or XLSX sheet
func (h *ResultsHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, results.MaxImportBytes+importFormOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, fmt.Errorf("%w: file exceeds %d bytes", model.ErrInvalidImport, results.MaxImportBytes))
			return
		}
		WriteError(w, NewInvalidRequestError("multipart field \"file\" is required"))
		return
	}
	defer func() { _ = file.Close() }()

	records, err := h.recorder.ImportResults(r.Context(), tournamentID(r), header.Filename, file)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.ResultRecordsFromModel(records))
}

// Correct handles POST /api/v1/tournaments/{id}/results/{fencer_id}/correction
func (h *ResultsHandler) Correct(w http.ResponseWriter, r *http.Request) {
	var req request.CorrectionRequest
	if err := decode(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	fencer := model.FencerID(mux.Vars(r)["fencer_id"])
	record, err := h.recorder.CorrectResult(r.Context(), tournamentID(r), fencer, req.Placement, req.Note)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.ResultRecordFromModel(*record))
}
