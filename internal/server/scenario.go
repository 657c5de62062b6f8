package server

import (
	"bytes"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/p-n-ai/pai-learn/internal/scenario"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// loadScenario fetches the scenario named in the path, writing an error reply on failure.
func (s *Server) loadScenario(w http.ResponseWriter, r *http.Request) (scenario.Scenario, bool) {
	id := r.PathValue("id")
	sc, err := s.deps.Scenarios.GetScenario(r.Context(), id)
	if err != nil {
		if errors.Is(err, scenario.ErrNotFound) {
			writeError(w, http.StatusNotFound, "SCENARIO_NOT_FOUND", "Scenario not found.")
			return scenario.Scenario{}, false
		}
		slog.Error("failed to load scenario", "scenario_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "SCENARIO_UNAVAILABLE", "Failed to load scenario. Please try again.")
		return scenario.Scenario{}, false
	}
	return sc, true
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.loadScenario(w, r)
	if !ok {
		return
	}
	audit := scenario.AuditLevels(sc)
	if !audit.Clean() {
		slog.Info("scenario structure findings",
			"scenario_id", sc.ID,
			"extra_entries", len(audit.ExtraEntries),
			"level_issues", len(audit.Levels),
			"dangling", len(audit.Dangling),
			"duplicates", len(audit.DuplicateIDs),
		)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"overview": scenario.Analyze(sc),
		"audit":    audit,
	})
}

func (s *Server) handleOverviewXLSX(w http.ResponseWriter, r *http.Request) {
	sc, ok := s.loadScenario(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := scenario.ExportXLSX(&buf, scenario.Analyze(sc)); err != nil {
		slog.Error("failed to export scenario overview", "scenario_id", sc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "EXPORT_FAILED", "Failed to export scenario overview.")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": "scenario-" + sc.ID + ".xlsx",
	}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("failed to write export", "scenario_id", sc.ID, "error", err)
	}
}
