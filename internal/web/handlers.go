package web

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/chainops/launchgate/internal/domain"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type handlers struct {
	outDir   string
	cacheDir string
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *handlers) notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeError(w, http.StatusNotFound, "not_found", "unknown endpoint "+r.URL.Path)
}

// decisionDates lists report dates, newest first.
func (h *handlers) decisionDates() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(h.outDir, "decisions"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var dates []string
	for _, e := range entries {
		if e.IsDir() && datePattern.MatchString(e.Name()) {
			dates = append(dates, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

func (h *handlers) listDecisions(w http.ResponseWriter, r *http.Request) {
	dates, err := h.decisionDates()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"dates": dates})
}

func (h *handlers) latestDecision(w http.ResponseWriter, r *http.Request) {
	dates, err := h.decisionDates()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	if len(dates) == 0 {
		writeError(w, http.StatusNotFound, "no_decisions", "no decision reports have been produced yet")
		return
	}
	h.serveSummary(w, dates[0])
}

func (h *handlers) decisionByDate(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if !datePattern.MatchString(date) {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}
	h.serveSummary(w, date)
}

func (h *handlers) serveSummary(w http.ResponseWriter, date string) {
	raw, err := os.ReadFile(filepath.Join(h.outDir, "decisions", date, "summary.json"))
	if os.IsNotExist(err) {
		writeError(w, http.StatusNotFound, "no_decision", "no decision report for "+date)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "read_failed", err.Error())
		return
	}
	var rec domain.Recommendation
	if err := json.Unmarshal(raw, &rec); err != nil {
		writeError(w, http.StatusInternalServerError, "corrupt_report", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"date": date, "recommendation": rec})
}

// listArtifacts enumerates cached artifact payloads for one pillar.
func (h *handlers) listArtifacts(w http.ResponseWriter, r *http.Request) {
	pillar := mux.Vars(r)["pillar"]
	switch pillar {
	case domain.PillarRisk, domain.PillarGas, domain.PillarBehavior:
	default:
		writeError(w, http.StatusBadRequest, "invalid_pillar", "pillar must be risk, gas or behavior")
		return
	}

	entries, err := os.ReadDir(filepath.Join(h.cacheDir, pillar))
	if os.IsNotExist(err) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"pillar": pillar, "artifacts": []string{}})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list_failed", err.Error())
		return
	}
	artifacts := []string{}
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".csv" {
			artifacts = append(artifacts, e.Name())
		}
	}
	sort.Strings(artifacts)
	writeJSON(w, http.StatusOK, map[string]interface{}{"pillar": pillar, "artifacts": artifacts})
}
