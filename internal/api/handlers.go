package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/supply-risk/internal/model"
	"github.com/sells-group/supply-risk/internal/query"
	"github.com/sells-group/supply-risk/internal/risk"
)

// notFoundMessage is the error payload clients check for an empty group.
const notFoundMessage = "No data found for selected parameters."

type errorResponse struct {
	Error string `json:"error"`
}

type topRisksResponse struct {
	Commodity string              `json:"commodity"`
	Year      int                 `json:"year"`
	TopRisks  []model.CountryRisk `json:"top_risks"`
}

type allRisksResponse struct {
	Commodity    string              `json:"commodity"`
	Year         int                 `json:"year"`
	AllCountries []model.CountryRisk `json:"all_countries"`
}

type groupsResponse struct {
	Groups []risk.GroupInfo `json:"groups"`
}

type healthResponse struct {
	OK           bool      `json:"ok"`
	Service      string    `json:"service"`
	BuiltAt      time.Time `json:"built_at"`
	Rows         int       `json:"rows"`
	Groups       int       `json:"groups"`
	SourceDigest string    `json:"source_digest"`
}

type handler struct {
	svc *query.Service
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	st := h.svc.Status()
	writeJSON(w, http.StatusOK, healthResponse{
		OK:           true,
		Service:      "supply-risk",
		BuiltAt:      st.BuiltAt,
		Rows:         st.Rows,
		Groups:       st.Groups,
		SourceDigest: st.Digest,
	})
}

func (h *handler) groups(w http.ResponseWriter, _ *http.Request) {
	groups := h.svc.Groups()
	if groups == nil {
		groups = []risk.GroupInfo{}
	}
	writeJSON(w, http.StatusOK, groupsResponse{Groups: groups})
}

func (h *handler) topRiskCountries(w http.ResponseWriter, r *http.Request) {
	commodity, year, ok := groupParams(w, r)
	if !ok {
		return
	}
	topN, ok := parseTopN(r.URL.Query().Get("top_n"), query.DefaultTopN)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "top_n must be a non-negative integer"})
		return
	}

	top, err := h.svc.TopRiskCountries(commodity, year, topN)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, topRisksResponse{Commodity: commodity, Year: year, TopRisks: top})
}

func (h *handler) riskScore(w http.ResponseWriter, r *http.Request) {
	commodity, year, ok := groupParams(w, r)
	if !ok {
		return
	}
	// only_political is accepted for client compatibility; it does not
	// change the ranking.
	if raw := r.URL.Query().Get("only_political"); raw != "" {
		if _, err := strconv.ParseBool(raw); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "only_political must be a boolean"})
			return
		}
	}

	all, err := h.svc.AllRisksRanked(commodity, year)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, allRisksResponse{Commodity: commodity, Year: year, AllCountries: all})
}

// groupParams reads commodity and year, writing a 400 and returning false
// when either is missing or malformed.
func groupParams(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	q := r.URL.Query()
	// Source keys are trimmed and NFC-normalized on load; match them the same way.
	commodity := norm.NFC.String(strings.TrimSpace(q.Get("commodity")))
	if commodity == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "commodity is required"})
		return "", 0, false
	}
	year, err := strconv.Atoi(strings.TrimSpace(q.Get("year")))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "year must be an integer"})
		return "", 0, false
	}
	return commodity, year, true
}

// parseTopN applies fallback only when top_n is absent. Zero is a valid
// request for an empty list.
func parseTopN(raw string, fallback int) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, query.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: notFoundMessage})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
