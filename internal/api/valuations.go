package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/meridian/internal/export"
	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/store"
	"github.com/sells-group/meridian/internal/valuation"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) runValuation(w http.ResponseWriter, r *http.Request) {
	var req valuation.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.deps.Valuations.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) listValuations(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	vs, err := s.deps.Valuations.List(r.Context(), store.ValuationFilter{
		CompanyID: q.Get("company_id"),
		Method:    model.ValuationMethod(q.Get("method")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if vs == nil {
		vs = []model.Valuation{}
	}
	writeJSON(w, http.StatusOK, vs)
}

func (s *Server) getValuation(w http.ResponseWriter, r *http.Request) {
	v, err := s.deps.Valuations.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) addOverride(w http.ResponseWriter, r *http.Request) {
	var req valuation.OverrideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	o, err := s.deps.Valuations.AddOverride(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) listOverrides(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Valuations.ListOverrides(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []model.ValuationOverride{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) effectiveValuation(w http.ResponseWriter, r *http.Request) {
	ev, err := s.deps.Valuations.Effective(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) exportValuation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	v, err := s.deps.Valuations.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	overrides, err := s.deps.Valuations.ListOverrides(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := export.ValuationWorkbook(v, overrides)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "valuation-"+v.ID+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// computeScenario runs an exit scenario without storing anything.
func (s *Server) computeScenario(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	in, err := valuation.ParseScenarioInputs(body)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := valuation.RunScenario(in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) saveScenario(w http.ResponseWriter, r *http.Request) {
	var req valuation.ScenarioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sc, err := s.deps.Valuations.SaveScenario(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (s *Server) listScenarios(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.deps.Valuations.ListScenarios(r.Context(), store.ScenarioFilter{
		CompanyID: r.URL.Query().Get("company_id"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if out == nil {
		out = []model.Scenario{}
	}
	writeJSON(w, http.StatusOK, out)
}
