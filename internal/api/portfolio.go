package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/portfolio"
	"github.com/sells-group/meridian/internal/store"
)

func (s *Server) portfolioSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.Portfolio.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) createFund(w http.ResponseWriter, r *http.Request) {
	var req portfolio.FundRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.deps.Portfolio.CreateFund(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) listFunds(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	fs, err := s.deps.Portfolio.ListFunds(r.Context(), store.FundFilter{
		Status: model.FundStatus(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if fs == nil {
		fs = []model.Fund{}
	}
	writeJSON(w, http.StatusOK, fs)
}

func (s *Server) getFund(w http.ResponseWriter, r *http.Request) {
	f, err := s.deps.Portfolio.GetFund(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) updateFund(w http.ResponseWriter, r *http.Request) {
	var p portfolio.FundPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.deps.Portfolio.UpdateFund(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) deleteFund(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Portfolio.DeleteFund(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createCompany(w http.ResponseWriter, r *http.Request) {
	var req portfolio.CompanyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.deps.Portfolio.CreateCompany(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) listCompanies(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	cs, err := s.deps.Portfolio.ListCompanies(r.Context(), store.CompanyFilter{
		FundID: q.Get("fund_id"),
		Status: model.CompanyStatus(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) getCompany(w http.ResponseWriter, r *http.Request) {
	c, err := s.deps.Portfolio.GetCompany(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) updateCompany(w http.ResponseWriter, r *http.Request) {
	var p portfolio.CompanyPatch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.deps.Portfolio.UpdateCompany(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
