package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rankline/seo-cli/internal/model"
	"github.com/rankline/seo-cli/internal/pipeline"
	"github.com/rankline/seo-cli/internal/quota"
	"github.com/rankline/seo-cli/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, map[string]string{"status": "ok"})
}

// checkQuota enforces the gate for one operation class. It writes the 429
// response itself and reports whether the caller may proceed.
func (s *Server) checkQuota(w http.ResponseWriter, r *http.Request, op quota.OpClass) bool {
	d := s.gate.Check(r.Context(), identityFrom(r), op)
	if !d.Allowed {
		writeError(w, http.StatusTooManyRequests, "usage quota exceeded: "+d.Reason)
		return false
	}
	return true
}

// providerReady reports whether every upstream credential the operation
// needs is present. A missing credential is an operator problem, not a
// caller problem: fixed 500, no quota consumed.
func providerReady(w http.ResponseWriter, keys ...string) bool {
	for _, k := range keys {
		if k == "" {
			writeError(w, http.StatusInternalServerError, "provider not configured")
			return false
		}
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if !providerReady(w, s.cfg.Firecrawl.Key) {
		return
	}
	if !s.checkQuota(w, r, quota.OpScrape) {
		return
	}

	result, err := s.pipeline.Scrape(r.Context(), model.NormalizeURL(req.URL))
	if err != nil {
		writeOpError(w, err)
		return
	}
	s.gate.Record(r.Context(), identityFrom(r), quota.OpScrape)
	writeData(w, result)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content string `json:"content"`
		URL     string `json:"url"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if !providerReady(w, s.cfg.Anthropic.Key) {
		return
	}
	if !s.checkQuota(w, r, quota.OpAnalyze) {
		return
	}

	analysis, _, err := s.pipeline.Analyze(r.Context(), req.Content, model.NormalizeURL(req.URL))
	if err != nil {
		writeOpError(w, err)
		return
	}
	s.gate.Record(r.Context(), identityFrom(r), quota.OpAnalyze)
	writeData(w, analysis)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query      string `json:"query"`
		CompanyURL string `json:"companyUrl"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if !providerReady(w, s.cfg.Perplexity.Key) {
		return
	}
	if !s.checkQuota(w, r, quota.OpSearch) {
		return
	}

	result, err := s.pipeline.Search(r.Context(), req.Query, req.CompanyURL)
	if err != nil {
		writeOpError(w, err)
		return
	}
	s.gate.Record(r.Context(), identityFrom(r), quota.OpSearch)
	writeData(w, result)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query              string `json:"query"`
		CompanyDescription string `json:"companyDescription"`
		TargetAudience     string `json:"targetAudience"`
		CompanyURL         string `json:"companyUrl"`
		CurrentContent     string `json:"currentContent"`
		CompetitorAnalysis string `json:"competitorAnalysis"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if !providerReady(w, s.cfg.Anthropic.Key) {
		return
	}
	if !s.checkQuota(w, r, quota.OpGenerate) {
		return
	}

	guideline, content, _, err := s.pipeline.GenerateQueryContent(r.Context(), pipeline.GenerateRequest{
		Query:              req.Query,
		CompanyDescription: req.CompanyDescription,
		TargetAudience:     req.TargetAudience,
		CompanyURL:         req.CompanyURL,
		CurrentContent:     req.CurrentContent,
		CompetitorAnalysis: req.CompetitorAnalysis,
	})
	if err != nil {
		writeOpError(w, err)
		return
	}
	s.gate.Record(r.Context(), identityFrom(r), quota.OpGenerate)
	writeData(w, model.QueryContent{
		Query:     req.Query,
		Guideline: guideline,
		Content:   content,
	})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	// Unconfigured comparison providers surface per-slot as unavailable,
	// so there is no readiness check here.
	if !s.checkQuota(w, r, quota.OpSearch) {
		return
	}

	cmp := s.pipeline.CompareAcrossModels(r.Context(), req.Query)
	s.gate.Record(r.Context(), identityFrom(r), quota.OpSearch)
	writeData(w, cmp)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusInternalServerError, "run storage is not configured")
		return
	}

	filter := store.RunFilter{
		ProfileID: r.URL.Query().Get("profile"),
		URL:       r.URL.Query().Get("url"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusInternalServerError, "run storage is not configured")
		return
	}

	artifact, err := s.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, artifact)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusInternalServerError, "run storage is not configured")
		return
	}

	if err := s.store.DeleteRun(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeOpError(w, err)
		return
	}
	writeData(w, map[string]string{"deleted": chi.URLParam(r, "id")})
}
