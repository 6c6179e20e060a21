package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"

	"github.com/logmill/grokc/grok"
	"github.com/logmill/grokc/internal/rules"
)

// compiledSet pairs a stored pattern set with its compiled form. The
// compiled slice, prefilter and issue list are immutable; a recompile
// replaces the whole entry under the registry lock.
type compiledSet struct {
	set       rules.PatternSet
	rules     []grok.GrokRule
	prefilter *grok.Prefilter
	issues    []grok.CompileIssue
}

type AppServer struct {
	db   *sql.DB
	mu   sync.RWMutex // protects sets swap
	sets map[string]*compiledSet
}

func NewAppServer(db *sql.DB) *AppServer {
	return &AppServer{db: db, sets: make(map[string]*compiledSet)}
}

// RegisterRoutes wires HTTP handlers.
func (s *AppServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/patternsets", s.handlePatternSets)
	mux.HandleFunc("/api/v1/parse", s.handleParse)
}

func (s *AppServer) currentSet(name string) (*compiledSet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cs, ok := s.sets[name]
	return cs, ok
}

func (s *AppServer) swapSet(cs *compiledSet) {
	s.mu.Lock()
	s.sets[cs.set.Name] = cs
	s.mu.Unlock()
}

// compileSet builds the registry entry for one pattern set.
func compileSet(ps rules.PatternSet) *compiledSet {
	compiled, issues := grok.CompileRules(ps.Patterns, ps.Aliases)
	return &compiledSet{
		set:       ps,
		rules:     compiled,
		prefilter: grok.NewPrefilter(compiled),
		issues:    issues,
	}
}

// ---- Handlers ----

func (s *AppServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *AppServer) handleStats(w http.ResponseWriter, r *http.Request) {
	type setStats struct {
		RuleCount int                 `json:"rule_count"`
		Issues    int                 `json:"issues"`
		Prefilter grok.PrefilterStats `json:"prefilter"`
	}
	type statsResp struct {
		SetCount  int                 `json:"set_count"`
		RuleCount int                 `json:"rule_count"`
		Sets      map[string]setStats `json:"sets"`
	}
	resp := statsResp{Sets: make(map[string]setStats)}
	s.mu.RLock()
	for name, cs := range s.sets {
		resp.SetCount++
		resp.RuleCount += len(cs.rules)
		resp.Sets[name] = setStats{
			RuleCount: len(cs.rules),
			Issues:    len(cs.issues),
			Prefilter: cs.prefilter.Stats(),
		}
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, resp)
}

// handlePatternSets supports GET (list loaded sets) and POST (upsert
// one set). POST body is a rules.PatternSet as JSON.
func (s *AppServer) handlePatternSets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		type setInfo struct {
			Name      string `json:"name"`
			Patterns  int    `json:"patterns"`
			RuleCount int    `json:"rule_count"`
			Issues    int    `json:"issues"`
		}
		out := []setInfo{}
		s.mu.RLock()
		for name, cs := range s.sets {
			out = append(out, setInfo{
				Name:      name,
				Patterns:  len(cs.set.Patterns),
				RuleCount: len(cs.rules),
				Issues:    len(cs.issues),
			})
		}
		s.mu.RUnlock()
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		writeJSON(w, http.StatusOK, out)
		return

	case http.MethodPost:
		var ps rules.PatternSet
		if err := json.NewDecoder(r.Body).Decode(&ps); err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
			return
		}
		if ps.Name == "" {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("pattern set without a name"))
			return
		}
		cs := compileSet(ps)
		if s.db != nil {
			if err := s.UpsertPatternSet(r.Context(), ps); err != nil {
				writeErr(w, http.StatusInternalServerError, err)
				return
			}
		}
		s.swapSet(cs)
		type issue struct {
			Index   int    `json:"index"`
			Pattern string `json:"pattern"`
			Error   string `json:"error"`
		}
		issues := make([]issue, 0, len(cs.issues))
		for _, it := range cs.issues {
			issues = append(issues, issue{Index: it.Index, Pattern: it.Pattern, Error: it.Err.Error()})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"name":   ps.Name,
			"rules":  len(cs.rules),
			"issues": issues,
		})
		return

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
}

// handleParse runs one line through a named set.
// POST body: { "set": "...", "line": "..." }
func (s *AppServer) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Set  string `json:"set"`
		Line string `json:"line"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	cs, ok := s.currentSet(req.Set)
	if !ok {
		writeErr(w, http.StatusNotFound, fmt.Errorf("unknown pattern set %q", req.Set))
		return
	}
	event, matched := cs.prefilter.Match(cs.rules, req.Line)
	if !matched {
		writeJSON(w, http.StatusOK, map[string]any{"matched": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matched": true, "event": event})
}

// ---- Helpers ----

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON error: %v", err)
	}
}

func writeErr(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{"error": err.Error()})
}
