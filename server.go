package excelgrid

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
)

// Server exposes one grid over the viewer HTTP API: the projection at
// GET /api/sheet, cell edits at PUT /api/update, and workbook export at
// POST /api/save. A mutex serializes handlers, edits mutate the grid in
// place.
//
// snapshot caches the latest evaluation; reads reuse it and edits drop it,
// so only the first read after an edit pays for evaluation.
type Server struct {
	mu       sync.Mutex
	grid     *Grid
	snapshot *Grid
	store    *Store
}

func NewServer(g *Grid) *Server {
	return &Server{grid: g}
}

// WithStore makes the server persist the grid after every accepted edit, so
// a restarted viewer resumes from the edited state.
func (s *Server) WithStore(store *Store) *Server {
	s.store = store
	return s
}

// Handler returns the route mux for the API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sheet", s.handleSheet)
	mux.HandleFunc("PUT /api/update", s.handleUpdate)
	mux.HandleFunc("POST /api/save", s.handleSave)
	return mux
}

// project builds the view against the cached snapshot, evaluating only when
// an edit invalidated it. Partial evaluation failures are fine here: failed
// cells carry their display code, which is exactly what the viewer should
// show.
func (s *Server) project() *GridView {
	if s.snapshot == nil {
		snapshot, err := s.grid.Evaluate()
		var evalErr *EvalError
		if err != nil && !errors.As(err, &evalErr) {
			snapshot = nil
		}
		s.snapshot = snapshot
	}
	return Project(s.grid, s.snapshot)
}

func (s *Server) handleSheet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.project())
}

type updateRequest struct {
	Pos   [2]int `json:"pos"`
	Value string `json:"value"`
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	addr := FormatAddress(Position{Row: req.Pos[0], Col: req.Pos[1]})
	if err := UpdateCell(s.grid, addr, req.Value); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.snapshot = nil
	if s.store != nil {
		if err := s.store.SaveGrid(s.grid); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, s.project())
}

type saveRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, errors.New("path is required"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := WriteXlsx(s.grid, req.Path); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": req.Path})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
