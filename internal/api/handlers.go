package api

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/outpost-sim/depot/internal/registry"
	"github.com/outpost-sim/depot/internal/table"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
	})
}

// handleListPaths handles POST /listpaths.
func (s *Server) handleListPaths(w http.ResponseWriter, r *http.Request) {
	var req listPathsRequest
	if !s.decode(w, r, &req) || !s.authorize(w, req.User, req.Token) {
		return
	}

	paths, err := s.store.ListPaths(req.User, req.Pattern)
	if err != nil {
		respondJSON(w, http.StatusOK, listPathsResponse{Paths: []string{}, Message: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, listPathsResponse{Paths: paths, Status: true, Message: "Paths listed"})
}

// handleInfo handles POST /info.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	var req infoRequest
	if !s.decode(w, r, &req) || !s.authorize(w, req.User, req.Token) {
		return
	}

	paths, err := req.pathList()
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sel, err := registry.NewSelector(paths, req.Pattern)
	if err != nil {
		respondJSON(w, http.StatusOK, infoResponse{Infos: []registry.Entry{}, Message: err.Error()})
		return
	}

	infos, err := s.store.Info(req.User, sel)
	if err != nil {
		respondJSON(w, http.StatusOK, infoResponse{Infos: []registry.Entry{}, Message: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, infoResponse{Infos: infos, Status: true, Message: "Info found"})
}

// handleFetch handles POST /fetch. With url=true the response carries a
// locator for the GET endpoint; otherwise the artifact content itself,
// base64-encoded for JSON transport.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if !s.decode(w, r, &req) || !s.authorize(w, req.User, req.Token) {
		return
	}

	if req.URL {
		ref, err := s.store.FetchRef(req.User, req.Path)
		if err != nil {
			respondJSON(w, http.StatusOK, fetchResponse{Message: err.Error()})
			return
		}
		respondJSON(w, http.StatusOK, fetchResponse{File: ref, Status: true, Message: "File fetched"})
		return
	}

	data, err := s.store.Fetch(req.User, req.Path)
	if err != nil {
		respondJSON(w, http.StatusOK, fetchResponse{Message: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, fetchResponse{
		File:    base64.StdEncoding.EncodeToString(data),
		Status:  true,
		Message: "File fetched",
	})
}

// handleFetchFile handles GET /fetch?file=<rel>: streams raw artifact bytes
// with a detected Content-Type. Locators escaping the artifact root are
// rejected.
func (s *Server) handleFetchFile(w http.ResponseWriter, r *http.Request) {
	files, ok := r.URL.Query()["file"]
	if !ok || len(files) != 1 {
		s.writeError(w, http.StatusBadRequest, "Exactly one file may be fetched!")
		return
	}

	rel := filepath.Clean(files[0])
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		s.writeError(w, http.StatusBadRequest, "File not found")
		return
	}
	full := filepath.Join(s.store.SimsDir(), rel)

	st, err := os.Stat(full)
	if err != nil || !st.Mode().IsRegular() {
		s.writeError(w, http.StatusBadRequest, "File not found")
		return
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(full); err == nil {
		contentType = mt.String()
	}

	f, err := os.Open(full)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Error("artifact stream interrupted", "file", rel, "error", err)
	}
}

// handleDelete handles POST /delete.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !s.decode(w, r, &req) || !s.authorize(w, req.User, req.Token) {
		return
	}

	if err := s.store.Delete(req.User, req.Path); err != nil {
		respondJSON(w, http.StatusOK, statusResponse{Message: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: true, Message: "Path deleted"})
}

// handleRegister handles POST /register (admin): drops a pending record that
// the next reconciliation merges into the user's registry. Omitted holding
// means hold forever.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) || !s.authorizeAdmin(w, req.User, req.Token) {
		return
	}

	holding := registry.Infinite()
	if req.Holding != nil {
		holding = *req.Holding
	}
	file := req.File
	if file != "" && !filepath.IsAbs(file) {
		file = filepath.Join(s.store.SimsDir(), file)
	}

	pending, err := s.store.WritePending(registry.Entry{
		Path:    req.Path,
		File:    file,
		User:    req.User,
		JobID:   req.JobID,
		Holding: holding,
	})
	if err != nil {
		respondJSON(w, http.StatusOK, registerResponse{Message: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, registerResponse{Pending: pending, Status: true, Message: "Path registered"})
}

// handleGC handles POST /gc (admin): sweeps every user registry.
func (s *Server) handleGC(w http.ResponseWriter, r *http.Request) {
	var req gcRequest
	if !s.decode(w, r, &req) || !s.authorizeAdmin(w, req.User, req.Token) {
		return
	}

	if msgs := s.store.GC(); len(msgs) > 0 {
		respondJSON(w, http.StatusOK, statusResponse{Message: strings.Join(msgs, "; ")})
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: true, Message: "Garbage collected"})
}

// handleTable handles POST /table: reads a named table out of the artifact
// behind a registered path.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	var req tableRequest
	if !s.decode(w, r, &req) || !s.authorize(w, req.User, req.Token) {
		return
	}

	orient, err := table.ParseOrientation(req.Orient)
	if err != nil {
		respondJSON(w, http.StatusOK, tableResponse{Message: err.Error()})
		return
	}

	infos, err := s.store.Info(req.User, registry.SelectPaths(req.Path))
	if err != nil {
		respondJSON(w, http.StatusOK, tableResponse{Message: err.Error()})
		return
	}
	if len(infos) == 0 {
		respondJSON(w, http.StatusOK, tableResponse{Message: "path " + req.Path + ": path is not registered"})
		return
	}

	tbl, err := table.Read(r.Context(), infos[0].File, req.Table, req.Conditions)
	if err != nil {
		respondJSON(w, http.StatusOK, tableResponse{Message: err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, tableResponse{Table: tbl.Render(orient), Status: true, Message: "Table read"})
}

// decode parses the JSON request body; a malformed body is a transport-level
// failure, not a status=false envelope.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// authorize verifies the in-body credential.
func (s *Server) authorize(w http.ResponseWriter, user, token string) bool {
	if !s.verifier.Verify(user, token) {
		s.writeError(w, http.StatusUnauthorized, "invalid user or token")
		return false
	}
	return true
}

// authorizeAdmin verifies the credential and requires the admin flag.
func (s *Server) authorizeAdmin(w http.ResponseWriter, user, token string) bool {
	if !s.authorize(w, user, token) {
		return false
	}
	if !s.verifier.IsAdmin(user) {
		s.writeError(w, http.StatusForbidden, "admin credential required")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
