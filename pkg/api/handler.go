package api

import (
	"encoding/json"
	"net/http"

	"github.com/hazyhaar/medrecon/pkg/kit"
)

// NewRouter returns an http.Handler with all engine API routes.
func NewRouter(e *Engine) http.Handler {
	mux := http.NewServeMux()
	h := &handler{
		importFile:   importEndpoint(e),
		scan:         scanEndpoint(e),
		propose:      proposeEndpoint(e),
		executeMerge: executeEndpoint(e),
		engine:       e,
	}

	mux.HandleFunc("POST /v1/import", h.handleImport)
	mux.HandleFunc("POST /v1/duplicates/scan", h.handleScan)
	mux.HandleFunc("POST /v1/merge/propose", h.handlePropose)
	mux.HandleFunc("POST /v1/merge/execute", h.handleExecute)
	mux.HandleFunc("GET /v1/health", h.handleHealth)

	return cors(mux)
}

type handler struct {
	importFile   kit.Endpoint
	scan         kit.Endpoint
	propose      kit.Endpoint
	executeMerge kit.Endpoint
	engine       *Engine
}

func (h *handler) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importReq
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := h.importFile(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleScan(w http.ResponseWriter, r *http.Request) {
	resp, err := h.scan(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handlePropose(w http.ResponseWriter, r *http.Request) {
	var req proposeReq
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := h.propose(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeReq
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := h.executeMerge(r.Context(), &req)
	if err != nil {
		// Lock conflicts and storage failures both land here; the merge
		// aborted before anything destructive.
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status   string   `json:"status"`
	Formats  []string `json:"formats"`
	Patients int      `json:"patients"`
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	patients, err := h.engine.Patients.GetAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Formats:  formatIDs(),
		Patients: len(patients),
	})
}

// --- helpers ---

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 256*1024)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// cors is a simple CORS middleware for browser-based clients.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
