package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clausevault/clausevault/internal/clauseerr"
	"github.com/clausevault/clausevault/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docCount, err := s.catalog.CountDocuments(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	chunkCount, err := s.catalog.CountChunks(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	pending, err := s.catalog.ListDocumentsByStatus(ctx, models.StatusPending)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents":         docCount,
		"chunks":            chunkCount,
		"pending_documents": len(pending),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var input models.SearchPolicyClauseInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.TopK == 0 {
		input.TopK = 5
	}
	if input.MinSimilarity == 0 {
		input.MinSimilarity = -1
	}
	s.logger.Debug("diagnostic search", zap.String("query", input.Query))
	results, err := s.service.SearchPolicyClause(r.Context(), input)
	if err != nil {
		s.respondToolError(w, err)
		return
	}
	if results == nil {
		results = []models.ClauseResult{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name != "" {
		products, err := s.service.LookupProduct(r.Context(), models.LookupProductInput{
			ProductName: name,
			Company:     r.URL.Query().Get("company"),
			TopK:        10,
		})
		if err != nil {
			s.respondToolError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"products": products})
		return
	}
	products, err := s.catalog.ListProducts(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.catalog.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.pipeline.DeleteDocument(r.Context(), id); err != nil {
		s.respondToolError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type reviewRequest struct {
	Notes string `json:"notes"`
	// Reindex triggers ingestion immediately after a successful verify.
	Reindex bool `json:"reindex"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req reviewRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if err := s.catalog.MarkVerified(r.Context(), id, req.Notes); err != nil {
		s.respondToolError(w, err)
		return
	}
	if req.Reindex {
		if err := s.pipeline.IngestDocument(r.Context(), id); err != nil {
			s.logger.Error("ingest after verify failed", zap.String("id", id), zap.Error(err))
			s.respondToolError(w, err)
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "VERIFIED"})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req reviewRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if err := s.catalog.MarkRejected(r.Context(), id, req.Notes); err != nil {
		s.respondToolError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "REJECTED"})
}

func (s *Server) handleResubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.catalog.Resubmit(r.Context(), id); err != nil {
		s.respondToolError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "PENDING"})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	indexed, failed, err := s.pipeline.RebuildAll(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"indexed": indexed, "failed": failed})
}

// respondToolError maps core error kinds onto HTTP statuses.
func (s *Server) respondToolError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch clauseerr.KindOf(err) {
	case clauseerr.InvalidInput:
		status = http.StatusBadRequest
	case clauseerr.NotFound:
		status = http.StatusNotFound
	case clauseerr.Timeout:
		status = http.StatusGatewayTimeout
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
