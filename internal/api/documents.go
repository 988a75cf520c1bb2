package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/meridian/internal/ingest"
	"github.com/sells-group/meridian/internal/model"
	"github.com/sells-group/meridian/internal/store"
)

// multipartMemory is how much of a multipart upload is held in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, r, eris.Wrapf(errBadRequest, "parse multipart form: %v", err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll() //nolint:errcheck
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, eris.Wrap(errBadRequest, "file is required"))
		return
	}
	defer file.Close() //nolint:errcheck

	doc, err := s.deps.Documents.Upload(r.Context(), ingest.UploadRequest{
		Filename:     header.Filename,
		CompanyID:    r.FormValue("company_id"),
		DocumentType: model.DocumentType(r.FormValue("document_type")),
		Content:      file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	offset, limit, err := pagination(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	docs, err := s.deps.Documents.ListDocuments(r.Context(), store.DocumentFilter{
		CompanyID:    q.Get("company_id"),
		Status:       model.ProcessingStatus(q.Get("status")),
		DocumentType: model.DocumentType(q.Get("document_type")),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []model.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.deps.Documents.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Documents.DeleteDocument(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// extractDocument runs the pipeline synchronously. A failed run has already
// been recorded on the document; the response still reports the failure.
func (s *Server) extractDocument(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Documents.Process(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) listExtractions(w http.ResponseWriter, r *http.Request) {
	ex, err := s.deps.Documents.ListExtractions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ex == nil {
		ex = []model.Extraction{}
	}
	writeJSON(w, http.StatusOK, ex)
}

func (s *Server) reviewExtraction(w http.ResponseWriter, r *http.Request) {
	var req ingest.ReviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ex, err := s.deps.Documents.ReviewExtraction(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ex)
}
