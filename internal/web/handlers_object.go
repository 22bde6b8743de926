package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/netgrid-io/netgrid/internal/object"
)

type objectPayload struct {
	ID         int64                  `json:"id"`
	ClassName  string                 `json:"className"`
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes"`
}

func objectToPayload(o *object.BusinessObject) objectPayload {
	return objectPayload{
		ID:         o.ID,
		ClassName:  o.ClassName,
		Name:       o.Name,
		Attributes: o.Attributes,
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func (s *Server) handleCreateObject(w http.ResponseWriter, r *http.Request) {
	var p struct {
		ClassName  string              `json:"className"`
		ParentID   int64               `json:"parentId"`
		Attributes map[string][]string `json:"attributes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	id, err := s.objects.CreateObject(r.Context(), p.ClassName, p.ParentID, p.Attributes)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid object id")
		return
	}

	obj, err := s.objects.GetObject(r.Context(), chi.URLParam(r, "className"), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, objectToPayload(obj))
}

func (s *Server) handleUpdateObject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid object id")
		return
	}

	var p struct {
		Attributes map[string][]string `json:"attributes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := s.objects.UpdateObject(r.Context(), chi.URLParam(r, "className"), id, p.Attributes); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid object id")
		return
	}

	release := r.URL.Query().Get("releaseRelationships") == "true"
	if err := s.objects.DeleteObject(r.Context(), chi.URLParam(r, "className"), id, release); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetChildren(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid object id")
		return
	}

	// The class segment scopes the URL; children are fetched by node.
	if _, err := s.objects.GetObject(r.Context(), chi.URLParam(r, "className"), id); err != nil {
		writeDomainError(w, err)
		return
	}

	children, err := s.objects.GetChildren(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]objectPayload, 0, len(children))
	for _, c := range children {
		out = append(out, objectToPayload(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateListTypeItem(w http.ResponseWriter, r *http.Request) {
	var p struct {
		ClassName   string `json:"className"`
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	id, err := s.objects.CreateListTypeItem(r.Context(), p.ClassName, p.Name, p.DisplayName)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleGetListTypeItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.objects.GetListTypeItems(r.Context(), chi.URLParam(r, "className"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
