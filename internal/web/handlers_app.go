package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/netgrid-io/netgrid/internal/query"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var p struct {
		UserName string `json:"userName"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, err := s.services.Authenticate(r.Context(), p.UserName, p.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	token, err := s.auth.GenerateToken(strconv.FormatInt(user.ID, 10), user.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue session token")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"token": token})
}

func (s *Server) handleExecuteQuery(w http.ResponseWriter, r *http.Request) {
	var desc query.Descriptor
	if err := json.NewDecoder(r.Body).Decode(&desc); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	records, err := s.engine.Execute(r.Context(), &desc)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	queries, err := s.services.GetQueries(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queries)
}

func (s *Server) handleCreateQuery(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Name        string            `json:"name"`
		Description string            `json:"description"`
		Descriptor  *query.Descriptor `json:"descriptor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Descriptor == nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	id, err := s.services.CreateQuery(r.Context(), p.Name, p.Description, p.Descriptor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleDeleteQuery(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid query id")
		return
	}
	if err := s.services.DeleteQuery(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetRootPools(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	poolType := -1
	if v := q.Get("type"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid pool type")
			return
		}
		poolType = n
	}

	pools, err := s.services.GetRootPools(r.Context(), q.Get("className"), poolType, q.Get("includeSubclasses") == "true")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pools)
}

func (s *Server) handleCreatePool(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Name             string `json:"name"`
		Description      string `json:"description"`
		InstancesOfClass string `json:"instancesOfClass"`
		Type             int    `json:"type"`
		ParentPoolID     int64  `json:"parentPoolId"`
		ParentClassName  string `json:"parentClassName"`
		ParentObjectID   int64  `json:"parentObjectId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var (
		id  int64
		err error
	)
	switch {
	case p.ParentPoolID != 0:
		id, err = s.services.CreatePoolInPool(r.Context(), p.ParentPoolID, p.Name, p.Description, p.InstancesOfClass, p.Type)
	case p.ParentObjectID != 0:
		id, err = s.services.CreatePoolInObject(r.Context(), p.ParentClassName, p.ParentObjectID, p.Name, p.Description, p.InstancesOfClass, p.Type)
	default:
		id, err = s.services.CreateRootPool(r.Context(), p.Name, p.Description, p.InstancesOfClass, p.Type)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}

	pool, err := s.services.GetPool(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pool)
}

func (s *Server) handleDeletePool(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid pool id")
		return
	}
	if err := s.services.DeletePool(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.services.GetTasks(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Script      string `json:"script"`
		Enabled     bool   `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	id, err := s.services.CreateTask(r.Context(), p.Name, p.Description, p.Script, p.Enabled)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	if err := s.services.DeleteTask(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
