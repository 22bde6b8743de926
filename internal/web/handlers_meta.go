package web

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/netgrid-io/netgrid/internal/meta"
)

type attributePayload struct {
	Name         string `json:"name"`
	DisplayName  string `json:"displayName"`
	Description  string `json:"description"`
	Type         string `json:"type"`
	Visible      bool   `json:"visible"`
	Mandatory    bool   `json:"mandatory"`
	Multiple     bool   `json:"multiple"`
	Unique       bool   `json:"unique"`
	ReadOnly     bool   `json:"readOnly"`
	NoCopy       bool   `json:"noCopy"`
	DisplayOrder int    `json:"displayOrder"`
}

type classPayload struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	DisplayName string             `json:"displayName"`
	Description string             `json:"description"`
	Parent      string             `json:"parent"`
	Abstract    bool               `json:"abstract"`
	Custom      bool               `json:"custom"`
	Countable   bool               `json:"countable"`
	InDesign    bool               `json:"inDesign"`
	Color       int                `json:"color"`
	Attributes  []attributePayload `json:"attributes,omitempty"`
}

func classToPayload(def *meta.ClassDefinition) classPayload {
	p := classPayload{
		ID:          def.ID,
		Name:        def.Name,
		DisplayName: def.DisplayName,
		Description: def.Description,
		Parent:      def.Parent,
		Abstract:    def.Abstract,
		Custom:      def.Custom,
		Countable:   def.Countable,
		InDesign:    def.InDesign,
		Color:       def.Color,
	}
	for _, a := range def.Attributes {
		p.Attributes = append(p.Attributes, attributePayload{
			Name:         a.Name,
			DisplayName:  a.DisplayName,
			Description:  a.Description,
			Type:         a.Type.String(),
			Visible:      a.Visible,
			Mandatory:    a.Mandatory,
			Multiple:     a.Multiple,
			Unique:       a.Unique,
			ReadOnly:     a.ReadOnly,
			NoCopy:       a.NoCopy,
			DisplayOrder: a.DisplayOrder,
		})
	}
	return p
}

func attributeFromPayload(p attributePayload) *meta.AttributeDefinition {
	return &meta.AttributeDefinition{
		Name:         p.Name,
		DisplayName:  p.DisplayName,
		Description:  p.Description,
		Type:         meta.ParseAttributeType(p.Type),
		Visible:      p.Visible,
		Mandatory:    p.Mandatory,
		Multiple:     p.Multiple,
		Unique:       p.Unique,
		ReadOnly:     p.ReadOnly,
		NoCopy:       p.NoCopy,
		DisplayOrder: p.DisplayOrder,
	}
}

func (s *Server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	includeListTypes := r.URL.Query().Get("includeListTypes") == "true"
	includeInDesign := r.URL.Query().Get("includeInDesign") == "true"

	classes, err := s.meta.GetAllClasses(r.Context(), includeListTypes, includeInDesign)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]classPayload, 0, len(classes))
	for _, c := range classes {
		out = append(out, classToPayload(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateClass(w http.ResponseWriter, r *http.Request) {
	var p classPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	def := &meta.ClassDefinition{
		Name:        p.Name,
		DisplayName: p.DisplayName,
		Description: p.Description,
		Parent:      p.Parent,
		Abstract:    p.Abstract,
		Custom:      true,
		Countable:   p.Countable,
		InDesign:    p.InDesign,
		Color:       p.Color,
	}
	for _, ap := range p.Attributes {
		def.Attributes = append(def.Attributes, attributeFromPayload(ap))
	}

	id, err := s.meta.CreateClass(r.Context(), def)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleGetClass(w http.ResponseWriter, r *http.Request) {
	def, err := s.meta.GetClass(r.Context(), chi.URLParam(r, "className"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, classToPayload(def))
}

func (s *Server) handleUpdateClass(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Name        *string `json:"name"`
		DisplayName *string `json:"displayName"`
		Description *string `json:"description"`
		Abstract    *bool   `json:"abstract"`
		InDesign    *bool   `json:"inDesign"`
		Countable   *bool   `json:"countable"`
		Color       *int    `json:"color"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	err := s.meta.SetClassProperties(r.Context(), chi.URLParam(r, "className"), meta.ClassProperties{
		Name:        p.Name,
		DisplayName: p.DisplayName,
		Description: p.Description,
		Abstract:    p.Abstract,
		InDesign:    p.InDesign,
		Countable:   p.Countable,
		Color:       p.Color,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteClass(w http.ResponseWriter, r *http.Request) {
	if err := s.meta.DeleteClass(r.Context(), chi.URLParam(r, "className")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSubClasses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	classes, err := s.meta.GetSubClasses(r.Context(), chi.URLParam(r, "className"),
		q.Get("recursive") != "false",
		q.Get("includeAbstract") == "true",
		q.Get("includeSelf") == "true")
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out := make([]classPayload, 0, len(classes))
	for _, c := range classes {
		out = append(out, classToPayload(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateAttribute(w http.ResponseWriter, r *http.Request) {
	var p attributePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	id, err := s.meta.CreateAttribute(r.Context(), chi.URLParam(r, "className"), attributeFromPayload(p))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleUpdateAttribute(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Name        *string `json:"name"`
		DisplayName *string `json:"displayName"`
		Description *string `json:"description"`
		Type        *string `json:"type"`
		Visible     *bool   `json:"visible"`
		Mandatory   *bool   `json:"mandatory"`
		Multiple    *bool   `json:"multiple"`
		Unique      *bool   `json:"unique"`
		ReadOnly    *bool   `json:"readOnly"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	props := meta.AttributeProperties{
		Name:        p.Name,
		DisplayName: p.DisplayName,
		Description: p.Description,
		Visible:     p.Visible,
		Mandatory:   p.Mandatory,
		Multiple:    p.Multiple,
		Unique:      p.Unique,
		ReadOnly:    p.ReadOnly,
	}
	if p.Type != nil {
		typ := meta.ParseAttributeType(*p.Type)
		props.Type = &typ
	}

	err := s.meta.SetAttributeProperties(r.Context(), chi.URLParam(r, "className"), chi.URLParam(r, "attrName"), props)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAttribute(w http.ResponseWriter, r *http.Request) {
	err := s.meta.DeleteAttribute(r.Context(), chi.URLParam(r, "className"), chi.URLParam(r, "attrName"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPossibleChildren(w http.ResponseWriter, r *http.Request) {
	className := chi.URLParam(r, "className")
	if className == "root" {
		className = ""
	}

	var (
		children []string
		err      error
	)
	if r.URL.Query().Get("recursive") == "false" {
		children, err = s.meta.GetPossibleChildrenNoRecursive(r.Context(), className)
	} else {
		children, err = s.meta.GetPossibleChildren(r.Context(), className)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}

func (s *Server) handleAddPossibleChildren(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Children []string `json:"children"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	className := chi.URLParam(r, "className")
	if className == "root" {
		className = ""
	}

	if err := s.meta.AddPossibleChildren(r.Context(), className, p.Children...); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
