package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/models"
	"github.com/kitchenops/checklists/internal/services"
)

type cloneReq struct {
	Name               string `json:"name" validate:"required,max=255"`
	IncludeItems       bool   `json:"includeItems"`
	IncludeConnections bool   `json:"includeConnections"`
}

type cloneResp struct {
	Template  models.Template `json:"template"`
	ItemCount int             `json:"itemCount"`
}

// POST /admin/templates
func CreateTemplate(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in services.TemplateInput
		if !decode(w, r, &in) {
			return
		}
		tpl, err := services.CreateTemplate(r.Context(), gdb, principal(r), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, tpl)
	}
}

// GET /admin/templates/{id}
func GetTemplate(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "id")
		if !ok {
			return
		}
		tree, err := services.GetTemplateTree(r.Context(), gdb, principal(r), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tree)
	}
}

// POST /admin/templates/{id}/clone
func CloneTemplate(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "id")
		if !ok {
			return
		}
		var in cloneReq
		if !decode(w, r, &in) {
			return
		}
		res, err := services.CloneTemplate(r.Context(), gdb, principal(r), id, in.Name, services.CloneOptions{
			IncludeItems:       in.IncludeItems,
			IncludeConnections: in.IncludeConnections,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, cloneResp{Template: res.Template, ItemCount: res.ItemCount})
	}
}

// POST /admin/templates/{id}/delete
func DeleteTemplate(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "id")
		if !ok {
			return
		}
		if err := services.DeleteTemplate(r.Context(), gdb, principal(r), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /admin/templates/{id}/items
func AddItem(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "id")
		if !ok {
			return
		}
		var in services.ItemInput
		if !decode(w, r, &in) {
			return
		}
		it, err := services.AddItem(r.Context(), gdb, principal(r), id, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, it)
	}
}

// POST /admin/items/{id}/connections
func AddConnection(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "id")
		if !ok {
			return
		}
		var in services.ConnectionInput
		if !decode(w, r, &in) {
			return
		}
		c, err := services.AddConnection(r.Context(), gdb, principal(r), id, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

// POST /admin/items/{id}/delete
func DeleteItem(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "id")
		if !ok {
			return
		}
		if err := services.DeleteItem(r.Context(), gdb, principal(r), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
