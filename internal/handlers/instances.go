package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/services"
)

type createInstancesReq struct {
	TemplateIDs []uint `json:"templateIds" validate:"required,min=1,dive,gt=0"`
	Date        string `json:"date" validate:"required"`
}

type connectionProgressReq struct {
	IsCompleted bool `json:"isCompleted"`
}

// POST /admin/instances
func CreateInstances(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in createInstancesReq
		if !decode(w, r, &in) {
			return
		}
		res, err := services.GenerateInstances(r.Context(), gdb, principal(r), in.TemplateIDs, in.Date)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// GET /instances?date=YYYY-MM-DD, defaults to today.
func ListInstances(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := strings.TrimSpace(r.URL.Query().Get("date"))
		if date == "" {
			date = services.Today()
		}
		list, err := services.ListInstancesForDate(r.Context(), gdb, principal(r), date)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"date": date, "instances": list})
	}
}

// GET /instances/{id}
func GetInstance(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "id")
		if !ok {
			return
		}
		d, err := services.GetInstance(r.Context(), gdb, principal(r), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// POST /instances/{id}/items/{itemID}
func SetItemProgress(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "id")
		if !ok {
			return
		}
		itemID, ok := urlID(w, r, "itemID")
		if !ok {
			return
		}
		var in services.ProgressInput
		if !decode(w, r, &in) {
			return
		}
		row, err := services.SetItemProgress(r.Context(), gdb, principal(r), id, itemID, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

// POST /instances/{id}/connections/{connID}
func SetConnectionProgress(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "id")
		if !ok {
			return
		}
		connID, ok := urlID(w, r, "connID")
		if !ok {
			return
		}
		var in connectionProgressReq
		if !decode(w, r, &in) {
			return
		}
		row, err := services.SetConnectionProgress(r.Context(), gdb, principal(r), id, connID, in.IsCompleted)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

// POST /instances/{id}/complete
func CompleteInstance(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "id")
		if !ok {
			return
		}
		row, err := services.CompleteInstance(r.Context(), gdb, principal(r), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

// POST /instances/{id}/submit
func SubmitInstance(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := urlID(w, r, "id")
		if !ok {
			return
		}
		row, err := services.SubmitInstance(r.Context(), gdb, principal(r), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, row)
	}
}

// GET /i/{code}, the target of instance QR codes.
func OpenInstanceByCode(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := services.InstanceIDByCode(r.Context(), gdb, principal(r), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, err)
			return
		}
		http.Redirect(w, r, "/instances/"+strconv.FormatUint(uint64(id), 10), http.StatusSeeOther)
	}
}
