package handlers

import (
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/services"
)

// GET /admin/dashboard?date=YYYY-MM-DD
func Dashboard(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := strings.TrimSpace(r.URL.Query().Get("date"))
		if date == "" {
			date = services.Today()
		}
		d, err := services.GetDashboard(r.Context(), gdb, principal(r), date)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// GET /healthz
func Health(gdb *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := gdb.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
