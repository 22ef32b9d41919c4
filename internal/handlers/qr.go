package handlers

import (
	"net/http"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/kitchenops/checklists/internal/services"
)

// InstanceQR renders a PNG that opens the instance from a phone. baseURL
// falls back to the request host when empty.
func InstanceQR(gdb *gorm.DB, baseURL string) http.HandlerFunc {
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

		base := strings.TrimRight(baseURL, "/")
		if base == "" {
			base = "http://" + r.Host
		}
		url := base + "/i/" + d.Code

		png, err := qrcode.Encode(url, qrcode.Medium, 256)
		if err != nil {
			http.Error(w, "failed to generate qr", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}
