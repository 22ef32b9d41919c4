package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kitchenops/checklists/internal/services"
)

// errText holds the caller-facing text of codes raised by this package, and
// of engine codes whose own message should not be shown.
var errText = map[string]string{
	"unauthorized":           "Missing tenant.",
	"forbidden":              "Admin access required.",
	"bad_json":               "Request body is not valid JSON.",
	"bad_id":                 "Invalid id.",
	services.CodePersistence: "Something went wrong, please retry.",
}

type errorBody struct {
	Error     string   `json:"error"`
	Message   string   `json:"message"`
	Conflicts []string `json:"conflicts,omitempty"`
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeCode(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, errorBody{Error: code, Message: errText[code]})
}

// writeError maps engine errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var e *services.Error
	if !errors.As(err, &e) {
		writeCode(w, http.StatusInternalServerError, services.CodePersistence)
		return
	}
	status := http.StatusInternalServerError
	switch e.Kind {
	case services.KindValidation:
		status = http.StatusBadRequest
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindConflict:
		status = http.StatusConflict
	}
	msg := e.Message
	if t, ok := errText[e.Code]; ok {
		msg = t
	}
	writeJSON(w, status, errorBody{Error: e.Code, Message: msg, Conflicts: e.Conflicts})
}

// decode reads a JSON body into dst and validates its struct tags. An empty
// body leaves dst at its zero value.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			writeCode(w, http.StatusBadRequest, "bad_json")
			return false
		}
	}
	if err := validate.Struct(dst); err != nil {
		var ves validator.ValidationErrors
		msgs := []string{}
		if errors.As(err, &ves) {
			for _, fe := range ves {
				msgs = append(msgs, fe.Field()+" "+fe.Tag())
			}
		}
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:     services.CodeInvalidInput,
			Message:   "Invalid request.",
			Conflicts: msgs,
		})
		return false
	}
	return true
}

// urlID parses a positive numeric URL parameter.
func urlID(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		writeCode(w, http.StatusBadRequest, "bad_id")
		return 0, false
	}
	return uint(id), true
}
