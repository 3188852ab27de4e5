package routes

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-logr/logr"
)

type detail struct {
	Detail string `json:"detail"`
}

type message struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logr.FromContextOrDiscard(r.Context()).Error(err, "failed to marshal json")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, d string) {
	writeJSON(w, r, status, detail{Detail: d})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, "id must be an integer")
		return 0, false
	}
	return id, true
}
