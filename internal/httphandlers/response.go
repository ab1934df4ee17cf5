package httphandlers

import (
	"encoding/json"
	"net/http"
)

const (
	accessKeyHeader = "X-Access-Key"
	principalHeader = "X-Principal"

	defaultPrincipal = "admin"
)

var separator = []byte("\n")

type (
	response struct {
		Error   bool        `json:"error"`
		Message string      `json:"message"`
		Data    interface{} `json:"data"`
	}
)

func badRequest(w http.ResponseWriter, err error, data interface{}) {
	writeError(w, http.StatusBadRequest, err, data)
}

func notFound(w http.ResponseWriter, err error) {
	writeError(w, http.StatusNotFound, err, nil)
}

func conflict(w http.ResponseWriter, err error) {
	writeError(w, http.StatusConflict, err, nil)
}

func serverError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, err, nil)
}

func unauthorized(w http.ResponseWriter, err error) {
	writeError(w, http.StatusUnauthorized, err, nil)
}

func ok(w http.ResponseWriter, message string, data interface{}) {
	write(w, http.StatusOK, response{Message: message, Data: data})
}

func created(w http.ResponseWriter, message string, data interface{}) {
	write(w, http.StatusCreated, response{Message: message, Data: data})
}

func writeError(w http.ResponseWriter, code int, err error, data interface{}) {
	errmsg := ""
	if err != nil {
		errmsg = err.Error()
	}
	write(w, code, response{Error: true, Message: errmsg, Data: data})
}

func write(w http.ResponseWriter, code int, r response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	b, _ := json.Marshal(r)
	_, _ = w.Write(b)
}

// writeStreamLine writes one newline delimited JSON value and flushes it.
func writeStreamLine(w http.ResponseWriter, data interface{}) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, _ = w.Write(bytes)
	_, _ = w.Write(separator)
	flusher, ok := w.(http.Flusher)
	if ok {
		flusher.Flush()
	}
	return nil
}
