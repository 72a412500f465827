package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/msci/pkg/logger"
)

// WordFrequencyHandler handles word frequency requests.
type WordFrequencyHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// HandleGet handles GET /word-frequency?article=<title>&depth=<n> requests.
func (h *WordFrequencyHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.word_frequency"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	article := q.Get("article")
	if article == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", WrapKind(op, ErrValidation, errors.New("missing article")))
		return
	}
	if !q.Has("depth") {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", WrapKind(op, ErrValidation, errors.New("missing depth")))
		return
	}
	depth, err := strconv.Atoi(q.Get("depth"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", WrapKind(op, ErrValidation, errors.New("depth must be an integer")))
		return
	}

	words, err := h.deps.WordFrequency(r.Context(), article, depth)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, words)
}
