package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/msci/pkg/logger"
)

const maxBodyBytes = 1 << 20

// keywordsRequest mirrors the OpenAPI schema for POST /keywords.
type keywordsRequest struct {
	Article    string   `json:"article"`
	Depth      *int     `json:"depth"`
	IgnoreList []string `json:"ignore_list"`
	Percentile *int     `json:"percentile"`
}

func (k keywordsRequest) validate() error {
	switch {
	case k.Article == "":
		return errors.New("missing article")
	case k.Depth == nil:
		return errors.New("missing depth")
	case k.Percentile != nil && (*k.Percentile < 0 || *k.Percentile > 100):
		return errors.New("percentile must be between 0 and 100")
	}
	return nil
}

// KeywordsHandler handles keyword extraction requests.
type KeywordsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// HandlePost handles POST /keywords requests.
func (h *KeywordsHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	const op = "api.keywords"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var req keywordsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", WrapKind(op, ErrBadRequest, errors.New("invalid JSON body")))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", WrapKind(op, ErrValidation, err))
		return
	}

	words, err := h.deps.Keywords(r.Context(), req.Article, *req.Depth, req.IgnoreList, req.Percentile)
	if err != nil {
		writeServiceError(r.Context(), w, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, words)
}
