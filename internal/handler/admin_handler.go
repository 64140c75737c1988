package handler

import (
	"context"
	"net/http"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/Koushik-Rachaputi/MagmaScale-Backed/internal/apperr"
)

// IndexLister is satisfied by the MongoDB repositories.
type IndexLister interface {
	ListIndexes(ctx context.Context) ([]bson.M, error)
}

type AdminHandler struct {
	collections map[string]IndexLister
}

// NewAdminHandler reports the indexes of the given collections, keyed by
// collection name.
func NewAdminHandler(collections map[string]IndexLister) *AdminHandler {
	return &AdminHandler{collections: collections}
}

func (h *AdminHandler) ListIndexes(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][]bson.M, len(h.collections))
	for name, c := range h.collections {
		indexes, err := c.ListIndexes(r.Context())
		if err != nil {
			writeError(w, apperr.Persistence("Failed to list indexes", err))
			return
		}
		out[name] = indexes
	}
	writeData(w, http.StatusOK, "", out)
}
