package httpapi

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/go-chi/chi/v5"

	"textgend/internal/storage"
	"textgend/pkg/types"
)

func (h *handlers) kv(w http.ResponseWriter) KV {
	kv := h.svc.Storage()
	if kv == nil {
		writeJSONError(w, http.StatusNotFound, "storage disabled")
	}
	return kv
}

// listStorage godoc
// @Summary      List stored values
// @Tags         storage
// @Produce      json
// @Success      200  {array}   storage.Item
// @Router       /storage [get]
func (h *handlers) listStorage(w http.ResponseWriter, r *http.Request) {
	kv := h.kv(w)
	if kv == nil {
		return
	}
	items, err := kv.All(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []storage.Item{}
	}
	writeJSON(w, items)
}

// getStorage godoc
// @Summary      Read a stored value
// @Tags         storage
// @Produce      json
// @Param        key  path      string  true  "Key"
// @Success      200  {object}  types.StorageValue
// @Failure      404  {object}  types.ErrorResponse
// @Router       /storage/{key} [get]
func (h *handlers) getStorage(w http.ResponseWriter, r *http.Request) {
	kv := h.kv(w)
	if kv == nil {
		return
	}
	v, ok, err := kv.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeJSONError(w, http.StatusNotFound, "key not found")
		return
	}
	writeJSON(w, types.StorageValue{Value: v})
}

// putStorage godoc
// @Summary      Store a value
// @Tags         storage
// @Accept       json
// @Param        key    path  string              true  "Key"
// @Param        value  body  types.StorageValue  true  "Value and optional expiry"
// @Success      204
// @Failure      400  {object}  types.ErrorResponse
// @Router       /storage/{key} [put]
func (h *handlers) putStorage(w http.ResponseWriter, r *http.Request) {
	kv := h.kv(w)
	if kv == nil {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var in types.StorageValue
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if in.TTLSeconds < 0 {
		writeJSONError(w, http.StatusBadRequest, "ttl_seconds must not be negative")
		return
	}
	if err := kv.Set(r.Context(), chi.URLParam(r, "key"), in.Value, in.TTLSeconds); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteStorage godoc
// @Summary      Remove a stored value
// @Tags         storage
// @Param        key  path  string  true  "Key"
// @Success      204
// @Router       /storage/{key} [delete]
func (h *handlers) deleteStorage(w http.ResponseWriter, r *http.Request) {
	kv := h.kv(w)
	if kv == nil {
		return
	}
	if err := kv.Remove(r.Context(), chi.URLParam(r, "key")); err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
