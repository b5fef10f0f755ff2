package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gbhide1993/mina-merchant-webhook/internal/repository"
)

// MerchantMemory lists the most recent ledger entries for a merchant:
// GET /v1/merchants/{id}/memory?limit=N
func (api *API) MerchantMemory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/merchants/")
	idPart, ok := strings.CutSuffix(rest, "/memory")
	if !ok {
		writeError(w, r, http.StatusNotFound, "not_found", "unknown resource")
		return
	}
	merchantID, err := strconv.ParseInt(strings.TrimSpace(idPart), 10, 64)
	if err != nil || merchantID <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "merchant id must be a positive integer")
		return
	}

	if _, err := api.directory.GetByID(r.Context(), merchantID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "merchant not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load merchant")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := api.ledger.ListByMerchant(r.Context(), merchantID, limit)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to list memory entries")
		return
	}

	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		item := map[string]any{
			"id":         entry.ID,
			"source":     entry.Source,
			"content":    entry.Content,
			"created_at": entry.CreatedAt,
		}
		if entry.ContactID != nil {
			item["contact_id"] = *entry.ContactID
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"merchant_id": merchantID,
		"entries":     items,
	})
}
