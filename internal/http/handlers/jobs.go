package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gbhide1993/mina-merchant-webhook/internal/repository"
)

func (api *API) JobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	jobID := strings.TrimSpace(strings.TrimPrefix(r.URL.Path, "/v1/jobs/"))
	if jobID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "job_id is required")
		return
	}

	job, err := api.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "job not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load job")
		return
	}

	response := map[string]any{
		"job_id":      job.ID,
		"merchant_id": job.MerchantID,
		"status":      job.Status,
		"created_at":  job.CreatedAt,
		"updated_at":  job.UpdatedAt,
	}
	if strings.TrimSpace(job.Error) != "" {
		response["error"] = map[string]any{
			"code":    "processing_error",
			"message": job.Error,
		}
	}

	writeJSON(w, http.StatusOK, response)
}
