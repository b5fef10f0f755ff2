package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gbhide1993/mina-merchant-webhook/internal/http/middleware"
	"github.com/gbhide1993/mina-merchant-webhook/internal/repository"
	"github.com/gbhide1993/mina-merchant-webhook/internal/service"
)

type API struct {
	intake    *service.IntakeService
	jobs      repository.JobStore
	directory repository.MerchantDirectory
	ledger    repository.MemoryLedger
	logger    *log.Logger
}

func NewAPI(
	intake *service.IntakeService,
	jobs repository.JobStore,
	directory repository.MerchantDirectory,
	ledger repository.MemoryLedger,
	logger *log.Logger,
) *API {
	return &API{
		intake:    intake,
		jobs:      jobs,
		directory: directory,
		ledger:    ledger,
		logger:    logger,
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}
