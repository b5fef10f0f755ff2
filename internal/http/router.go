package httpserver

import (
	"log"
	"net/http"

	"github.com/gbhide1993/mina-merchant-webhook/internal/http/handlers"
	"github.com/gbhide1993/mina-merchant-webhook/internal/http/middleware"
)

const WebhookPath = "/twilio/webhook"

type RouterDependencies struct {
	API             *handlers.API
	Logger          *log.Logger
	TwilioAuthToken string
	PublicBaseURL   string
	RateLimitRPS    float64
	RateLimitBurst  int
}

func NewRouter(deps RouterDependencies) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", deps.API.Health)
	mux.HandleFunc(WebhookPath, deps.API.TwilioWebhook)
	mux.HandleFunc("/v1/jobs/", deps.API.JobStatus)
	mux.HandleFunc("/v1/merchants/", deps.API.MerchantMemory)

	handler := http.Handler(mux)
	handler = middleware.TwilioSignature(deps.TwilioAuthToken, deps.PublicBaseURL, WebhookPath)(handler)
	handler = middleware.RateLimit(deps.RateLimitRPS, deps.RateLimitBurst)(handler)
	handler = middleware.Trace(deps.Logger)(handler)
	handler = middleware.RequestID(handler)

	return handler
}
