package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gbhide1993/mina-merchant-webhook/internal/domain"
	"github.com/gbhide1993/mina-merchant-webhook/internal/http/middleware"
)

// TwilioWebhook ingests inbound WhatsApp events. Any accepted or ignored
// event, including a malformed sender, answers an empty 204: a non-2xx here
// would make the platform retry-storm, and the merchant-facing error path
// is the retry-prompt message, not the HTTP response.
func (api *API) TwilioWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	phone, ok := domain.ParseSender(r.PostFormValue("From"))
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	numMedia, _ := strconv.Atoi(r.PostFormValue("NumMedia"))
	event := domain.InboundEvent{
		Phone:            phone,
		Body:             r.PostFormValue("Body"),
		MediaURL:         strings.TrimSpace(r.PostFormValue("MediaUrl0")),
		MediaContentType: strings.TrimSpace(r.PostFormValue("MediaContentType0")),
		MessageSID:       r.PostFormValue("MessageSid"),
		NumMedia:         numMedia,
	}

	if err := api.intake.HandleInbound(r.Context(), event); err != nil && api.logger != nil {
		api.logger.Printf(
			"webhook intake error request_id=%s err=%v",
			middleware.GetRequestID(r.Context()),
			err,
		)
	}

	w.WriteHeader(http.StatusNoContent)
}
