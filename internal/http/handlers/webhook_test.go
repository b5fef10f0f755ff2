package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gbhide1993/mina-merchant-webhook/internal/media"
	"github.com/gbhide1993/mina-merchant-webhook/internal/notify"
	"github.com/gbhide1993/mina-merchant-webhook/internal/queue"
	"github.com/gbhide1993/mina-merchant-webhook/internal/repository"
	"github.com/gbhide1993/mina-merchant-webhook/internal/service"
)

type webhookFixture struct {
	api       *API
	jobs      *repository.MemoryJobStore
	directory *repository.MemoryMerchantDirectory
}

func newWebhookFixture(t *testing.T) webhookFixture {
	t.Helper()

	logger := log.New(io.Discard, "", 0)
	jobs := repository.NewMemoryJobStore()
	directory := repository.NewMemoryMerchantDirectory()
	ledger := repository.NewMemoryLedgerStore()

	intake := service.NewIntakeService(service.IntakeDependencies{
		Directory: directory,
		Jobs:      jobs,
		Relay:     media.NewMemoryRelay(),
		Producer:  queue.NewLocalQueue(16, logger),
		Notifier:  notify.NewLogNotifier(logger),
		Logger:    logger,
	})

	return webhookFixture{
		api:       NewAPI(intake, jobs, directory, ledger, logger),
		jobs:      jobs,
		directory: directory,
	}
}

func postWebhook(t *testing.T, api *API, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	request := httptest.NewRequest(
		http.MethodPost,
		"/twilio/webhook",
		strings.NewReader(form.Encode()),
	)
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	recorder := httptest.NewRecorder()
	api.TwilioWebhook(recorder, request)
	return recorder
}

func TestWebhookAudioCreatesMerchantAndJob(t *testing.T) {
	fixture := newWebhookFixture(t)

	form := url.Values{}
	form.Set("From", "whatsapp:+911234567890")
	form.Set("MediaUrl0", "http://x/a.ogg")
	form.Set("MediaContentType0", "audio/ogg")
	form.Set("NumMedia", "1")
	form.Set("MessageSid", "SM1")

	recorder := postWebhook(t, fixture.api, form)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", recorder.Code)
	}
	if recorder.Body.Len() != 0 {
		t.Fatalf("body = %q, want empty", recorder.Body.String())
	}

	merchant, err := fixture.directory.Resolve(context.Background(), "+911234567890")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	job, err := fixture.jobs.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if job == nil {
		t.Fatal("no job enqueued")
	}
	if job.MerchantID != merchant.ID {
		t.Fatalf("job merchant = %d, want %d", job.MerchantID, merchant.ID)
	}
}

func TestWebhookWithoutMediaResolvesMerchantButNoJob(t *testing.T) {
	fixture := newWebhookFixture(t)

	form := url.Values{}
	form.Set("From", "whatsapp:+911234567890")
	form.Set("Body", "namaste")

	recorder := postWebhook(t, fixture.api, form)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", recorder.Code)
	}

	job, _ := fixture.jobs.ClaimNext(context.Background())
	if job != nil {
		t.Fatalf("text event enqueued job %s", job.ID)
	}
}

func TestWebhookMalformedSenderIgnoredSilently(t *testing.T) {
	fixture := newWebhookFixture(t)

	for _, from := range []string{"", "sms:+911234567890", "whatsapp:", "+911234567890"} {
		form := url.Values{}
		if from != "" {
			form.Set("From", from)
		}
		form.Set("MediaUrl0", "http://x/a.ogg")
		form.Set("MediaContentType0", "audio/ogg")

		recorder := postWebhook(t, fixture.api, form)
		if recorder.Code != http.StatusNoContent {
			t.Fatalf("From=%q status = %d, want 204", from, recorder.Code)
		}
	}

	job, _ := fixture.jobs.ClaimNext(context.Background())
	if job != nil {
		t.Fatalf("malformed sender enqueued job %s", job.ID)
	}
}

func TestWebhookRejectsNonPost(t *testing.T) {
	fixture := newWebhookFixture(t)

	request := httptest.NewRequest(http.MethodGet, "/twilio/webhook", nil)
	recorder := httptest.NewRecorder()
	fixture.api.TwilioWebhook(recorder, request)

	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", recorder.Code)
	}
}
