package integration

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gbhide1993/mina-merchant-webhook/internal/cache"
	httpserver "github.com/gbhide1993/mina-merchant-webhook/internal/http"
	"github.com/gbhide1993/mina-merchant-webhook/internal/http/handlers"
	"github.com/gbhide1993/mina-merchant-webhook/internal/media"
	"github.com/gbhide1993/mina-merchant-webhook/internal/notify"
	"github.com/gbhide1993/mina-merchant-webhook/internal/queue"
	"github.com/gbhide1993/mina-merchant-webhook/internal/repository"
	"github.com/gbhide1993/mina-merchant-webhook/internal/service"
	"github.com/gbhide1993/mina-merchant-webhook/internal/transcribe"
	"github.com/gbhide1993/mina-merchant-webhook/internal/worker"
)

type integrationRuntime struct {
	server *httptest.Server
	jobs   *repository.MemoryJobStore
	cancel context.CancelFunc
}

func startIntegrationRuntime(t *testing.T) integrationRuntime {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	logger := log.New(io.Discard, "", 0)

	directory := repository.NewMemoryMerchantDirectory()
	jobs := repository.NewMemoryJobStore()
	ledger := repository.NewMemoryLedgerStore()
	relay := media.NewMemoryRelay()
	localQueue := queue.NewLocalQueue(128, logger)

	intake := service.NewIntakeService(service.IntakeDependencies{
		Directory: directory,
		Merchants: cache.NewMerchantCache(cache.Config{TTL: time.Minute, MaxEntries: 100}),
		Jobs:      jobs,
		Relay:     relay,
		Producer:  localQueue,
		Notifier:  notify.NewLogNotifier(logger),
		Logger:    logger,
	})

	api := handlers.NewAPI(intake, jobs, directory, ledger, logger)
	router := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		RateLimitRPS:   20000,
		RateLimitBurst: 20000,
	})

	pool := worker.NewPool(
		jobs,
		relay,
		transcribe.StaticTranscriber{Text: "kal subah delivery bhejni hai"},
		ledger,
		localQueue,
		logger,
		worker.PoolConfig{Workers: 2, PollInterval: 20 * time.Millisecond},
	)
	go pool.Start(ctx)

	server := httptest.NewServer(router)
	return integrationRuntime{
		server: server,
		jobs:   jobs,
		cancel: func() {
			cancel()
			server.Close()
		},
	}
}

func postWebhookForm(t *testing.T, baseURL string, form url.Values) *http.Response {
	t.Helper()

	response, err := http.Post(
		baseURL+"/twilio/webhook",
		"application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		t.Fatalf("post webhook: %v", err)
	}
	return response
}

func getJSON(t *testing.T, rawURL string, target any) int {
	t.Helper()

	response, err := http.Get(rawURL)
	if err != nil {
		t.Fatalf("get %s: %v", rawURL, err)
	}
	defer response.Body.Close()

	if target != nil {
		if err := json.NewDecoder(response.Body).Decode(target); err != nil && response.StatusCode == http.StatusOK {
			t.Fatalf("decode %s: %v", rawURL, err)
		}
	}
	return response.StatusCode
}

func TestVoiceNoteEndToEnd(t *testing.T) {
	runtime := startIntegrationRuntime(t)
	defer runtime.cancel()

	form := url.Values{}
	form.Set("From", "whatsapp:+911234567890")
	form.Set("MediaUrl0", "http://media.example/voice.ogg")
	form.Set("MediaContentType0", "audio/ogg")
	form.Set("NumMedia", "1")
	form.Set("MessageSid", "SM100")

	response := postWebhookForm(t, runtime.server.URL, form)
	response.Body.Close()
	if response.StatusCode != http.StatusNoContent {
		t.Fatalf("webhook status = %d, want 204", response.StatusCode)
	}

	// The pool picks the job up via the wake signal; wait for DONE.
	deadline := time.After(3 * time.Second)
	var jobID string
	for jobID == "" {
		select {
		case <-deadline:
			t.Fatal("no job appeared in the store")
		default:
		}
		all, err := runtime.jobs.List(context.Background())
		if err != nil {
			t.Fatalf("list jobs: %v", err)
		}
		if len(all) > 0 {
			jobID = all[0].ID
		} else {
			time.Sleep(10 * time.Millisecond)
		}
	}

	var status struct {
		Status string `json:"status"`
	}
	for {
		select {
		case <-deadline:
			t.Fatalf("job %s never reached DONE (last status %q)", jobID, status.Status)
		default:
		}
		code := getJSON(t, runtime.server.URL+"/v1/jobs/"+jobID, &status)
		if code != http.StatusOK {
			t.Fatalf("job status endpoint returned %d", code)
		}
		if status.Status == "DONE" {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	var memory struct {
		Entries []struct {
			Source  string `json:"source"`
			Content string `json:"content"`
		} `json:"entries"`
	}
	code := getJSON(t, runtime.server.URL+"/v1/merchants/1/memory", &memory)
	if code != http.StatusOK {
		t.Fatalf("memory endpoint returned %d", code)
	}
	if len(memory.Entries) != 1 {
		t.Fatalf("memory entries = %d, want 1", len(memory.Entries))
	}
	if memory.Entries[0].Content != "kal subah delivery bhejni hai" {
		t.Fatalf("memory content = %q, want transcript", memory.Entries[0].Content)
	}
	if memory.Entries[0].Source != "voice" {
		t.Fatalf("memory source = %q, want voice", memory.Entries[0].Source)
	}
}

func TestTextMessageEndToEnd(t *testing.T) {
	runtime := startIntegrationRuntime(t)
	defer runtime.cancel()

	form := url.Values{}
	form.Set("From", "whatsapp:+911234567890")
	form.Set("Body", "namaste")

	response := postWebhookForm(t, runtime.server.URL, form)
	response.Body.Close()
	if response.StatusCode != http.StatusNoContent {
		t.Fatalf("webhook status = %d, want 204", response.StatusCode)
	}

	code := getJSON(t, runtime.server.URL+"/v1/merchants/1/memory", nil)
	if code != http.StatusOK {
		t.Fatalf("merchant should exist after text message, got %d", code)
	}
}

func TestUnknownJobAndMerchantReturn404(t *testing.T) {
	runtime := startIntegrationRuntime(t)
	defer runtime.cancel()

	if code := getJSON(t, runtime.server.URL+"/v1/jobs/nope", nil); code != http.StatusNotFound {
		t.Fatalf("unknown job returned %d, want 404", code)
	}
	if code := getJSON(t, runtime.server.URL+"/v1/merchants/42/memory", nil); code != http.StatusNotFound {
		t.Fatalf("unknown merchant returned %d, want 404", code)
	}
}
