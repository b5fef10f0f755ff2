// Webhook load generator: stands up the full in-memory runtime and drives
// concurrent Twilio-style form posts through it, reporting latency
// percentiles per scenario.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
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

type scenarioResult struct {
	Name          string  `json:"name"`
	Total         int     `json:"total"`
	Success       int     `json:"success"`
	Errors        int     `json:"errors"`
	P50MS         float64 `json:"p50_ms"`
	P95MS         float64 `json:"p95_ms"`
	P99MS         float64 `json:"p99_ms"`
	MaxMS         float64 `json:"max_ms"`
	ThroughputRPS float64 `json:"throughput_rps"`
}

func main() {
	requests := flag.Int("requests", 500, "requests per scenario")
	concurrency := flag.Int("concurrency", 16, "concurrent senders")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := log.New(io.Discard, "", 0)
	jobs := repository.NewMemoryJobStore()
	directory := repository.NewMemoryMerchantDirectory()
	ledger := repository.NewMemoryLedgerStore()
	relay := media.NewMemoryRelay()
	localQueue := queue.NewLocalQueue(4096, logger)

	intake := service.NewIntakeService(service.IntakeDependencies{
		Directory: directory,
		Merchants: cache.NewMerchantCache(cache.Config{TTL: 10 * time.Minute, MaxEntries: 10000}),
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
		RateLimitRPS:   100000,
		RateLimitBurst: 100000,
	})

	pool := worker.NewPool(jobs, relay, transcribe.StaticTranscriber{Text: "load test transcript"}, ledger, localQueue, logger, worker.PoolConfig{
		Workers:      4,
		PollInterval: 50 * time.Millisecond,
	})
	go pool.Start(ctx)

	server := httptest.NewServer(router)
	defer server.Close()

	results := []scenarioResult{
		runScenario("voice_note_webhook", server.URL, *requests, *concurrency, func(i int) url.Values {
			form := url.Values{}
			form.Set("From", fmt.Sprintf("whatsapp:+9198%08d", i%2000))
			form.Set("MediaUrl0", fmt.Sprintf("http://media.example/%d.ogg", i))
			form.Set("MediaContentType0", "audio/ogg")
			form.Set("NumMedia", "1")
			form.Set("MessageSid", fmt.Sprintf("SM%06d", i))
			return form
		}),
		runScenario("text_message_webhook", server.URL, *requests, *concurrency, func(i int) url.Values {
			form := url.Values{}
			form.Set("From", fmt.Sprintf("whatsapp:+9197%08d", i%2000))
			form.Set("Body", "namaste")
			return form
		}),
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(map[string]any{
		"generated_at_utc": time.Now().UTC().Format(time.RFC3339),
		"results":          results,
	})
}

func runScenario(name, baseURL string, total, concurrency int, buildForm func(int) url.Values) scenarioResult {
	client := &http.Client{Timeout: 10 * time.Second}

	var (
		mu        sync.Mutex
		durations []float64
		errCount  int64
	)

	start := time.Now()
	work := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				began := time.Now()
				response, err := client.Post(
					baseURL+"/twilio/webhook",
					"application/x-www-form-urlencoded",
					strings.NewReader(buildForm(i).Encode()),
				)
				elapsed := float64(time.Since(began).Microseconds()) / 1000.0
				if err != nil || response.StatusCode != http.StatusNoContent {
					atomic.AddInt64(&errCount, 1)
				}
				if response != nil {
					io.Copy(io.Discard, response.Body)
					response.Body.Close()
				}
				mu.Lock()
				durations = append(durations, elapsed)
				mu.Unlock()
			}
		}()
	}
	for i := 0; i < total; i++ {
		work <- i
	}
	close(work)
	wg.Wait()
	elapsed := time.Since(start)

	sort.Float64s(durations)
	return scenarioResult{
		Name:          name,
		Total:         total,
		Success:       total - int(errCount),
		Errors:        int(errCount),
		P50MS:         percentile(durations, 0.50),
		P95MS:         percentile(durations, 0.95),
		P99MS:         percentile(durations, 0.99),
		MaxMS:         percentile(durations, 1.0),
		ThroughputRPS: float64(total) / elapsed.Seconds(),
	}
}

func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := int(math.Ceil(q*float64(len(sorted)))) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
