package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gbhide1993/mina-merchant-webhook/internal/cache"
	"github.com/gbhide1993/mina-merchant-webhook/internal/domain"
	"github.com/gbhide1993/mina-merchant-webhook/internal/media"
	"github.com/gbhide1993/mina-merchant-webhook/internal/notify"
	"github.com/gbhide1993/mina-merchant-webhook/internal/queue"
	"github.com/gbhide1993/mina-merchant-webhook/internal/repository"
)

type IntakeDependencies struct {
	Directory repository.MerchantDirectory
	Merchants *cache.MerchantCache
	Jobs      repository.JobStore
	Relay     media.Relay
	Producer  queue.Producer
	Notifier  notify.Notifier
	Logger    *log.Logger
}

// IntakeService turns a validated inbound event into at most one PENDING
// job. The acknowledgment goes out before any blocking work, and every
// failure past merchant resolution degrades to a retry prompt instead of an
// error response, so the platform never sees anything but an empty success.
type IntakeService struct {
	directory repository.MerchantDirectory
	merchants *cache.MerchantCache
	jobs      repository.JobStore
	relay     media.Relay
	producer  queue.Producer
	notifier  notify.Notifier
	logger    *log.Logger
}

func NewIntakeService(deps IntakeDependencies) *IntakeService {
	return &IntakeService{
		directory: deps.Directory,
		merchants: deps.Merchants,
		jobs:      deps.Jobs,
		relay:     deps.Relay,
		producer:  deps.Producer,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
	}
}

// HandleInbound processes one webhook event. The returned error is for the
// caller's logging only; the HTTP layer responds 204 regardless.
func (s *IntakeService) HandleInbound(ctx context.Context, event domain.InboundEvent) error {
	merchant, err := s.resolveMerchant(ctx, event.Phone)
	if err != nil {
		return fmt.Errorf("resolve merchant %s: %w", event.Phone, err)
	}

	if !event.HasAudio() {
		// Text and other media are accepted and ignored: no job.
		return nil
	}

	// Ack before the blocking work so the merchant hears back inside the
	// platform's webhook deadline. Delivery failure must not abort intake.
	if err := s.notifier.Send(ctx, event.Phone, notify.AckReceived); err != nil && s.logger != nil {
		s.logger.Printf("ack send failed phone=%s err=%v", event.Phone, err)
	}

	gcsPath, err := s.relay.Upload(ctx, event.MediaURL, event.MediaContentType, event.Phone)
	if err != nil {
		s.reportFailure(ctx, event.Phone, fmt.Errorf("relay media %s: %w", event.MessageSID, err))
		return nil
	}

	job, err := s.jobs.Enqueue(ctx, merchant.ID, gcsPath)
	if err != nil {
		s.reportFailure(ctx, event.Phone, fmt.Errorf("enqueue job for merchant %d: %w", merchant.ID, err))
		return nil
	}

	if err := s.producer.Notify(ctx, domain.WakeSignal{JobID: job.ID, RequestedAt: time.Now().UTC()}); err != nil {
		// Advisory only; the pool's poll loop will find the job.
		if s.logger != nil {
			s.logger.Printf("wake signal failed job_id=%s err=%v", job.ID, err)
		}
	}

	if s.logger != nil {
		s.logger.Printf("job enqueued job_id=%s merchant_id=%d path=%s", job.ID, merchant.ID, gcsPath)
	}
	return nil
}

func (s *IntakeService) resolveMerchant(ctx context.Context, phone string) (domain.Merchant, error) {
	if s.merchants != nil {
		if merchant, ok := s.merchants.Get(phone); ok {
			return merchant, nil
		}
	}

	merchant, err := s.directory.Resolve(ctx, phone)
	if err != nil {
		return domain.Merchant{}, err
	}
	if s.merchants != nil {
		s.merchants.Set(*merchant)
	}
	return *merchant, nil
}

func (s *IntakeService) reportFailure(ctx context.Context, phone string, cause error) {
	if s.logger != nil {
		s.logger.Printf("intake failed phone=%s err=%v", phone, cause)
	}
	if err := s.notifier.Send(ctx, phone, notify.RetryPrompt); err != nil && s.logger != nil {
		s.logger.Printf("retry prompt send failed phone=%s err=%v", phone, err)
	}
}
