package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

type GCSRelayConfig struct {
	Bucket string
	// Twilio media URLs require the account credentials as HTTP basic auth.
	FetchUsername string
	FetchPassword string
	FetchTimeout  time.Duration
	HTTPClient    *http.Client
}

// GCSRelay streams platform media into a Cloud Storage bucket and returns
// the object path as the job's storage reference.
type GCSRelay struct {
	client        *storage.Client
	bucket        string
	fetchUsername string
	fetchPassword string
	fetchTimeout  time.Duration
	httpClient    *http.Client
}

func NewGCSRelay(ctx context.Context, cfg GCSRelayConfig) (*GCSRelay, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &GCSRelay{
		client:        client,
		bucket:        cfg.Bucket,
		fetchUsername: cfg.FetchUsername,
		fetchPassword: cfg.FetchPassword,
		fetchTimeout:  cfg.FetchTimeout,
		httpClient:    cfg.HTTPClient,
	}, nil
}

func (r *GCSRelay) Close() error {
	return r.client.Close()
}

func (r *GCSRelay) Upload(ctx context.Context, sourceURL, contentType, phone string) (string, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("create media request: %w", err)
	}
	if r.fetchUsername != "" {
		request.SetBasicAuth(r.fetchUsername, r.fetchPassword)
	}

	response, err := r.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", fmt.Errorf("fetch media: unexpected status %d", response.StatusCode)
	}

	objectPath := fmt.Sprintf("voice-notes/%s/%s%s", phone, uuid.NewString(), extensionFor(contentType))
	writer := r.client.Bucket(r.bucket).Object(objectPath).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, response.Body); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("stream media to gcs: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize gcs object: %w", err)
	}
	return objectPath, nil
}

func (r *GCSRelay) Fetch(ctx context.Context, storageRef string) ([]byte, error) {
	reader, err := r.client.Bucket(r.bucket).Object(storageRef).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gcs object: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read gcs object: %w", err)
	}
	return data, nil
}
