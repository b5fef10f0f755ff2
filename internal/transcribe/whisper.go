package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"
)

var ErrSpeechUnavailable = errors.New("speech-to-text backend unavailable")

type WhisperClientConfig struct {
	APIKey        string
	BaseURL       string
	PrimaryModel  string
	FallbackModel string
	Timeout       time.Duration
	MaxRetries    int
	HTTPClient    *http.Client
}

// WhisperClient calls an OpenAI-compatible /audio/transcriptions endpoint.
// The primary model is retried on transient failures before the fallback
// model gets one attempt.
type WhisperClient struct {
	apiKey        string
	baseURL       string
	primaryModel  string
	fallbackModel string
	timeout       time.Duration
	maxRetries    int
	httpClient    *http.Client
}

func NewWhisperClient(config WhisperClientConfig) *WhisperClient {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(config.PrimaryModel) == "" {
		config.PrimaryModel = "whisper-1"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &WhisperClient{
		apiKey:        strings.TrimSpace(config.APIKey),
		baseURL:       strings.TrimSuffix(config.BaseURL, "/"),
		primaryModel:  config.PrimaryModel,
		fallbackModel: strings.TrimSpace(config.FallbackModel),
		timeout:       config.Timeout,
		maxRetries:    config.MaxRetries,
		httpClient:    config.HTTPClient,
	}
}

func (c *WhisperClient) Available() bool {
	return c.apiKey != ""
}

func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte, name string) (string, error) {
	if !c.Available() {
		return "", ErrSpeechUnavailable
	}
	if len(audio) == 0 {
		return "", errors.New("audio payload is empty")
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		text, callErr := c.callTranscriptionsAPI(ctx, audio, name, c.primaryModel)
		if callErr == nil {
			return text, nil
		}
		lastErr = callErr

		if !isRetryable(callErr) || attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(350*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	if c.fallbackModel != "" && c.fallbackModel != c.primaryModel {
		text, callErr := c.callTranscriptionsAPI(ctx, audio, name, c.fallbackModel)
		if callErr == nil {
			return text, nil
		}
		lastErr = callErr
	}

	if lastErr == nil {
		lastErr = errors.New("unknown transcription error")
	}
	return "", lastErr
}

func (c *WhisperClient) callTranscriptionsAPI(
	ctx context.Context,
	audio []byte,
	name string,
	model string,
) (string, error) {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	if err := form.WriteField("model", model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	filename := path.Base(name)
	if filename == "." || filename == "/" || filename == "" {
		filename = "audio.ogg"
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio part: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("finalize multipart body: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		c.baseURL+"/audio/transcriptions",
		body,
	)
	if err != nil {
		return "", fmt.Errorf("create transcription request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("Content-Type", form.FormDataContentType())

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("call transcriptions api: %w", err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read transcription response: %w", err)
	}

	if response.StatusCode == http.StatusTooManyRequests || response.StatusCode >= 500 {
		return "", &statusError{status: response.StatusCode, retryable: true}
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", &statusError{status: response.StatusCode}
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	if strings.TrimSpace(decoded.Text) == "" {
		return "", errors.New("transcription response contained no text")
	}
	return decoded.Text, nil
}

type statusError struct {
	status    int
	retryable bool
}

func (e *statusError) Error() string {
	return fmt.Sprintf("transcriptions api status %d", e.status)
}

func isRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.retryable
	}
	// Network-level failures are worth another attempt.
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
