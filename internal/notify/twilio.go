package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type TwilioClientConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// TwilioClient sends WhatsApp messages through the Twilio Messages API.
type TwilioClient struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewTwilioClient(config TwilioClientConfig) (*TwilioClient, error) {
	if strings.TrimSpace(config.AccountSID) == "" || strings.TrimSpace(config.AuthToken) == "" {
		return nil, errors.New("twilio account sid and auth token are required")
	}
	if strings.TrimSpace(config.FromNumber) == "" {
		return nil, errors.New("twilio from number is required")
	}
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://api.twilio.com"
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &TwilioClient{
		accountSID: strings.TrimSpace(config.AccountSID),
		authToken:  strings.TrimSpace(config.AuthToken),
		fromNumber: strings.TrimSpace(config.FromNumber),
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		timeout:    config.Timeout,
		httpClient: config.HTTPClient,
	}, nil
}

func (c *TwilioClient) Send(ctx context.Context, phone, text string) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("To", "whatsapp:"+phone)
	form.Set("From", "whatsapp:"+c.fromNumber)
	form.Set("Body", text)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	request, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		endpoint,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return fmt.Errorf("create twilio request: %w", err)
	}
	request.SetBasicAuth(c.accountSID, c.authToken)
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return fmt.Errorf("twilio status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
