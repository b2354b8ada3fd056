package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/vincentbai/pagetrace/internal/models"
)

// DefaultEndpoint is the GA4 Measurement Protocol collection URL.
const DefaultEndpoint = "https://www.google-analytics.com/mp/collect"

// MeasurementProtocol sends calls to GA4 over HTTP. Each call is posted on
// its own goroutine; failures are logged and dropped.
type MeasurementProtocol struct {
	endpoint      string
	measurementID string
	apiSecret     string
	timeout       time.Duration
	client        *http.Client
	logger        zerolog.Logger
}

// MeasurementConfig configures a MeasurementProtocol dispatcher.
type MeasurementConfig struct {
	Endpoint      string
	MeasurementID string
	APISecret     string
	Timeout       time.Duration
	Client        *http.Client
}

// NewMeasurementProtocol creates the dispatcher.
func NewMeasurementProtocol(cfg MeasurementConfig, logger zerolog.Logger) *MeasurementProtocol {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.MeasurementID == "" {
		cfg.MeasurementID = DefaultMeasurementID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	return &MeasurementProtocol{
		endpoint:      cfg.Endpoint,
		measurementID: cfg.MeasurementID,
		apiSecret:     cfg.APISecret,
		timeout:       cfg.Timeout,
		client:        cfg.Client,
		logger:        logger,
	}
}

type mpEvent struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

type mpPayload struct {
	ClientID string    `json:"client_id"`
	Events   []mpEvent `json:"events"`
}

// Payload translates a call into a Measurement Protocol body. Config calls
// become page_view events.
func Payload(call models.Call) ([]byte, error) {
	ev := mpEvent{Name: call.Target, Params: call.Params}
	if call.Command == models.CommandConfig {
		ev.Name = "page_view"
	}
	clientID := call.ClientID
	if clientID == "" {
		clientID = "anonymous"
	}
	return json.Marshal(mpPayload{ClientID: clientID, Events: []mpEvent{ev}})
}

func (m *MeasurementProtocol) Dispatch(call models.Call) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()
		if err := m.Send(ctx, call); err != nil {
			m.logger.Warn().
				Err(err).
				Str("client_id", call.ClientID).
				Str("target", call.Target).
				Msg("Failed to send analytics call")
		}
	}()
}

// Send posts one call and waits for the response.
func (m *MeasurementProtocol) Send(ctx context.Context, call models.Call) error {
	body, err := Payload(call)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	query := url.Values{}
	query.Set("measurement_id", m.measurementID)
	if m.apiSecret != "" {
		query.Set("api_secret", m.apiSecret)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"?"+query.Encode(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := m.client.Do(request)
	if err != nil {
		return fmt.Errorf("failed to post analytics call: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode >= 300 {
		return fmt.Errorf("analytics endpoint returned %d", response.StatusCode)
	}
	return nil
}
