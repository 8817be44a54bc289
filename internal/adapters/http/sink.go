package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"

	"github.com/google/uuid"

	"github.com/bft-labs/stageship/internal/domain"
	"github.com/bft-labs/stageship/internal/ports"
)

const (
	streamsEndpoint = "/v1/streams/"
	recordsSuffix   = "/records"

	contentTypeNDJSON = "application/x-ndjson"
	contentTypeText   = "text/plain"

	// maxErrorBody bounds how much of a failed response ends up in the error.
	maxErrorBody = 4 << 10
)

// SinkConfig describes the ingestion service a StreamSink talks to.
type SinkConfig struct {
	ServiceURL string
	AuthKey    string
	Stream     string
	Structured bool

	// Hostname is sent as X-Agent-Hostname. Default: os.Hostname()
	Hostname string
}

// StreamSink implements ports.Sink against an HTTP stream-ingestion API.
type StreamSink struct {
	client ports.HTTPClient
	logger ports.Logger
	config SinkConfig
}

type streamDescription struct {
	StreamName string `json:"stream_name"`
	Status     string `json:"status"`
}

type putRecordResponse struct {
	RecordID string `json:"record_id"`
}

// NewStreamSink creates a sink bound to a single stream.
func NewStreamSink(client ports.HTTPClient, logger ports.Logger, config SinkConfig) *StreamSink {
	config.ServiceURL = strings.TrimRight(config.ServiceURL, "/")
	if config.Hostname == "" {
		config.Hostname, _ = os.Hostname()
	}
	return &StreamSink{
		client: client,
		logger: logger,
		config: config,
	}
}

// VerifyActive reports whether stream exists and accepts records.
func (s *StreamSink) VerifyActive(ctx context.Context, stream string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.streamURL(stream), nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	s.setCommonHeaders(req)

	var desc streamDescription
	if err := s.do(req, &desc); err != nil {
		return false, err
	}

	s.logger.Debug("stream described",
		ports.String("stream", desc.StreamName),
		ports.String("status", desc.Status),
	)
	return desc.Status == "ACTIVE", nil
}

// Submit posts payload as one record and returns the record id the
// service assigned to it.
func (s *StreamSink) Submit(ctx context.Context, payload []byte) (string, error) {
	endpoint := s.streamURL(s.config.Stream) + recordsSuffix
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	s.setCommonHeaders(req)
	if s.config.Structured {
		req.Header.Set("Content-Type", contentTypeNDJSON)
	} else {
		req.Header.Set("Content-Type", contentTypeText)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	req.Header.Set("X-Payload-Checksum", domain.Checksum(payload))

	var out putRecordResponse
	if err := s.do(req, &out); err != nil {
		return "", err
	}
	return out.RecordID, nil
}

func (s *StreamSink) streamURL(stream string) string {
	return s.config.ServiceURL + streamsEndpoint + url.PathEscape(stream)
}

func (s *StreamSink) setCommonHeaders(req *http.Request) {
	if s.config.AuthKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.AuthKey)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Agent-Hostname", s.config.Hostname)
	req.Header.Set("X-Agent-OSArch", runtime.GOOS+"/"+runtime.GOARCH)
}

func (s *StreamSink) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
