// Command webhook-lambda relays Twilio SMS callbacks from API Gateway to the triage API.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

// relayedPaths are the only routes forwarded upstream.
var relayedPaths = map[string]bool{
	"/webhooks/twilio/sms":      true,
	"/messaging/twilio/webhook": true,
}

// forwardedHeaders are copied verbatim so the API can verify the provider signature.
var forwardedHeaders = []string{"content-type", "x-twilio-signature", "i-twilio-idempotency-token"}

type relay struct {
	upstream string
	timeout  time.Duration
	client   *http.Client
	logger   *logging.Logger
}

func loadRelay(logger *logging.Logger) (*relay, error) {
	base := strings.TrimRight(strings.TrimSpace(os.Getenv("UPSTREAM_BASE_URL")), "/")
	if base == "" {
		return nil, errors.New("UPSTREAM_BASE_URL is required")
	}
	// Twilio stops waiting after 15s.
	timeout := 14 * time.Second
	if raw := strings.TrimSpace(os.Getenv("UPSTREAM_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
		}
		timeout = parsed
	}
	return &relay{
		upstream: base,
		timeout:  timeout,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

func main() {
	logger := logging.New(os.Getenv("LOG_LEVEL"))
	r, err := loadRelay(logger)
	if err != nil {
		logger.Error("invalid relay config", "error", err)
		os.Exit(1)
	}
	lambda.Start(r.handle)
}

func (r *relay) handle(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}

	if path == "/health" {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusOK, Body: "ok"}, nil
	}
	if !relayedPaths[path] {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNotFound}, nil
	}
	if method != http.MethodPost {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusMethodNotAllowed}, nil
	}

	body, err := decodeBody(evt)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid body"}, nil
	}

	target := r.upstream + path
	if qs := strings.TrimSpace(evt.RawQueryString); qs != "" {
		target += "?" + qs
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	for _, h := range forwardedHeaders {
		if v := strings.TrimSpace(headerValue(evt.Headers, h)); v != "" {
			req.Header.Set(h, v)
		}
	}
	setPublicOrigin(req.Header, evt)

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("upstream request failed", "error", err, "path", path)
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadGateway}, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		r.logger.Warn("upstream returned error", "status", resp.StatusCode, "path", path)
	}
	out := events.APIGatewayV2HTTPResponse{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Headers:    map[string]string{},
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		out.Headers["content-type"] = ct
	}
	return out, nil
}

// setPublicOrigin passes the host and scheme Twilio signed, so the API rebuilds the same URL.
func setPublicOrigin(dst http.Header, evt events.APIGatewayV2HTTPRequest) {
	host := strings.TrimSpace(evt.RequestContext.DomainName)
	if host == "" {
		host = strings.TrimSpace(headerValue(evt.Headers, "host"))
	}
	proto := strings.TrimSpace(headerValue(evt.Headers, "x-forwarded-proto"))
	if proto == "" {
		proto = "https"
	}
	if host != "" {
		dst.Set("X-Forwarded-Host", host)
	}
	dst.Set("X-Forwarded-Proto", proto)
}

func decodeBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
