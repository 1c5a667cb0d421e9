// Command lambda serves the API behind API Gateway. Only the sqlite,
// postgres and mongo backends are accepted since nothing else outlives an
// invocation.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"civic-reporting-api/internal/app"
	"civic-reporting-api/internal/config"
	"civic-reporting-api/internal/logger"
)

type proxyHandler func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

func main() {
	log := logger.Get("lambda")

	cfg, err := config.LoadConfig(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	switch strings.ToLower(cfg.Storage.Backend) {
	case "file", "memory":
		log.WithField("storage", cfg.Storage.Backend).Fatal("storage backend is not supported on Lambda")
	}
	// Ticker-driven retries do not survive between invocations.
	cfg.Worker.Enabled = false

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize application")
	}
	defer a.Close()

	lambda.Start(newProxyHandler(a.Router))
}

// newProxyHandler adapts API Gateway proxy events onto router.
func newProxyHandler(router http.Handler) proxyHandler {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		httpReq, err := toHTTPRequest(ctx, req)
		if err != nil {
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusBadRequest,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       `{"success":false,"error":"malformed request","code":"VALIDATION_ERROR"}`,
			}, nil
		}

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httpReq)

		headers := make(map[string]string, len(rec.Header()))
		for k, v := range rec.Header() {
			headers[k] = strings.Join(v, ",")
		}
		return events.APIGatewayProxyResponse{
			StatusCode:        rec.Code,
			Headers:           headers,
			MultiValueHeaders: rec.Header(),
			Body:              rec.Body.String(),
		}, nil
	}
}

func toHTTPRequest(ctx context.Context, req events.APIGatewayProxyRequest) (*http.Request, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode body: %w", err)
		}
		body = decoded
	}

	query := url.Values{}
	for k, vs := range req.MultiValueQueryStringParameters {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	for k, v := range req.QueryStringParameters {
		if _, ok := query[k]; !ok {
			query.Set(k, v)
		}
	}

	u := url.URL{Path: req.Path, RawQuery: query.Encode()}
	httpReq, err := http.NewRequestWithContext(ctx, req.HTTPMethod, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	for k, vs := range req.MultiValueHeaders {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, v := range req.Headers {
		if httpReq.Header.Get(k) == "" {
			httpReq.Header.Set(k, v)
		}
	}
	if ip := req.RequestContext.Identity.SourceIP; ip != "" {
		httpReq.RemoteAddr = ip + ":0"
	}
	return httpReq, nil
}
