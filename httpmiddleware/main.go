package httpmiddleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const defaultTimeout = 30 * time.Second

type HttpRequestStruct struct {
	Method  string
	Url     string
	Body    io.Reader
	Headers map[string]string
	Timeout time.Duration
}

type HttpResponse struct {
	StatusCode int
	Body       []byte
}

// HttpRequest issues a single request and returns the response body. Non-2xx
// statuses come back as errors; callers that need the status use HttpRequestFull.
func HttpRequest(args HttpRequestStruct) ([]byte, error) {
	resp, err := HttpRequestFull(args)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.Body, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(resp.Body))
	}
	return resp.Body, nil
}

func HttpRequestFull(args HttpRequestStruct) (*HttpResponse, error) {
	timeout := args.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	client := &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	req, err := http.NewRequest(args.Method, args.Url, args.Body)
	if err != nil {
		return nil, fmt.Errorf("could not build request: %w", err)
	}
	for key, value := range args.Headers {
		req.Header.Set(key, value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	return &HttpResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

// IsTimeout reports whether err came from the request deadline rather than a
// connection-level failure.
func IsTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
