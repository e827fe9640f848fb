// Package probe talks to a running chatbot backend.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	chatPath     = "api/chat"
	contentType  = "application/json"
	maxErrorBody = 1024 * 1024

	DefaultTimeout = 30 * time.Second
)

var (
	ErrConnection = errors.New("could not connect to the backend server")
	ErrTimeout    = errors.New("request timed out")
)

// StatusError is returned for any response other than 200 OK.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return "received status code " + strconv.Itoa(e.Code)
}

type Client struct {
	requestURL *url.URL
	client     *http.Client
}

// ServerURL returns the base URL of a backend listening on host:port.
func ServerURL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// NewClient returns a client of the backend at serverURL, which must have
// a scheme and no path. A zero timeout means DefaultTimeout.
func NewClient(serverURL string, timeout time.Duration) (*Client, error) {
	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	parsedURL.Path = strings.TrimRight(parsedURL.Path, "/")

	if parsedURL.Scheme == "" || parsedURL.Host == "" || parsedURL.Path != "" {
		return nil, errors.New("please define the server url with a scheme and without path, e.g. `http://localhost:3002`")
	}
	parsedURL.Path = "/" + chatPath

	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		requestURL: parsedURL,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// URL is the chat endpoint.
func (c *Client) URL() string {
	return c.requestURL.String()
}

type Response struct {
	Reply string
	// ProcessingTime in milliseconds as reported by the backend, nil when
	// the backend does not report it.
	ProcessingTime *float64
	Elapsed        time.Duration // measured round trip
}

// ResponseTime prefers the time reported by the backend over the measured
// round trip.
func (r Response) ResponseTime() time.Duration {
	if r.ProcessingTime == nil {
		return r.Elapsed
	}
	return time.Duration(*r.ProcessingTime * float64(time.Millisecond))
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply          string   `json:"reply"`
	ProcessingTime *float64 `json:"processingTime"`
}

// Chat sends a single message and waits for the reply.
func (c *Client) Chat(ctx context.Context, message string) (Response, error) {
	raw, err := json.Marshal(chatRequest{Message: message})
	if err != nil {
		return Response{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL.String(), bytes.NewReader(raw))
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, classify(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	ret, err := decodeChatResponse(resp)
	if err != nil {
		return Response{}, classify(err)
	}
	ret.Elapsed = time.Since(start)
	slog.DebugContext(ctx, "chat reply received",
		slog.String("url", c.requestURL.String()),
		slog.Duration("elapsed", ret.Elapsed))
	return ret, nil
}

func decodeChatResponse(resp *http.Response) (Response, error) {
	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if err != nil {
			return Response{}, err
		}
		return Response{}, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return Response{}, fmt.Errorf("decoding json response failed: %w", err)
	}
	return Response{Reply: cr.Reply, ProcessingTime: cr.ProcessingTime}, nil
}

// classify maps transport failures to ErrTimeout and ErrConnection.
func classify(err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) || errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return err
}
