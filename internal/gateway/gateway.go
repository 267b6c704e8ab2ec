package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/remotefs/remotefs/internal/circuit"
	rfserrors "github.com/remotefs/remotefs/pkg/errors"
	"github.com/remotefs/remotefs/pkg/types"
)

const (
	// RequestIDHeader carries a per-call identifier the server can log.
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 1 << 20
)

// Endpoint labels used in logs and metrics.
const (
	EndpointHealth         = "health"
	EndpointResolveInode   = "resolve_inode"
	EndpointFetchMetadata  = "fetch_metadata"
	EndpointUpdateMetadata = "update_metadata"
)

// Outcome labels used in metrics.
const (
	OutcomeOK           = "ok"
	OutcomeNotFound     = "not_found"
	OutcomeServerError  = "server_error"
	OutcomeNetworkError = "network_error"
)

// RetryOptions controls re-sending a call after a transport failure.
type RetryOptions struct {
	// Attempts is the total number of tries. Values below 1 mean one try.
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

// Options configures a Client.
type Options struct {
	// BaseURL is the metadata service address, for example http://localhost:3000.
	BaseURL string

	// HTTPClient defaults to a client with no timeout of its own.
	HTTPClient *http.Client

	// Timeout bounds each attempt. Zero means no per-call timeout.
	Timeout time.Duration

	Retry RetryOptions

	// Breaker, when set, guards every call except Health.
	Breaker *circuit.Breaker

	Metrics types.MetricsCollector
	Logger  *logrus.Entry
}

// Client talks to the remote metadata service.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
	retry   RetryOptions
	breaker *circuit.Breaker
	metrics types.MetricsCollector
	log     *logrus.Entry
}

var _ types.MetadataService = (*Client)(nil)

// New validates opts and returns a Client.
func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, rfserrors.Newf(rfserrors.ErrCodeInvalidConfig, "invalid metadata service URL %q", opts.BaseURL).
			WithComponent("gateway").WithCause(err)
	}

	c := &Client{
		base:    strings.TrimRight(opts.BaseURL, "/"),
		http:    opts.HTTPClient,
		timeout: opts.Timeout,
		retry:   opts.Retry,
		breaker: opts.Breaker,
		metrics: opts.Metrics,
		log:     opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.retry.Attempts < 1 {
		c.retry.Attempts = 1
	}
	if c.metrics == nil {
		c.metrics = types.NopMetrics{}
	}
	if c.log == nil {
		c.log = logrus.WithField("component", "gateway")
	}
	return c, nil
}

// BaseURL returns the normalized service address.
func (c *Client) BaseURL() string {
	return c.base
}

// Health probes GET {base}/health. Any 2xx status is healthy.
func (c *Client) Health(ctx context.Context) error {
	start := time.Now()
	resp, err := c.send(ctx, EndpointHealth, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		c.metrics.RecordRemoteCall(EndpointHealth, OutcomeNetworkError, time.Since(start))
		c.log.WithError(err).WithField("url", c.base+"/health").Error("Metadata service unreachable")
		return err
	}
	if !isSuccess(resp.status) {
		c.metrics.RecordRemoteCall(EndpointHealth, OutcomeServerError, time.Since(start))
		c.log.WithFields(logrus.Fields{"status": resp.status, "url": c.base + "/health"}).
			Error("Metadata service reported unhealthy")
		return rfserrors.Newf(rfserrors.ErrCodeUnhealthy, "health check returned status %d", resp.status).
			WithComponent("gateway").WithOperation(EndpointHealth).WithHTTPStatus(resp.status)
	}
	c.metrics.RecordRemoteCall(EndpointHealth, OutcomeOK, time.Since(start))
	c.log.WithField("status", resp.status).Debug("Metadata service healthy")
	return nil
}

// ResolveInode maps ino to its remote path. The root inode never leaves the process.
func (c *Client) ResolveInode(ctx context.Context, ino uint64) (string, error) {
	if ino == types.RootInode {
		return types.RootPath, nil
	}

	fields := logrus.Fields{"ino": ino}
	start := time.Now()
	resp, err := c.call(ctx, EndpointResolveInode, http.MethodGet,
		c.base+"/resolve-inode/"+strconv.FormatUint(ino, 10), nil)
	if err != nil {
		return "", c.fail(EndpointResolveInode, start, fields, err)
	}

	switch {
	case isSuccess(resp.status):
		path := string(resp.body)
		c.succeed(EndpointResolveInode, start, fields, "path", path, "Resolved inode")
		return path, nil
	case resp.status == http.StatusNotFound:
		return "", c.fail(EndpointResolveInode, start, fields,
			c.notFound(EndpointResolveInode, fmt.Sprintf("inode %d not found", ino), resp))
	default:
		return "", c.fail(EndpointResolveInode, start, fields,
			c.serverError(EndpointResolveInode, fmt.Sprintf("resolving inode %d", ino), resp, nil))
	}
}

// FetchAttributes reads GET {base}/metadata?path=... and decodes the record.
func (c *Client) FetchAttributes(ctx context.Context, path string) (types.Attributes, error) {
	fields := logrus.Fields{"path": path}
	start := time.Now()
	resp, err := c.call(ctx, EndpointFetchMetadata, http.MethodGet, c.metadataURL(path), nil)
	if err != nil {
		return types.Attributes{}, c.fail(EndpointFetchMetadata, start, fields, err)
	}

	switch {
	case isSuccess(resp.status):
		attrs, err := types.DecodeMetadata(resp.body)
		if err != nil {
			return types.Attributes{}, c.fail(EndpointFetchMetadata, start, fields,
				c.serverError(EndpointFetchMetadata, "undecodable metadata for "+path, resp, err))
		}
		c.succeed(EndpointFetchMetadata, start, fields, "ino", attrs.Ino, "Fetched metadata")
		return attrs, nil
	case resp.status == http.StatusNotFound:
		return types.Attributes{}, c.fail(EndpointFetchMetadata, start, fields,
			c.notFound(EndpointFetchMetadata, path+" not found", resp))
	default:
		return types.Attributes{}, c.fail(EndpointFetchMetadata, start, fields,
			c.serverError(EndpointFetchMetadata, "fetching metadata for "+path, resp, nil))
	}
}

// UpdateAttributes sends PATCH {base}/metadata?path=... and returns the server's resulting state.
// Every non-2xx status, 404 included, is a server error for this call.
func (c *Client) UpdateAttributes(ctx context.Context, path string, update types.AttrUpdate) (types.Attributes, error) {
	fields := logrus.Fields{"path": path, "update": update.String()}

	body, err := types.EncodeUpdate(update)
	if err != nil {
		return types.Attributes{}, rfserrors.NewError(rfserrors.ErrCodeInternalError, "encoding attribute update").
			WithComponent("gateway").WithOperation(EndpointUpdateMetadata).WithCause(err)
	}

	start := time.Now()
	resp, err := c.call(ctx, EndpointUpdateMetadata, http.MethodPatch, c.metadataURL(path), body)
	if err != nil {
		return types.Attributes{}, c.fail(EndpointUpdateMetadata, start, fields, err)
	}

	if !isSuccess(resp.status) {
		return types.Attributes{}, c.fail(EndpointUpdateMetadata, start, fields,
			c.serverError(EndpointUpdateMetadata, "updating metadata for "+path, resp, nil))
	}

	attrs, err := types.DecodeMetadata(resp.body)
	if err != nil {
		return types.Attributes{}, c.fail(EndpointUpdateMetadata, start, fields,
			c.serverError(EndpointUpdateMetadata, "undecodable metadata for "+path, resp, err))
	}
	c.succeed(EndpointUpdateMetadata, start, fields, "ino", attrs.Ino, "Updated metadata")
	return attrs, nil
}

func (c *Client) metadataURL(path string) string {
	return c.base + "/metadata?" + url.Values{"path": {path}}.Encode()
}

type response struct {
	status    int
	body      []byte
	requestID string
}

// call runs one logical request through the breaker and the retry policy.
func (c *Client) call(ctx context.Context, endpoint, method, target string, body []byte) (response, error) {
	attempt := func() (response, error) {
		if c.breaker == nil {
			return c.send(ctx, endpoint, method, target, body)
		}

		var resp response
		err := c.breaker.Do(ctx, func(ctx context.Context) error {
			var err error
			resp, err = c.send(ctx, endpoint, method, target, body)
			return err
		})
		if errors.Is(err, circuit.ErrOpenState) || errors.Is(err, circuit.ErrTooManyRequests) {
			rejected := rfserrors.NewError(rfserrors.ErrCodeNetworkError, "metadata service circuit open").
				WithComponent("gateway").WithOperation(endpoint).WithCause(err)
			rejected.Retryable = false
			return response{}, rejected
		}
		return resp, err
	}

	resp, err := retry.DoWithData(attempt,
		retry.Context(ctx),
		retry.Attempts(c.retry.Attempts),
		retry.Delay(c.retry.Delay),
		retry.MaxDelay(c.retry.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(rfserrors.IsRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.WithError(err).WithFields(logrus.Fields{
				"endpoint": endpoint,
				"attempt":  n + 1,
			}).Warn("Retrying metadata service call")
		}),
	)
	if err != nil && rfserrors.GetCode(err) == "" {
		// Context cancellation surfaces from the retry loop unwrapped.
		err = rfserrors.NewError(rfserrors.ErrCodeNetworkError, "request abandoned").
			WithComponent("gateway").WithOperation(endpoint).WithCause(err)
	}
	return resp, err
}

// send performs a single HTTP exchange. Only transport failures are errors here.
func (c *Client) send(ctx context.Context, endpoint, method, target string, body []byte) (response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	requestID := uuid.NewString()
	networkError := func(msg string, cause error) error {
		return rfserrors.NewError(rfserrors.ErrCodeNetworkError, msg).
			WithComponent("gateway").WithOperation(endpoint).
			WithContext("request_id", requestID).WithCause(cause)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return response{}, networkError("building request", err)
	}
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return response{}, networkError(method+" "+target+" failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response{}, networkError("reading response body", err)
	}

	return response{status: resp.StatusCode, body: data, requestID: requestID}, nil
}

func (c *Client) notFound(endpoint, msg string, resp response) error {
	return rfserrors.NewError(rfserrors.ErrCodeNotFound, msg).
		WithComponent("gateway").WithOperation(endpoint).
		WithHTTPStatus(resp.status).WithContext("request_id", resp.requestID)
}

func (c *Client) serverError(endpoint, msg string, resp response, cause error) error {
	e := rfserrors.Newf(rfserrors.ErrCodeServerError, "%s: status %d", msg, resp.status).
		WithComponent("gateway").WithOperation(endpoint).
		WithHTTPStatus(resp.status).WithContext("request_id", resp.requestID)
	if cause != nil {
		e.WithCause(cause)
	}
	return e
}

// fail records and logs a failed call at the severity its category calls for.
func (c *Client) fail(endpoint string, start time.Time, fields logrus.Fields, err error) error {
	entry := c.log.WithFields(fields).WithField("endpoint", endpoint).WithError(err)
	switch {
	case rfserrors.IsNotFound(err):
		c.metrics.RecordRemoteCall(endpoint, OutcomeNotFound, time.Since(start))
		entry.Warn("Remote entry not found")
	case rfserrors.IsNetworkError(err):
		c.metrics.RecordRemoteCall(endpoint, OutcomeNetworkError, time.Since(start))
		entry.Error("Metadata service call failed")
	default:
		c.metrics.RecordRemoteCall(endpoint, OutcomeServerError, time.Since(start))
		entry.Error("Metadata service returned an error")
	}
	return err
}

func (c *Client) succeed(endpoint string, start time.Time, fields logrus.Fields, key string, value interface{}, msg string) {
	elapsed := time.Since(start)
	c.metrics.RecordRemoteCall(endpoint, OutcomeOK, elapsed)
	c.log.WithFields(fields).WithFields(logrus.Fields{key: value, "duration": elapsed}).Info(msg)
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
