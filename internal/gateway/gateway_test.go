package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remotefs/remotefs/internal/circuit"
	rfserrors "github.com/remotefs/remotefs/pkg/errors"
	"github.com/remotefs/remotefs/pkg/types"
)

// fakeService is a minimal metadata service that records every request it receives.
type fakeService struct {
	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
	handler  http.HandlerFunc
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()
	f.handler(w, r)
}

func (f *fakeService) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeService) last() (*http.Request, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1], f.bodies[len(f.bodies)-1]
}

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*Options)) (*Client, *fakeService, *test.Hook) {
	t.Helper()

	svc := &fakeService{handler: handler}
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	opts := Options{
		BaseURL: srv.URL + "/",
		Logger:  logrus.NewEntry(logger),
	}
	for _, m := range mutate {
		m(&opts)
	}

	c, err := New(opts)
	require.NoError(t, err)
	return c, svc, hook
}

func sampleAttrs() types.Attributes {
	ts := time.Unix(1700000000, 0)
	return types.Attributes{
		Ino: 5, Size: 11, Blocks: 1,
		Atime: ts, Mtime: ts, Ctime: ts, Crtime: ts,
		Kind: types.KindRegularFile, Perm: 0o644, Nlink: 1,
		UID: 1000, GID: 1000, Blksize: 4096,
	}
}

func writeAttrs(t *testing.T, w http.ResponseWriter, a types.Attributes) {
	raw, err := json.Marshal(map[string]interface{}{
		"ino":         a.Ino,
		"size":        a.Size,
		"blocks":      a.Blocks,
		"atime":       a.Atime.Unix(),
		"mtime":       a.Mtime.Unix(),
		"ctime":       a.Ctime.Unix(),
		"crtime":      a.Crtime.Unix(),
		"file_type":   a.Kind.String(),
		"permissions": a.Perm,
		"nlink":       a.Nlink,
		"uid":         a.UID,
		"gid":         a.GID,
		"blksize":     a.Blksize,
		"flags":       a.Flags,
	})
	require.NoError(t, err)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func TestNew_RejectsBadURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "localhost:3000", "ftp://host", "http://"} {
		_, err := New(Options{BaseURL: raw})
		assert.Error(t, err, raw)
		assert.Equal(t, rfserrors.ErrCodeInvalidConfig, rfserrors.GetCode(err), raw)
	}
}

func TestResolveInode_RootIsOffline(t *testing.T) {
	t.Parallel()

	c, svc, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL)
	}, func(o *Options) {
		o.Retry = RetryOptions{Attempts: 3, Delay: time.Millisecond}
		o.Breaker = circuit.NewBreaker("metadata", circuit.Config{})
	})

	path, err := c.ResolveInode(context.Background(), types.RootInode)
	require.NoError(t, err)
	assert.Equal(t, "/", path)
	assert.Zero(t, svc.count())
}

func TestResolveInode_SingleRequestVerbatimBody(t *testing.T) {
	t.Parallel()

	c, svc, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "/docs/ report.txt ")
	})

	path, err := c.ResolveInode(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "/docs/ report.txt ", path, "body is used verbatim")

	require.Equal(t, 1, svc.count())
	req, _ := svc.last()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/resolve-inode/42", req.URL.Path)
	assert.NotEmpty(t, req.Header.Get(RequestIDHeader))
}

func TestResolveInode_Classification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		check   func(error) bool
		level   logrus.Level
		wantMsg string
	}{
		{"not found", http.StatusNotFound, rfserrors.IsNotFound, logrus.WarnLevel, "Remote entry not found"},
		{"server error", http.StatusInternalServerError, rfserrors.IsServerError, logrus.ErrorLevel, "Metadata service returned an error"},
		{"bad request", http.StatusBadRequest, rfserrors.IsServerError, logrus.ErrorLevel, "Metadata service returned an error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, svc, hook := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := c.ResolveInode(context.Background(), 9)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected classification: %v", err)
			assert.Equal(t, 1, svc.count())

			var rfsErr *rfserrors.RemoteFSError
			require.ErrorAs(t, err, &rfsErr)
			assert.Equal(t, tt.status, rfsErr.HTTPStatus)

			entry := hook.LastEntry()
			require.NotNil(t, entry)
			assert.Equal(t, tt.level, entry.Level)
			assert.Equal(t, tt.wantMsg, entry.Message)
		})
	}
}

func TestNetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: base})
	require.NoError(t, err)

	_, err = c.ResolveInode(context.Background(), 2)
	assert.True(t, rfserrors.IsNetworkError(err), "got %v", err)

	_, err = c.FetchAttributes(context.Background(), "/a")
	assert.True(t, rfserrors.IsNetworkError(err), "got %v", err)

	err = c.Health(context.Background())
	assert.True(t, rfserrors.IsNetworkError(err), "got %v", err)
}

func TestFetchAttributes(t *testing.T) {
	t.Parallel()

	want := sampleAttrs()
	c, svc, hook := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeAttrs(t, w, want)
	})

	got, err := c.FetchAttributes(context.Background(), "/dir/a b&c.txt")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	req, _ := svc.last()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/metadata", req.URL.Path)
	assert.Equal(t, "/dir/a b&c.txt", req.URL.Query().Get("path"))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
}

func TestFetchAttributes_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(error) bool
	}{
		{
			name:    "missing entry",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
			check:   rfserrors.IsNotFound,
		},
		{
			name:    "service failure",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) },
			check:   rfserrors.IsServerError,
		},
		{
			name: "undecodable body is a server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"ino": 3}`)
			},
			check: rfserrors.IsServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestClient(t, tt.handler)
			_, err := c.FetchAttributes(context.Background(), "/x")
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected classification: %v", err)
		})
	}
}

func TestUpdateAttributes_SizeOnlyKeepsServerOwnership(t *testing.T) {
	t.Parallel()

	stored := sampleAttrs()
	c, svc, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]*json.Number
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		require.NoError(t, dec.Decode(&body))
		if body["size"] != nil {
			n, err := body["size"].Int64()
			require.NoError(t, err)
			stored.Size = uint64(n)
		}
		if body["uid"] != nil {
			n, _ := body["uid"].Int64()
			stored.UID = uint32(n)
		}
		writeAttrs(t, w, stored)
	})

	size := uint64(0)
	got, err := c.UpdateAttributes(context.Background(), "/dir/file", types.AttrUpdate{Size: &size})
	require.NoError(t, err)

	assert.Zero(t, got.Size)
	assert.Equal(t, uint32(1000), got.UID)
	assert.Equal(t, uint32(1000), got.GID)
	assert.Equal(t, uint16(0o644), got.Perm)

	req, body := svc.last()
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "/metadata", req.URL.Path)
	assert.Equal(t, "/dir/file", req.URL.Query().Get("path"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"mode":null,"uid":null,"gid":null,"size":0,"flags":null}`, body)
}

func TestUpdateAttributes_NotFoundIsServerError(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	mode := uint32(0o600)
	_, err := c.UpdateAttributes(context.Background(), "/gone", types.AttrUpdate{Mode: &mode})
	require.Error(t, err)
	assert.True(t, rfserrors.IsServerError(err), "got %v", err)
	assert.False(t, rfserrors.IsNotFound(err))
}

func TestHealth(t *testing.T) {
	t.Parallel()

	var status atomic.Int32
	status.Store(http.StatusNoContent)
	c, svc, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(int(status.Load()))
	})

	require.NoError(t, c.Health(context.Background()))

	status.Store(http.StatusServiceUnavailable)
	err := c.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, rfserrors.ErrCodeUnhealthy, rfserrors.GetCode(err))
	assert.Equal(t, 2, svc.count())
}

func TestRetry_OnlyNetworkErrors(t *testing.T) {
	t.Parallel()

	c, svc, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, func(o *Options) {
		o.Retry = RetryOptions{Attempts: 4, Delay: time.Millisecond}
	})

	_, err := c.ResolveInode(context.Background(), 3)
	assert.True(t, rfserrors.IsServerError(err))
	assert.Equal(t, 1, svc.count(), "server errors are not retried")
}

func TestRetry_RecoversFromDroppedConnections(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		_, _ = io.WriteString(w, "/recovered")
	}, func(o *Options) {
		o.Retry = RetryOptions{Attempts: 3, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	})

	path, err := c.ResolveInode(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, "/recovered", path)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, func(o *Options) {
		o.Timeout = 20 * time.Millisecond
	})

	_, err := c.FetchAttributes(context.Background(), "/slow")
	assert.True(t, rfserrors.IsNetworkError(err), "got %v", err)
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()

	c, svc, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "/never")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ResolveInode(ctx, 12)
	assert.True(t, rfserrors.IsNetworkError(err), "got %v", err)
	assert.Zero(t, svc.count())
}

func TestBreaker_FailsFastWhenOpen(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	breaker := circuit.NewBreaker("metadata", circuit.Config{
		FailureThreshold: 2,
		Timeout:          time.Hour,
		IsFailure:        rfserrors.IsNetworkError,
	})
	c, err := New(Options{BaseURL: base, Breaker: breaker})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := c.ResolveInode(context.Background(), 4)
		require.True(t, rfserrors.IsNetworkError(err))
	}
	require.Equal(t, circuit.StateOpen, breaker.State())

	_, err = c.ResolveInode(context.Background(), 4)
	require.Error(t, err)
	assert.True(t, rfserrors.IsNetworkError(err))
	assert.ErrorIs(t, err, circuit.ErrOpenState)
	assert.False(t, rfserrors.IsRetryable(err))
}

func TestBreaker_NotFoundDoesNotTrip(t *testing.T) {
	t.Parallel()

	breaker := circuit.NewBreaker("metadata", circuit.Config{
		FailureThreshold: 1,
		IsFailure:        rfserrors.IsNetworkError,
	})
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, func(o *Options) { o.Breaker = breaker })

	for i := 0; i < 3; i++ {
		_, err := c.FetchAttributes(context.Background(), "/missing")
		require.True(t, rfserrors.IsNotFound(err))
	}
	assert.Equal(t, circuit.StateClosed, breaker.State())
}

type recordingMetrics struct {
	mu    sync.Mutex
	calls []string
}

func (m *recordingMetrics) RecordOperation(string, time.Duration, bool) {}
func (m *recordingMetrics) SetRemoteHealthy(bool)                       {}
func (m *recordingMetrics) RecordRemoteCall(endpoint, outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, endpoint+":"+outcome)
}

func TestMetricsOutcomes(t *testing.T) {
	t.Parallel()

	rec := &recordingMetrics{}
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/resolve-inode/"):
			_, _ = io.WriteString(w, "/a")
		case r.Method == http.MethodPatch:
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, func(o *Options) { o.Metrics = rec })

	_, _ = c.ResolveInode(context.Background(), 2)
	_, _ = c.FetchAttributes(context.Background(), "/a")
	_, _ = c.UpdateAttributes(context.Background(), "/a", types.AttrUpdate{})

	assert.Equal(t, []string{
		"resolve_inode:ok",
		"fetch_metadata:not_found",
		"update_metadata:server_error",
	}, rec.calls)
}
