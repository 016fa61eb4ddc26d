package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/config"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/metrics"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
)

// Proxy forwards requests to the upstream of the matching route.
type Proxy struct {
	table   *RouteTable
	proxies map[string]*httputil.ReverseProxy
	metrics *metrics.Registry
	logger  *zap.Logger
}

// NewProxy builds one reverse proxy per route sharing base as transport.
// A nil base uses http.DefaultTransport.
func NewProxy(table *RouteTable, cfg config.Gateway, base http.RoundTripper, m *metrics.Registry, logger *zap.Logger) *Proxy {
	if base == nil {
		base = http.DefaultTransport
	}
	p := &Proxy{table: table, proxies: map[string]*httputil.ReverseProxy{}, metrics: m, logger: logger}
	for _, r := range table.Routes() {
		p.proxies[r.Prefix] = &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.Out.URL.Path = r.UpstreamPath(pr.In.URL.Path)
				pr.Out.URL.RawPath = ""
				pr.SetURL(r.Upstream)
				pr.SetXForwarded()
			},
			Transport: &retryTransport{
				base:    base,
				max:     cfg.RetryMax,
				backoff: cfg.RetryBase,
				onRetry: func() { m.IncRetry(r.Name) },
			},
			FlushInterval:  -1,
			ModifyResponse: stripUpstreamHeaders,
			ErrorHandler:   p.errorHandler(r),
		}
	}
	return p
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	route, ok := p.table.Match(req.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "Route not found", req.URL.Path)
		return
	}
	ctx, cancel := context.WithTimeout(req.Context(), route.Timeout)
	defer cancel()

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	p.proxies[route.Prefix].ServeHTTP(rec, req.WithContext(ctx))
	p.metrics.ObserveProxy(route.Name, rec.status, time.Since(start))
}

func (p *Proxy) errorHandler(r Route) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, req *http.Request, err error) {
		ctxErr := req.Context().Err()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctxErr, context.DeadlineExceeded) {
			p.logger.Warn("upstream timeout", zap.String("upstream", r.Name), zap.String("path", req.URL.Path), zap.Duration("timeout", r.Timeout))
			writeError(w, http.StatusGatewayTimeout, "Upstream service timed out", r.Name)
			return
		}
		if errors.Is(ctxErr, context.Canceled) {
			// client went away
			w.WriteHeader(499)
			return
		}
		p.logger.Error("upstream unavailable", zap.String("upstream", r.Name), zap.String("path", req.URL.Path), zap.Error(err))
		writeError(w, http.StatusBadGateway, "Upstream service unavailable", err.Error())
	}
}

// The gateway owns CORS and request ids; upstream copies would duplicate them.
func stripUpstreamHeaders(res *http.Response) error {
	for k := range res.Header {
		if strings.HasPrefix(k, "Access-Control-") {
			res.Header.Del(k)
		}
	}
	res.Header.Del("X-Request-Id")
	return nil
}

func writeError(w http.ResponseWriter, code int, message, detail string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp.ErrorBody{Message: message, Error: detail})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// retryTransport retries bodiless idempotent requests after a 5xx or a
// transport error, with exponential backoff.
type retryTransport struct {
	base    http.RoundTripper
	max     int
	backoff time.Duration
	onRetry func()
}

func retryable(req *http.Request) bool {
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
	default:
		return false
	}
	return req.Body == nil || req.Body == http.NoBody
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !retryable(req) || t.max <= 0 {
		return t.base.RoundTrip(req)
	}
	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		res, err := t.base.RoundTrip(req)
		if err == nil && res.StatusCode < 500 {
			return res, nil
		}
		if attempt >= t.max || ctx.Err() != nil {
			return res, err
		}
		timer := time.NewTimer(t.backoff << attempt)
		select {
		case <-ctx.Done():
			timer.Stop()
			return res, err
		case <-timer.C:
		}
		if res != nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))
			res.Body.Close()
		}
		if t.onRetry != nil {
			t.onRetry()
		}
	}
}
