// Package httpx 提供带超时与有界指数退避重试的出站 HTTP 客户端。
//
// 重试只针对传输层失败（连接错误、单次尝试超时）。已成功收到的
// HTTP 响应（含 4xx/5xx）原样返回，由调用方自行解释——429/500 是
// 合法响应对象，不在本层静默重试。
package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	apperrors "smartcheck-api/pkg/errors"
	"smartcheck-api/pkg/logger"
)

var tracer = otel.Tracer("httpx")

// Config 客户端配置
type Config struct {
	// Timeout 单次尝试超时
	Timeout time.Duration
	// MaxAttempts 最大尝试次数（含首次）
	MaxAttempts int
	// BackoffBase 指数退避基准
	BackoffBase time.Duration
	// BackoffCap 退避上限
	BackoffCap time.Duration
}

// Request 一次出站请求
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response 已完整读取的响应
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK 状态码是否为 2xx
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client 弹性出站客户端
type Client struct {
	cfg  Config
	http *http.Client
}

// New 创建客户端
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 8 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{},
	}
}

// NewWithHTTPClient 创建客户端并指定底层 http.Client（用于测试注入 Transport）
func NewWithHTTPClient(cfg Config, hc *http.Client) *Client {
	c := New(cfg)
	if hc != nil {
		c.http = hc
	}
	return c
}

// Do 执行请求。传输层失败时按 min(base*2^(attempt-1), cap) 退避重试，
// 耗尽尝试次数后返回网络/超时错误；收到响应即返回，不做重试。
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	ctx, span := tracer.Start(ctx, "httpx.Do")
	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL),
		attribute.Int("http.max_attempts", c.cfg.MaxAttempts),
	)
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		resp, err := c.attempt(ctx, req)
		if err == nil {
			span.SetAttributes(
				attribute.Int("http.status_code", resp.StatusCode),
				attribute.Int("http.attempts", attempt),
			)
			return resp, nil
		}
		lastErr = err

		// 外层 context 已取消时不再重试
		if ctx.Err() != nil {
			break
		}
		if attempt < c.cfg.MaxAttempts {
			wait := c.backoff(attempt)
			logger.Warn(ctx, "outbound request failed, retrying",
				"url", req.URL,
				"attempt", attempt,
				"wait", wait.String(),
				"error", err.Error(),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				lastErr = ctx.Err()
			}
		}
	}

	span.RecordError(lastErr)
	if isTimeout(lastErr) {
		return nil, apperrors.Wrap(lastErr, apperrors.CodeTimeout, "request timed out after retries")
	}
	return nil, apperrors.Wrap(lastErr, apperrors.CodeNetworkError, "network error after retries")
}

// attempt 执行单次尝试，完整读取响应体
func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, req.URL, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// backoff 第 attempt 次失败后的等待时长
func (c *Client) backoff(attempt int) time.Duration {
	wait := c.cfg.BackoffBase << (attempt - 1)
	if wait > c.cfg.BackoffCap || wait <= 0 {
		wait = c.cfg.BackoffCap
	}
	return wait
}

// isTimeout 判断错误是否为超时类传输失败
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
