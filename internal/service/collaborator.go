package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"news-lens/internal/apperr"
	"news-lens/internal/logging"
)

const (
	maxResponseBytes = 4 << 20
	maxLoggedBody    = 2048
	maxBackoff       = 30 * time.Second
)

// collaborator 外部服务的 JSON HTTP 客户端，每次请求都有超时，失败返回上游错误
type collaborator struct {
	name       string
	client     *http.Client
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	headers    map[string]string

	// errorMessage 从失败响应中提取错误信息
	errorMessage func(body []byte) string
}

func newCollaborator(name string, timeout time.Duration, maxRetries int, headers map[string]string) *collaborator {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	return &collaborator{
		name:       name,
		client:     &http.Client{},
		timeout:    timeout,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
		headers:    headers,
	}
}

// call 发送 JSON 请求并解析 2xx 响应
// 超时、429 和 5xx 会重试，总共最多 maxRetries 次
func (c *collaborator) call(ctx context.Context, method, url string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Wrapf(err, "encode %s request", c.name)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		lastErr = c.once(ctx, method, url, payload, out)
		if lastErr == nil {
			return nil
		}
		if !apperr.Retryable(lastErr) || attempt == c.maxRetries-1 {
			break
		}

		delay := c.backoffDelay(attempt)
		logging.Log.WithFields(logrus.Fields{
			"collaborator": c.name,
			"attempt":      attempt + 1,
			"max_retries":  c.maxRetries,
			"delay":        delay,
		}).Warnf("request failed, retrying: %v", lastErr)

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
	}
	return lastErr
}

func (c *collaborator) once(ctx context.Context, method, url string, payload []byte, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Wrapf(err, "build %s request", c.name)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return apperr.Unreachable(c.name, err, isTimeout(ctx, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return apperr.Unreachable(c.name, err, isTimeout(ctx, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := ""
		if c.errorMessage != nil {
			msg = c.errorMessage(respBody)
		}
		logging.Log.WithFields(logrus.Fields{
			"collaborator": c.name,
			"status":       resp.StatusCode,
		}).Errorf("non-2xx response: %s", truncate(string(respBody), maxLoggedBody))
		return apperr.Upstream(c.name, resp.StatusCode, msg, truncate(string(respBody), maxLoggedBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		logging.Log.WithField("collaborator", c.name).Errorf("undecodable response: %s", truncate(string(respBody), maxLoggedBody))
		return apperr.Upstream(c.name, resp.StatusCode, "invalid response from "+c.name, truncate(string(respBody), maxLoggedBody))
	}
	return nil
}

func (c *collaborator) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(c.baseDelay) * math.Pow(2, float64(attempt)))
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// jsonField 取 JSON 对象中第一个非空的字符串字段
func jsonField(body []byte, keys ...string) string {
	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
