package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultRequestTimeout 出站 HTTP 请求的默认超时
const DefaultRequestTimeout = 5 * time.Second

// DoWithTimeout 发起带超时的 HTTP 请求。
// 超时通过上下文取消实现，表现为可重试的 TIMEOUT_ERROR。
func DoWithTimeout(ctx context.Context, client *http.Client, req *http.Request, timeout time.Duration) (*http.Response, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	resp, err := client.Do(req.WithContext(reqCtx))
	if err != nil {
		cancel()
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return nil, Wrap(err, TimeoutError, "TIMEOUT",
				fmt.Sprintf("request timeout after %s", timeout), true)
		}
		return nil, Classify(err)
	}

	// 响应体读取完成前不能取消上下文
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
