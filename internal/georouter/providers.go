package georouter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"morntool/backend/internal/resilience"
)

// provider 单个 IP 归属地查询源
type provider struct {
	name string
	// urlFor 根据 IP 拼出查询地址
	urlFor func(ip string) string
	// parse 从响应体提取国家码
	parse func(body []byte) (string, error)
	retry *resilience.RetryOptions
}

// defaultProviders 按优先级排列的查询源。
// 前两个短暂故障时重试，最后一个兜底源只查一次。
func defaultProviders() []provider {
	return []provider{
		{
			name:   "ipapi.co",
			urlFor: func(ip string) string { return "https://ipapi.co/" + ip + "/json/" },
			parse:  parseIPAPICo,
			retry:  &resilience.RetryOptions{MaxRetries: 2, Delay: time.Second, BackoffMultiplier: 1},
		},
		{
			name:   "ip-api.com",
			urlFor: func(ip string) string { return "http://ip-api.com/json/" + ip },
			parse:  parseIPAPICom,
			retry:  &resilience.RetryOptions{MaxRetries: 2, Delay: 2 * time.Second, BackoffMultiplier: 1},
		},
		{
			name:   "ipinfo.io",
			urlFor: func(ip string) string { return "https://ipinfo.io/" + ip + "/json" },
			parse:  parseIPInfo,
		},
	}
}

func parseIPAPICo(body []byte) (string, error) {
	var payload struct {
		CountryCode string `json:"country_code"`
		Error       bool   `json:"error"`
		Reason      string `json:"reason"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", resilience.Wrap(err, resilience.APIError, "IPAPI_CO_PARSE", "ipapi.co 响应解析失败", false)
	}
	if payload.Error {
		return "", resilience.New(resilience.APIError, "IPAPI_CO_REJECTED", payload.Reason, false)
	}
	if payload.CountryCode == "" {
		return "", resilience.New(resilience.APIError, "IPAPI_CO_EMPTY", "ipapi.co 未返回国家码", false)
	}
	return payload.CountryCode, nil
}

func parseIPAPICom(body []byte) (string, error) {
	var payload struct {
		Status      string `json:"status"`
		Message     string `json:"message"`
		CountryCode string `json:"countryCode"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", resilience.Wrap(err, resilience.APIError, "IP_API_PARSE", "ip-api.com 响应解析失败", false)
	}
	if payload.Status == "fail" {
		return "", resilience.New(resilience.APIError, "IP_API_REJECTED", payload.Message, false)
	}
	if payload.CountryCode == "" {
		return "", resilience.New(resilience.APIError, "IP_API_EMPTY", "ip-api.com 未返回国家码", false)
	}
	return payload.CountryCode, nil
}

func parseIPInfo(body []byte) (string, error) {
	var payload struct {
		Country string `json:"country"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", resilience.Wrap(err, resilience.APIError, "IPINFO_PARSE", "ipinfo.io 响应解析失败", false)
	}
	if payload.Country == "" {
		return "", resilience.New(resilience.APIError, "IPINFO_EMPTY", "ipinfo.io 未返回国家码", false)
	}
	return payload.Country, nil
}

// lookup 查询单个源，带该源自己的重试策略
func (p provider) lookup(ctx context.Context, client *http.Client, ip string) (string, error) {
	op := func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.urlFor(ip), nil)
		if err != nil {
			return "", resilience.Wrap(err, resilience.ConfigError, "GEO_REQUEST", "构造请求失败", false)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := resilience.DoWithTimeout(ctx, client, req, resilience.DefaultRequestTimeout)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
			return "", resilience.New(resilience.APIError, "GEO_HTTP_STATUS",
				fmt.Sprintf("%s 返回 %d", p.name, resp.StatusCode), retryable)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if err != nil {
			return "", resilience.Wrap(err, resilience.NetworkError, "GEO_READ_BODY", "读取响应失败", true)
		}
		code, err := p.parse(body)
		if err != nil {
			return "", err
		}
		return strings.ToUpper(strings.TrimSpace(code)), nil
	}

	if p.retry != nil {
		return resilience.WithRetry(ctx, op, *p.retry)
	}
	return op(ctx)
}
