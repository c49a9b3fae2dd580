package georouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"morntool/backend/internal/domain"
	"morntool/backend/internal/geo"
	"morntool/backend/internal/resilience"
)

// newTestRouter 用 httptest 服务替换外部查询源
func newTestRouter(t *testing.T, providers []provider) *Router {
	t.Helper()
	r := New(Options{}, resilience.NewRecovery(), zap.NewNop())
	r.providers = providers
	t.Cleanup(r.Close)
	return r
}

func jsonProvider(t *testing.T, name, body string, calls *int64) (provider, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls != nil {
			atomic.AddInt64(calls, 1)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	p := provider{
		name:   name,
		urlFor: func(string) string { return srv.URL },
		parse:  parseIPAPICo,
	}
	return p, srv.Close
}

func failingProvider(t *testing.T, name string, calls *int64) (provider, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls != nil {
			atomic.AddInt64(calls, 1)
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	p := provider{
		name:   name,
		urlFor: func(string) string { return srv.URL },
		parse:  parseIPAPICo,
	}
	return p, srv.Close
}

func TestDetectUsesFirstProvider(t *testing.T) {
	p, closeFn := jsonProvider(t, "primary", `{"country_code":"CN"}`, nil)
	defer closeFn()

	r := newTestRouter(t, []provider{p})
	result := r.Detect(context.Background(), "1.2.3.4")

	assert.Equal(t, geo.RegionChina, result.Region)
	assert.Equal(t, domain.BackendCloudBase, result.Database)
	assert.Equal(t, domain.PlatformTencent, result.Deployment)
	assert.Contains(t, result.PaymentMethods, "alipay")
}

func TestDetectFallsThroughProviders(t *testing.T) {
	var primaryCalls, secondaryCalls int64
	bad, closeBad := failingProvider(t, "primary", &primaryCalls)
	defer closeBad()
	good, closeGood := jsonProvider(t, "secondary", `{"country_code":"DE"}`, &secondaryCalls)
	defer closeGood()

	r := newTestRouter(t, []provider{bad, good})
	result := r.Detect(context.Background(), "5.6.7.8")

	assert.Equal(t, geo.RegionEurope, result.Region)
	assert.True(t, result.GDPRCompliant)
	assert.GreaterOrEqual(t, primaryCalls, int64(1))
	assert.Equal(t, int64(1), secondaryCalls)
}

func TestDetectCachesResult(t *testing.T) {
	var calls int64
	p, closeFn := jsonProvider(t, "primary", `{"country_code":"SG"}`, &calls)
	defer closeFn()

	r := newTestRouter(t, []provider{p})
	first := r.Detect(context.Background(), "9.9.9.9")
	second := r.Detect(context.Background(), "9.9.9.9")

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), calls)
}

func TestDetectCoalescesConcurrentRequests(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write([]byte(`{"country_code":"IN"}`))
	}))
	defer srv.Close()

	p := provider{
		name:   "slow",
		urlFor: func(string) string { return srv.URL },
		parse:  parseIPAPICo,
	}
	r := newTestRouter(t, []provider{p})

	var wg sync.WaitGroup
	results := make([]domain.GeoResult, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Detect(context.Background(), "8.8.8.8")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls)
	for _, result := range results {
		assert.Equal(t, geo.RegionIndia, result.Region)
	}
}

func TestDetectShortCircuitsLocalIPs(t *testing.T) {
	var calls int64
	p, closeFn := jsonProvider(t, "primary", `{"country_code":"DE"}`, &calls)
	defer closeFn()

	r := newTestRouter(t, []provider{p})

	// 内网和回环地址不触达外部查询源，直接按本地判定归入国内
	for _, ip := range []string{"192.168.1.10", "127.0.0.1", "10.0.0.5"} {
		result := r.Detect(context.Background(), ip)
		assert.Equal(t, geo.RegionChina, result.Region, ip)
	}
	assert.Equal(t, int64(0), calls)

	// 空串和解析失败的 IP 同样不出外网，落到默认画像
	for _, ip := range []string{"", "not-an-ip"} {
		result := r.Detect(context.Background(), ip)
		assert.Equal(t, domain.DefaultGeoResult(), result, ip)
	}
	assert.Equal(t, int64(0), calls)
}

func TestDetectSurvivesCallerCancellation(t *testing.T) {
	var calls int64
	p, closeFn := jsonProvider(t, "primary", `{"country_code":"CN"}`, &calls)
	defer closeFn()

	r := newTestRouter(t, []provider{p})

	// 调用方上下文已取消，探测本身不受牵连
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := r.Detect(ctx, "4.3.2.1")

	assert.Equal(t, geo.RegionChina, result.Region)
	assert.Equal(t, int64(1), calls)
}

func TestDetectDefaultsWhenEverythingFails(t *testing.T) {
	// 启发式对公网 IP 给出 US，所以整条链路仍然收敛到默认画像
	bad, closeFn := failingProvider(t, "primary", nil)
	defer closeFn()

	r := newTestRouter(t, []provider{bad})
	result := r.Detect(context.Background(), "203.0.113.7")

	assert.Equal(t, domain.DefaultGeoResult(), result)

	// 失败结果同样被缓存，避免反复打穿
	data, ok := r.cache.Get(context.Background(), cacheKey("203.0.113.7"))
	assert.True(t, ok)
	assert.NotEmpty(t, data)
}

func TestDetectRetriesRetryableFailures(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt64(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"country_code":"JP"}`))
	}))
	defer srv.Close()

	p := provider{
		name:   "flaky",
		urlFor: func(string) string { return srv.URL },
		parse:  parseIPAPICo,
		retry:  &resilience.RetryOptions{MaxRetries: 2, Delay: time.Millisecond, BackoffMultiplier: 1},
	}
	r := newTestRouter(t, []provider{p})
	result := r.Detect(context.Background(), "100.100.100.100")

	assert.Equal(t, int64(2), calls)
	assert.Equal(t, geo.RegionOther, result.Region)
}

func TestClearCache(t *testing.T) {
	var calls int64
	p, closeFn := jsonProvider(t, "primary", `{"country_code":"US"}`, &calls)
	defer closeFn()

	r := newTestRouter(t, []provider{p})
	r.Detect(context.Background(), "1.1.1.1")
	r.ClearCache(context.Background())
	r.Detect(context.Background(), "1.1.1.1")

	assert.Equal(t, int64(2), calls)
}

func TestProviderPayloadParsing(t *testing.T) {
	code, err := parseIPAPICo([]byte(`{"country_code":"CN"}`))
	require.NoError(t, err)
	assert.Equal(t, "CN", code)

	_, err = parseIPAPICo([]byte(`{"error":true,"reason":"rate limited"}`))
	assert.Error(t, err)

	code, err = parseIPAPICom([]byte(`{"status":"success","countryCode":"FR"}`))
	require.NoError(t, err)
	assert.Equal(t, "FR", code)

	_, err = parseIPAPICom([]byte(`{"status":"fail","message":"reserved range"}`))
	assert.Error(t, err)

	code, err = parseIPInfo([]byte(`{"country":"BR"}`))
	require.NoError(t, err)
	assert.Equal(t, "BR", code)

	_, err = parseIPInfo([]byte(`{}`))
	assert.Error(t, err)
}
