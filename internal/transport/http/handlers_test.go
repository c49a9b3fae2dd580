package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"morntool/backend/internal/domain"
	"morntool/backend/internal/payment"
	"morntool/backend/internal/resilience"
	"morntool/backend/internal/service"
)

type fakePayments struct {
	resp *payment.CreateResponse
	err  error
}

func (f *fakePayments) CreatePayment(ctx context.Context, input payment.CreateInput) (*payment.CreateResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeGeo struct {
	result domain.GeoResult
}

func (f *fakeGeo) Detect(ctx context.Context, ip string) domain.GeoResult {
	return f.result
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPaymentCreateSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewPaymentHandler(&fakePayments{resp: &payment.CreateResponse{
		Success:       true,
		PaymentMethod: "stripe",
		SessionID:     "cs_test_123",
		PaymentURL:    "https://checkout.stripe.com/pay/cs_test_123",
	}}, nil, zap.NewNop())
	router.POST("/api/payment/create", handler.Create)

	rec := postJSON(router, "/api/payment/create",
		`{"planId":"pro","billingCycle":"monthly","paymentMethod":"stripe"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, CodeSuccess, resp.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, true, data["success"])
	assert.Equal(t, "cs_test_123", data["sessionId"])
}

func TestPaymentCreateErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "参数类错误返回 400",
			err:        resilience.New(resilience.ValidationError, "UNKNOWN_PLAN", "未知套餐: gold", false),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "渠道未配置返回 503",
			err:        resilience.New(resilience.ConfigError, "PROVIDER_UNAVAILABLE", "支付渠道未配置", false),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "渠道调用失败返回 500",
			err:        resilience.New(resilience.APIError, "STRIPE_ERROR", "渠道下单失败", true),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			handler := NewPaymentHandler(&fakePayments{err: tc.err}, nil, zap.NewNop())
			router.POST("/api/payment/create", handler.Create)

			rec := postJSON(router, "/api/payment/create",
				`{"planId":"pro","paymentMethod":"stripe"}`)

			assert.Equal(t, tc.wantStatus, rec.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Msg)
		})
	}
}

func TestPaymentCreateRejectsBadBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewPaymentHandler(&fakePayments{}, nil, zap.NewNop())
	router.POST("/api/payment/create", handler.Create)

	rec := postJSON(router, "/api/payment/create", `{"planId":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGeoDetect(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewGeoHandler(&fakeGeo{result: domain.GeoResult{
		Region:      "china",
		CountryCode: "CN",
		Currency:    "CNY",
		Database:    domain.BackendCloudBase,
		Deployment:  domain.PlatformTencent,
	}}, nil)
	router.GET("/api/geo", handler.Detect)

	req := httptest.NewRequest(http.MethodGet, "/api/geo", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "CN", data["countryCode"])
	assert.Equal(t, "CNY", data["currency"])
}

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "邮箱或密码错误", GetErrorMessage(service.ErrInvalidCredentials))
	assert.Equal(t, "账号已临时锁定，请稍后再试", GetErrorMessage(service.ErrAccountLocked))
	assert.Equal(t, "资源不存在", GetErrorMessage(domain.ErrNotFound))
	assert.Equal(t, MsgInternalError, GetErrorMessage(assert.AnError))
}

func TestWriteErrorAuthMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err        error
		wantStatus int
	}{
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrAccountLocked, http.StatusForbidden},
		{service.ErrEmailTaken, http.StatusConflict},
		{service.ErrWeakPassword, http.StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		writeError(c, tc.err)
		assert.Equal(t, tc.wantStatus, rec.Code, tc.err.Error())
	}
}
