package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCSRF() *CSRF {
	return NewCSRF(false, zap.NewNop())
}

func TestCSRFTokenRoundTrip(t *testing.T) {
	c := newTestCSRF()
	secret := c.GenerateSecret()
	require.Len(t, secret, 64)

	token := c.GenerateToken(secret)
	assert.Len(t, strings.Split(token, "."), 3)
	assert.True(t, c.ValidateToken(secret, token))
}

func TestCSRFTokenRejectsWrongSecret(t *testing.T) {
	c := newTestCSRF()
	token := c.GenerateToken(c.GenerateSecret())
	assert.False(t, c.ValidateToken(c.GenerateSecret(), token))
}

func TestCSRFTokenExpires(t *testing.T) {
	c := newTestCSRF()
	current := time.Now()
	c.now = func() time.Time { return current }

	secret := c.GenerateSecret()
	token := c.GenerateToken(secret)

	current = current.Add(4 * time.Minute)
	assert.True(t, c.ValidateToken(secret, token))

	current = current.Add(2 * time.Minute)
	assert.False(t, c.ValidateToken(secret, token))
}

func TestCSRFTokenRejectsMalformed(t *testing.T) {
	c := newTestCSRF()
	secret := c.GenerateSecret()

	assert.False(t, c.ValidateToken(secret, ""))
	assert.False(t, c.ValidateToken(secret, "abc"))
	assert.False(t, c.ValidateToken(secret, "1.2"))
	assert.False(t, c.ValidateToken(secret, "notanumber.random.sig"))
}

func TestCSRFTokenRejectsTampering(t *testing.T) {
	c := newTestCSRF()
	secret := c.GenerateSecret()
	token := c.GenerateToken(secret)

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + "deadbeefdeadbeef" + "." + parts[2]
	assert.False(t, c.ValidateToken(secret, tampered))
}

func TestSignMessageNeverNegative(t *testing.T) {
	// 折叠散列为负时取绝对值，签名里不允许出现负号
	for _, msg := range []string{"", "a", "1717243200000.deadbeef", strings.Repeat("￿", 64)} {
		sig := signMessage("secret", msg)
		assert.NotEmpty(t, sig)
		assert.False(t, strings.HasPrefix(sig, "-"), msg)
	}
}

func setupCSRFRouter(c *CSRF) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(c.Middleware())
	r.GET("/api/csrf-token", c.TokenHandler)
	r.POST("/submit", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })
	r.POST("/api/payment/create", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })
	r.GET("/page", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })
	return r
}

func TestCSRFMiddlewareBlocksMissingToken(t *testing.T) {
	r := setupCSRFRouter(newTestCSRF())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "CSRF_INVALID")
}

func TestCSRFMiddlewareAllowsValidToken(t *testing.T) {
	c := newTestCSRF()
	r := setupCSRFRouter(c)

	// 先取令牌，拿到密钥 cookie
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"csrfToken"`)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	var secret string
	for _, ck := range cookies {
		if ck.Name == csrfSecretCookie {
			secret = ck.Value
		}
	}
	require.NotEmpty(t, secret)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/submit", nil)
	req.Header.Set(csrfHeaderName, c.GenerateToken(secret))
	req.AddCookie(&http.Cookie{Name: csrfSecretCookie, Value: secret})
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCSRFMiddlewareAcceptsQueryToken(t *testing.T) {
	c := newTestCSRF()
	r := setupCSRFRouter(c)

	secret := c.GenerateSecret()
	token := c.GenerateToken(secret)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/submit?csrf-token="+token, nil)
	req.AddCookie(&http.Cookie{Name: csrfSecretCookie, Value: secret})
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCSRFMiddlewareSkipsReadsAndAPI(t *testing.T) {
	r := setupCSRFRouter(newTestCSRF())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/page", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/payment/create", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
