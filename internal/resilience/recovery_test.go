package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecoveryThreshold(t *testing.T) {
	r := NewRecovery()
	err := New(NetworkError, "NETWORK_FAILED", "down", true)

	for i := 0; i < 4; i++ {
		r.RecordError("geo-detection", err)
	}
	assert.False(t, r.IsServiceDegraded("geo-detection"))

	r.RecordError("geo-detection", err)
	assert.True(t, r.IsServiceDegraded("geo-detection"))

	health := r.GetServiceHealth("geo-detection")
	assert.False(t, health.Healthy)
	assert.Equal(t, 5, health.ErrorCount)

	// 其他服务不受影响
	assert.True(t, r.GetServiceHealth("payments").Healthy)
}

func TestRecoverySumsDistinctMessages(t *testing.T) {
	r := NewRecovery()

	r.RecordError("geo-detection", New(NetworkError, "NETWORK_FAILED", "primary down", true))
	r.RecordError("geo-detection", New(APIError, "API_FAILED", "secondary down", false))
	r.RecordError("geo-detection", New(TimeoutError, "TIMEOUT", "tertiary timeout", true))

	assert.Equal(t, 3, r.GetServiceHealth("geo-detection").ErrorCount)
}

func TestRecoveryResetsAfterIdle(t *testing.T) {
	r := NewRecovery()
	current := time.Now()
	r.now = func() time.Time { return current }

	err := New(NetworkError, "NETWORK_FAILED", "down", true)
	for i := 0; i < 4; i++ {
		r.RecordError("geo-detection", err)
	}
	assert.Equal(t, 4, r.GetServiceHealth("geo-detection").ErrorCount)

	// 超过重置窗口后同键错误计数重新从 1 开始
	current = current.Add(resetTime + time.Second)
	r.RecordError("geo-detection", err)
	assert.Equal(t, 1, r.GetServiceHealth("geo-detection").ErrorCount)
}
