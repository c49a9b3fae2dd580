package security

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LockoutPolicy 账号锁定策略
type LockoutPolicy struct {
	// MaxFailedAttempts 触发锁定的连续失败次数
	MaxFailedAttempts int
	// BaseLockDuration 首次锁定时长
	BaseLockDuration time.Duration
	// ResetAfter 距上次失败超过该间隔后失败计数清零
	ResetAfter time.Duration
	// Progressive 是否按锁定次数翻倍延长
	Progressive bool
}

// DefaultLockoutPolicy 默认策略：5 次失败锁 15 分钟，30 分钟无失败后清零
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxFailedAttempts: 5,
		BaseLockDuration:  15 * time.Minute,
		ResetAfter:        30 * time.Minute,
		Progressive:       true,
	}
}

// maxLockDuration 渐进锁定的时长上限
const maxLockDuration = 24 * time.Hour

// lockoutRecord 单个标识的失败状态
type lockoutRecord struct {
	attempts         int
	lastAttempt      time.Time
	lockedUntil      time.Time
	progressiveLevel int
}

// AttemptStatus 一次失败记录后的状态快照
type AttemptStatus struct {
	Locked            bool          `json:"locked"`
	RemainingAttempts int           `json:"remainingAttempts"`
	LockedFor         time.Duration `json:"-"`
	LockedUntil       time.Time     `json:"lockedUntil,omitempty"`
}

// Lockout 基于内存的账号锁定器，按标识（邮箱/IP）跟踪失败登录。
// 多实例部署时各实例独立计数。
type Lockout struct {
	mu      sync.Mutex
	records map[string]*lockoutRecord
	policy  LockoutPolicy
	log     *zap.Logger

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewLockout 创建锁定器并启动过期清理
func NewLockout(policy LockoutPolicy, log *zap.Logger) *Lockout {
	l := &Lockout{
		records: make(map[string]*lockoutRecord),
		policy:  policy,
		log:     log,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go l.sweepLoop(5 * time.Minute)
	return l
}

// Close 停止后台清理
func (l *Lockout) Close() {
	l.once.Do(func() { close(l.stop) })
}

// IsLocked 标识当前是否处于锁定期
func (l *Lockout) IsLocked(identifier string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[identifier]
	if !ok {
		return false, 0
	}
	now := l.now()
	if rec.lockedUntil.After(now) {
		return true, rec.lockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailure 记录一次失败尝试，达到阈值时锁定
func (l *Lockout) RecordFailure(identifier string) AttemptStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[identifier]
	if !ok {
		rec = &lockoutRecord{}
		l.records[identifier] = rec
	}

	// 失败计数跨越已过期的锁定继续累积，只有长时间无失败才清零
	if rec.attempts > 0 && now.Sub(rec.lastAttempt) > l.policy.ResetAfter {
		rec.attempts = 0
		rec.progressiveLevel = 0
		rec.lockedUntil = time.Time{}
	}

	rec.attempts++
	rec.lastAttempt = now

	if rec.attempts >= l.policy.MaxFailedAttempts {
		rec.progressiveLevel++
		duration := l.policy.BaseLockDuration
		if l.policy.Progressive && rec.progressiveLevel > 1 {
			// 移位上限防住计数持续累积后的溢出
			shift := rec.progressiveLevel - 1
			if shift > 16 {
				shift = 16
			}
			duration = l.policy.BaseLockDuration << shift
			if duration > maxLockDuration {
				duration = maxLockDuration
			}
		}
		rec.lockedUntil = now.Add(duration)

		l.log.Warn("账号已锁定",
			zap.String("identifier", MaskIdentifier(identifier)),
			zap.Int("attempts", rec.attempts),
			zap.Duration("duration", duration))

		return AttemptStatus{
			Locked:      true,
			LockedFor:   duration,
			LockedUntil: rec.lockedUntil,
		}
	}

	return AttemptStatus{
		Locked:            false,
		RemainingAttempts: l.policy.MaxFailedAttempts - rec.attempts,
	}
}

// RecordSuccess 登录成功，清除该标识的全部失败状态
func (l *Lockout) RecordSuccess(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, identifier)
}

// sweepLoop 周期清理早已过期且长时间无活动的记录
func (l *Lockout) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *Lockout) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	stale := 2 * l.policy.ResetAfter
	for id, rec := range l.records {
		if rec.lockedUntil.After(now) {
			continue
		}
		if now.Sub(rec.lastAttempt) > stale {
			delete(l.records, id)
		}
	}
}

// MaskIdentifier 打日志用的脱敏：邮箱保留前两位和域名，其它保留首尾
func MaskIdentifier(identifier string) string {
	if at := strings.IndexByte(identifier, '@'); at > 0 {
		local := identifier[:at]
		domain := identifier[at:]
		if len(local) <= 2 {
			return local + "***" + domain
		}
		return local[:2] + "***" + domain
	}
	if len(identifier) <= 4 {
		return "***"
	}
	return identifier[:2] + "***" + identifier[len(identifier)-2:]
}
