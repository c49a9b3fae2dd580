package domain

import "time"

// WebUser CN 区站内账号，密码为 bcrypt 哈希
type WebUser struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Nickname       string     `json:"nickname"`
	Credits        int64      `json:"credits"`
	MembershipTier string     `json:"membershipTier"`
	MemberUntil    *time.Time `json:"memberUntil,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// IsActiveMember 会员是否在有效期内
func (u *WebUser) IsActiveMember(now time.Time) bool {
	return u.MemberUntil != nil && u.MemberUntil.After(now)
}

// CreateWebUserInput 注册入参
type CreateWebUserInput struct {
	Email        string
	PasswordHash string
	Nickname     string
	Credits      int64
	// MembershipTier 留空时按 free 处理
	MembershipTier string
}

// TierOrFree 创建用户时的默认会员等级
func (i CreateWebUserInput) TierOrFree() string {
	if i.MembershipTier == "" {
		return "free"
	}
	return i.MembershipTier
}

// AdminUserSummary 管理后台用户列表里的一行
type AdminUserSummary struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Nickname       string     `json:"nickname"`
	Credits        int64      `json:"credits"`
	MembershipTier string     `json:"membershipTier"`
	MemberUntil    *time.Time `json:"memberUntil,omitempty"`
	Region         string     `json:"region"`
	CreatedAt      time.Time  `json:"createdAt"`
}
