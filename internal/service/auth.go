package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"morntool/backend/internal/config"
	"morntool/backend/internal/domain"
	"morntool/backend/internal/security"
)

var (
	// ErrInvalidCredentials 账号或密码错误
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked 账号处于锁定期
	ErrAccountLocked = errors.New("account locked")
	// ErrEmailTaken 邮箱已被注册
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidToken 无效的令牌
	ErrInvalidToken = errors.New("invalid token")
	// ErrWeakPassword 密码强度不足
	ErrWeakPassword = errors.New("password too weak")
)

// Claims JWT 自定义声明
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Tier   string `json:"tier"`
	jwt.RegisteredClaims
}

// TokenPair 访问令牌和刷新令牌对
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"` // 秒
}

// AuthResponse 登录/注册响应
type AuthResponse struct {
	User   *domain.WebUser `json:"user"`
	Tokens TokenPair       `json:"tokens"`
}

// AuthService CN 区站内账号的注册与登录。
// 登录失败按邮箱计入锁定器，锁定期内直接拒绝，不做密码比对。
type AuthService struct {
	users   domain.UserStore
	lockout *security.Lockout
	cfg     config.JWTConfig
	log     *zap.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(users domain.UserStore, lockout *security.Lockout, cfg config.JWTConfig, log *zap.Logger) *AuthService {
	return &AuthService{users: users, lockout: lockout, cfg: cfg, log: log}
}

// SignupInput 注册入参
type SignupInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Nickname string `json:"nickname"`
}

// Signup 注册新账号并直接登录
func (s *AuthService) Signup(ctx context.Context, input SignupInput) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if len(input.Password) < 8 {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, domain.CreateWebUserInput{
		Email:        email,
		PasswordHash: string(hash),
		Nickname:     input.Nickname,
		Credits:      domain.FreeUserInitialCredits,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.log.Info("新用户注册", zap.String("email", security.MaskIdentifier(email)))
	return s.respond(user)
}

// LoginInput 登录入参
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login 密码登录
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if locked, remaining := s.lockout.IsLocked(email); locked {
		s.log.Warn("锁定期内的登录请求",
			zap.String("email", security.MaskIdentifier(email)),
			zap.Duration("remaining", remaining))
		return nil, ErrAccountLocked
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// 账号不存在也计一次失败，避免探测
			s.lockout.RecordFailure(email)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		status := s.lockout.RecordFailure(email)
		if status.Locked {
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	s.lockout.RecordSuccess(email)
	return s.respond(user)
}

// Refresh 用刷新令牌换新令牌对
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.ValidateToken(refreshToken)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByEmail(ctx, claims.Email)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return s.respond(user)
}

func (s *AuthService) respond(user *domain.WebUser) (*AuthResponse, error) {
	tokens, err := s.generateTokens(user)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: user, Tokens: *tokens}, nil
}

func (s *AuthService) generateTokens(user *domain.WebUser) (*TokenPair, error) {
	access, err := s.signToken(user, s.cfg.AccessExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, err := s.signToken(user, s.cfg.RefreshExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.cfg.AccessExpiry.Seconds()),
	}, nil
}

func (s *AuthService) signToken(user *domain.WebUser, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Tier:   user.MembershipTier,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.Secret))
}

// ValidateToken 验证令牌并返回声明
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
