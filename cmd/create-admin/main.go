package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"morntool/backend/internal/config"
	"morntool/backend/internal/domain"
	"morntool/backend/internal/storage"
)

// 创建管理后台账号。管理接口按会员等级放行，普通注册拿不到 admin 等级。
func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: create-admin <email> <password> [nickname]")
		os.Exit(1)
	}

	email := strings.ToLower(strings.TrimSpace(os.Args[1]))
	password := os.Args[2]
	nickname := "admin"
	if len(os.Args) >= 4 {
		nickname = os.Args[3]
	}

	if len(password) < 8 {
		fmt.Println("Password must be at least 8 characters")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stores, err := storage.Open(ctx, cfg, zap.NewNop())
	if err != nil {
		fmt.Printf("Failed to open regional stores: %v\n", err)
		os.Exit(1)
	}
	defer stores.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Printf("Failed to hash password: %v\n", err)
		os.Exit(1)
	}

	user, err := stores.Primary().CreateUser(ctx, domain.CreateWebUserInput{
		Email:          email,
		PasswordHash:   string(hash),
		Nickname:       nickname,
		MembershipTier: "admin",
		Credits:        domain.FreeUserInitialCredits,
	})
	if err != nil {
		fmt.Printf("Failed to create admin user: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Admin user created: %s (%s) in region %s\n",
		user.Email, user.ID, stores.Primary().Region())
}
