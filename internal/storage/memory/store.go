package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"morntool/backend/internal/domain"
)

// Store 进程内存储，开发环境没有 CloudBase/Supabase 凭据时兜底用。
// 进程退出数据即丢失。
type Store struct {
	mu       sync.RWMutex
	region   domain.DeploymentRegion
	packages map[string]*domain.DownloadPackageRecord
	events   []domain.DownloadEventRecord
	txs      map[string]*domain.PaymentTransaction
	txOrder  []string
	users    map[string]*domain.WebUser
	objects  map[string][]byte
	now      func() time.Time
}

// NewStore 创建内存存储
func NewStore(region domain.DeploymentRegion) *Store {
	return &Store{
		region:   region,
		packages: make(map[string]*domain.DownloadPackageRecord),
		txs:      make(map[string]*domain.PaymentTransaction),
		users:    make(map[string]*domain.WebUser),
		objects:  make(map[string][]byte),
		now:      time.Now,
	}
}

// UpsertPackage 按 (region, platform) 覆盖写入，保留下载计数
func (s *Store) UpsertPackage(ctx context.Context, input domain.CreateDownloadPackageInput) (*domain.DownloadPackageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, existing := range s.packages {
		if existing.Region == input.Region && existing.Platform == input.Platform {
			updated := *existing
			updated.Version = input.Version
			updated.Title = input.Title
			updated.FileName = input.FileName
			updated.FileSize = input.FileSize
			updated.MimeType = input.MimeType
			updated.ReleaseNotes = input.ReleaseNotes
			updated.IsActive = input.IsActive
			updated.StoragePath = input.StoragePath
			updated.UpdatedAt = now
			s.packages[existing.ID] = &updated
			record := updated
			return &record, nil
		}
	}

	record := &domain.DownloadPackageRecord{
		ID:              uuid.NewString(),
		Region:          input.Region,
		Platform:        input.Platform,
		Version:         input.Version,
		Title:           input.Title,
		FileName:        input.FileName,
		FileSize:        input.FileSize,
		MimeType:        input.MimeType,
		ReleaseNotes:    input.ReleaseNotes,
		IsActive:        input.IsActive,
		StoragePath:     input.StoragePath,
		StorageProvider: s.Backend(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.packages[record.ID] = record
	out := *record
	return &out, nil
}

// GetPackage 按 ID 查询
func (s *Store) GetPackage(ctx context.Context, id string) (*domain.DownloadPackageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.packages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *record
	return &out, nil
}

// GetActivePackage 返回该平台最新的活跃记录
func (s *Store) GetActivePackage(ctx context.Context, platform string) (*domain.DownloadPackageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.DownloadPackageRecord
	for _, record := range s.packages {
		if !record.IsActive || record.Platform != platform {
			continue
		}
		if latest == nil || record.UpdatedAt.After(latest.UpdatedAt) {
			latest = record
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	out := *latest
	return &out, nil
}

// ListPackages 全部安装包，按更新时间倒序
func (s *Store) ListPackages(ctx context.Context) ([]domain.DownloadPackageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.DownloadPackageRecord, 0, len(s.packages))
	for _, record := range s.packages {
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records, nil
}

// DeletePackage 删除安装包记录
func (s *Store) DeletePackage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.packages[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.packages, id)
	return nil
}

// RecordDownloadEvent 写入事件并把对应包的下载计数 +1
func (s *Store) RecordDownloadEvent(ctx context.Context, input domain.DownloadEventInput) (*domain.DownloadEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.packages[input.PackageID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	record.DownloadCount++

	event := domain.DownloadEventRecord{
		ID:        uuid.NewString(),
		Region:    input.Region,
		PackageID: input.PackageID,
		UserEmail: input.UserEmail,
		IP:        input.IP,
		CreatedAt: s.now(),
	}
	s.events = append(s.events, event)
	out := event
	return &out, nil
}

// CountDownloadEvents 下载事件总数
func (s *Store) CountDownloadEvents(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.events)), nil
}

// CreateTransaction 创建交易
func (s *Store) CreateTransaction(ctx context.Context, tx *domain.PaymentTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txs[tx.TransactionID]; ok {
		return domain.ErrAlreadyExists
	}
	stored := *tx
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	s.txs[tx.TransactionID] = &stored
	s.txOrder = append(s.txOrder, tx.TransactionID)
	return nil
}

// GetTransaction 按交易号查询
func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*domain.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[transactionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *tx
	return &out, nil
}

// UpdateTransactionStatus 更新交易状态
func (s *Store) UpdateTransactionStatus(ctx context.Context, transactionID string, status domain.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[transactionID]
	if !ok {
		return domain.ErrNotFound
	}
	tx.Status = status
	return nil
}

// ListRecentOrders 最近订单，倒序
func (s *Store) ListRecentOrders(ctx context.Context, limit int) ([]domain.OrderSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// 计价货币跟随区域，与真实后端的口径一致
	amount := func(tx *domain.PaymentTransaction) (float64, string) {
		if s.region == domain.DeploymentCN {
			return tx.AmountCNY, "CNY"
		}
		return tx.AmountUSD, "USD"
	}

	orders := make([]domain.OrderSummary, 0, limit)
	for i := len(s.txOrder) - 1; i >= 0 && len(orders) < limit; i-- {
		tx := s.txs[s.txOrder[i]]
		value, currency := amount(tx)
		orders = append(orders, domain.OrderSummary{
			ID:        tx.TransactionID,
			Region:    s.region,
			Method:    tx.PaymentMethod,
			Status:    string(tx.Status),
			Amount:    value,
			Currency:  currency,
			UserEmail: tx.UserEmail,
			CreatedAt: tx.CreatedAt,
		})
	}
	return orders, nil
}

// CreateUser 创建用户，邮箱唯一
func (s *Store) CreateUser(ctx context.Context, input domain.CreateWebUserInput) (*domain.WebUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[input.Email]; ok {
		return nil, domain.ErrAlreadyExists
	}
	now := s.now()
	user := &domain.WebUser{
		ID:             uuid.NewString(),
		Email:          input.Email,
		PasswordHash:   input.PasswordHash,
		Nickname:       input.Nickname,
		Credits:        input.Credits,
		MembershipTier: input.TierOrFree(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.users[input.Email] = user
	out := *user
	return &out, nil
}

// GetUserByEmail 按邮箱查询用户
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.WebUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *user
	return &out, nil
}

// ListUsers 用户列表，注册时间倒序
func (s *Store) ListUsers(ctx context.Context, limit int) ([]domain.AdminUserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]domain.AdminUserSummary, 0, len(s.users))
	for _, user := range s.users {
		summaries = append(summaries, domain.AdminUserSummary{
			ID:             user.ID,
			Email:          user.Email,
			Nickname:       user.Nickname,
			Credits:        user.Credits,
			MembershipTier: user.MembershipTier,
			MemberUntil:    user.MemberUntil,
			Region:         string(s.region),
			CreatedAt:      user.CreatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// CountUsers 用户总数
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

// BusinessMetrics 经营指标的全量扫描聚合
func (s *Store) BusinessMetrics(ctx context.Context) (*domain.BusinessMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metrics := &domain.BusinessMetrics{TotalUsers: int64(len(s.users))}

	today := s.now().UTC().Truncate(24 * time.Hour)
	for _, user := range s.users {
		if user.IsActiveMember(s.now()) {
			metrics.ActiveMembers++
		}
		if !user.CreatedAt.UTC().Before(today) {
			metrics.TodayNewUsers++
		}
	}

	paidEmails := make(map[string]struct{})
	for _, tx := range s.txs {
		if tx.Status != domain.PaymentCompleted {
			continue
		}
		metrics.CompletedOrders++
		metrics.Revenue += tx.AmountUSD
		if tx.UserEmail != "" {
			paidEmails[tx.UserEmail] = struct{}{}
		}
	}
	metrics.PaidUsers = int64(len(paidEmails))
	return metrics, nil
}

// UploadObject 文件内容进内存 map
func (s *Store) UploadObject(ctx context.Context, path string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[path] = data
	s.mu.Unlock()
	return nil
}

// SignedDownloadURL 内存存储没有真实直链，返回标记 URL
func (s *Store) SignedDownloadURL(ctx context.Context, path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.objects[path]; !ok {
		return "", domain.ErrNotFound
	}
	return fmt.Sprintf("memory://%s?expires=%d", path, s.now().Add(time.Minute).Unix()), nil
}

// DeleteObject 删除文件
func (s *Store) DeleteObject(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, path)
	return nil
}

// ObjectContent 读取文件内容，测试和本地调试用
func (s *Store) ObjectContent(path string) (io.Reader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[path]
	if !ok {
		return nil, false
	}
	return bytes.NewReader(data), true
}

// Region 所属部署区域
func (s *Store) Region() domain.DeploymentRegion {
	return s.region
}

// Backend 后端类型按区域对齐真实实现
func (s *Store) Backend() domain.DatabaseBackend {
	if s.region == domain.DeploymentCN {
		return domain.BackendCloudBase
	}
	return domain.BackendSupabase
}

// Health 内存存储恒为健康
func (s *Store) Health(ctx context.Context) error {
	return nil
}

// Close 无资源可释放
func (s *Store) Close() error {
	return nil
}

var _ domain.RegionalStore = (*Store)(nil)
