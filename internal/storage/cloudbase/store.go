package cloudbase

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"morntool/backend/internal/domain"
)

const (
	collectionUsers        = "user"
	collectionTransactions = "payment_transactions"
	collectionPackages     = "download_packages"
	collectionEvents       = "download_events"
)

var allCollections = []string{
	collectionUsers,
	collectionTransactions,
	collectionPackages,
	collectionEvents,
}

// Store 国内区存储实现，数据与文件都在 CloudBase 环境里。
// 文档数据库没有服务端聚合，统计类查询在客户端汇总。
type Store struct {
	client DocClient
	log    *zap.Logger

	now func() time.Time
}

// NewStore 创建国内区存储并确保集合存在
func NewStore(ctx context.Context, client DocClient, log *zap.Logger) (*Store, error) {
	s := &Store{client: client, log: log, now: time.Now}
	if err := s.ensureCollections(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// ensureCollections 逐个探测集合，不存在就创建
func (s *Store) ensureCollections(ctx context.Context) error {
	for _, name := range allCollections {
		_, err := s.client.Count(ctx, name, nil)
		if err == nil {
			continue
		}
		if !IsCollectionMissing(err) {
			return err
		}
		if err := s.client.CreateCollection(ctx, name); err != nil {
			return err
		}
		s.log.Info("已创建 CloudBase 集合", zap.String("collection", name))
	}
	return nil
}

// Region 所属部署区域
func (s *Store) Region() domain.DeploymentRegion { return domain.DeploymentCN }

// Backend 物理后端类型
func (s *Store) Backend() domain.DatabaseBackend { return domain.BackendCloudBase }

// ========== Package Repository ==========

func packageFromDoc(doc Document) *domain.DownloadPackageRecord {
	return &domain.DownloadPackageRecord{
		ID:              doc.ID(),
		Region:          domain.DeploymentRegion(doc.String("region")),
		Platform:        doc.String("platform"),
		Version:         doc.String("version"),
		Title:           doc.String("title"),
		FileName:        doc.String("file_name"),
		FileSize:        doc.Int64("file_size"),
		MimeType:        doc.String("mime_type"),
		ReleaseNotes:    doc.String("release_notes"),
		IsActive:        doc.Bool("is_active"),
		DownloadCount:   doc.Int64("download_count"),
		StorageProvider: domain.DatabaseBackend(doc.String("storage_provider")),
		StoragePath:     doc.String("storage_path"),
		CreatedAt:       doc.Time("created_at"),
		UpdatedAt:       doc.Time("updated_at"),
	}
}

// UpsertPackage 按 (region, platform) 去重写入。
// 文档库的更新结果不回传字段，写完后重新读一次保证返回的是落库内容。
func (s *Store) UpsertPackage(ctx context.Context, input domain.CreateDownloadPackageInput) (*domain.DownloadPackageRecord, error) {
	existing, err := s.client.Query(ctx, collectionPackages, QueryOptions{
		Filter: map[string]interface{}{
			"region":   string(input.Region),
			"platform": input.Platform,
		},
		OrderBy: "updated_at",
		Desc:    true,
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}

	nowStr := s.now().UTC().Format(time.RFC3339)
	fields := Document{
		"region":           string(input.Region),
		"platform":         input.Platform,
		"version":          input.Version,
		"title":            input.Title,
		"file_name":        input.FileName,
		"file_size":        input.FileSize,
		"mime_type":        input.MimeType,
		"release_notes":    input.ReleaseNotes,
		"is_active":        input.IsActive,
		"storage_provider": string(domain.BackendCloudBase),
		"storage_path":     input.StoragePath,
		"updated_at":       nowStr,
	}

	var id string
	if len(existing) > 0 {
		id = existing[0].ID()
		if err := s.client.Update(ctx, collectionPackages, id, fields); err != nil {
			return nil, err
		}
	} else {
		fields["download_count"] = int64(0)
		fields["created_at"] = nowStr
		id, err = s.client.Add(ctx, collectionPackages, fields)
		if err != nil {
			return nil, err
		}
	}
	return s.GetPackage(ctx, id)
}

// GetPackage 按 ID 查询
func (s *Store) GetPackage(ctx context.Context, id string) (*domain.DownloadPackageRecord, error) {
	docs, err := s.client.Query(ctx, collectionPackages, QueryOptions{
		Filter: map[string]interface{}{"_id": id},
		Limit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrNotFound
	}
	return packageFromDoc(docs[0]), nil
}

// GetActivePackage 返回该平台最新的活跃记录
func (s *Store) GetActivePackage(ctx context.Context, platform string) (*domain.DownloadPackageRecord, error) {
	docs, err := s.client.Query(ctx, collectionPackages, QueryOptions{
		Filter: map[string]interface{}{
			"platform":  platform,
			"is_active": true,
		},
		OrderBy: "updated_at",
		Desc:    true,
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrNotFound
	}
	return packageFromDoc(docs[0]), nil
}

// ListPackages 列出全部安装包，新的在前
func (s *Store) ListPackages(ctx context.Context) ([]domain.DownloadPackageRecord, error) {
	docs, err := s.client.Query(ctx, collectionPackages, QueryOptions{
		OrderBy: "updated_at",
		Desc:    true,
	})
	if err != nil {
		return nil, err
	}
	records := make([]domain.DownloadPackageRecord, 0, len(docs))
	for _, doc := range docs {
		records = append(records, *packageFromDoc(doc))
	}
	return records, nil
}

// DeletePackage 删除安装包记录
func (s *Store) DeletePackage(ctx context.Context, id string) error {
	if _, err := s.GetPackage(ctx, id); err != nil {
		return err
	}
	return s.client.Remove(ctx, collectionPackages, id)
}

// RecordDownloadEvent 写入事件并把对应包的下载计数 +1
func (s *Store) RecordDownloadEvent(ctx context.Context, input domain.DownloadEventInput) (*domain.DownloadEventRecord, error) {
	nowStr := s.now().UTC().Format(time.RFC3339)
	eventID, err := s.client.Add(ctx, collectionEvents, Document{
		"region":     string(input.Region),
		"package_id": input.PackageID,
		"user_id":    input.UserID,
		"user_email": input.UserEmail,
		"ip":         input.IP,
		"user_agent": input.UserAgent,
		"created_at": nowStr,
	})
	if err != nil {
		return nil, err
	}

	// 文档库没有原子自增，读出来加一再写回
	pkg, err := s.GetPackage(ctx, input.PackageID)
	if err != nil {
		return nil, err
	}
	err = s.client.Update(ctx, collectionPackages, input.PackageID, Document{
		"download_count": pkg.DownloadCount + 1,
		"updated_at":     nowStr,
	})
	if err != nil {
		return nil, err
	}

	created := s.now().UTC()
	return &domain.DownloadEventRecord{
		ID:        eventID,
		Region:    input.Region,
		PackageID: input.PackageID,
		UserEmail: input.UserEmail,
		IP:        input.IP,
		CreatedAt: created,
	}, nil
}

// CountDownloadEvents 下载事件总数
func (s *Store) CountDownloadEvents(ctx context.Context) (int64, error) {
	return s.client.Count(ctx, collectionEvents, nil)
}

// ========== Payment Repository ==========

func transactionFromDoc(doc Document) *domain.PaymentTransaction {
	return &domain.PaymentTransaction{
		ID:            doc.ID(),
		UserID:        doc.String("user_id"),
		UserEmail:     doc.String("user_email"),
		PlanID:        doc.String("plan_id"),
		BillingCycle:  domain.BillingCycle(doc.String("billing_cycle")),
		CreditAmount:  doc.Int64("credit_amount"),
		AmountUSD:     doc.Float64("amount_usd"),
		AmountCNY:     doc.Float64("amount_cny"),
		PaymentMethod: doc.String("payment_method"),
		TransactionID: doc.String("transaction_id"),
		Status:        domain.PaymentStatus(doc.String("status")),
		Region:        domain.DeploymentCN,
		CreatedAt:     doc.Time("created_at"),
		UpdatedAt:     doc.Time("updated_at"),
	}
}

// CreateTransaction 写入一条支付交易
func (s *Store) CreateTransaction(ctx context.Context, tx *domain.PaymentTransaction) error {
	nowStr := s.now().UTC().Format(time.RFC3339)
	id, err := s.client.Add(ctx, collectionTransactions, Document{
		"user_id":        tx.UserID,
		"user_email":     tx.UserEmail,
		"plan_id":        tx.PlanID,
		"billing_cycle":  string(tx.BillingCycle),
		"credit_amount":  tx.CreditAmount,
		"amount_usd":     tx.AmountUSD,
		"amount_cny":     tx.AmountCNY,
		"payment_method": tx.PaymentMethod,
		"transaction_id": tx.TransactionID,
		"status":         string(tx.Status),
		"created_at":     nowStr,
		"updated_at":     nowStr,
	})
	if err != nil {
		return err
	}
	tx.ID = id
	return nil
}

// GetTransaction 按渠道交易号查询
func (s *Store) GetTransaction(ctx context.Context, transactionID string) (*domain.PaymentTransaction, error) {
	docs, err := s.client.Query(ctx, collectionTransactions, QueryOptions{
		Filter: map[string]interface{}{"transaction_id": transactionID},
		Limit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrNotFound
	}
	return transactionFromDoc(docs[0]), nil
}

// UpdateTransactionStatus 更新交易状态
func (s *Store) UpdateTransactionStatus(ctx context.Context, transactionID string, status domain.PaymentStatus) error {
	tx, err := s.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	return s.client.Update(ctx, collectionTransactions, tx.ID, Document{
		"status":     string(status),
		"updated_at": s.now().UTC().Format(time.RFC3339),
	})
}

// ListRecentOrders 管理后台最近订单
func (s *Store) ListRecentOrders(ctx context.Context, limit int) ([]domain.OrderSummary, error) {
	docs, err := s.client.Query(ctx, collectionTransactions, QueryOptions{
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	orders := make([]domain.OrderSummary, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, domain.OrderSummary{
			ID:        doc.ID(),
			Region:    domain.DeploymentCN,
			Method:    doc.String("payment_method"),
			Status:    doc.String("status"),
			Amount:    doc.Float64("amount_cny"),
			Currency:  "CNY",
			UserEmail: doc.String("user_email"),
			CreatedAt: doc.Time("created_at"),
		})
	}
	return orders, nil
}

// ========== User Repository ==========

func userFromDoc(doc Document) *domain.WebUser {
	user := &domain.WebUser{
		ID:             doc.ID(),
		Email:          doc.String("email"),
		PasswordHash:   doc.String("password_hash"),
		Nickname:       doc.String("nickname"),
		Credits:        doc.Int64("credits"),
		MembershipTier: doc.String("membership_tier"),
		CreatedAt:      doc.Time("created_at"),
		UpdatedAt:      doc.Time("updated_at"),
	}
	if until := doc.Time("member_until"); !until.IsZero() {
		user.MemberUntil = &until
	}
	return user
}

// CreateUser 创建用户
func (s *Store) CreateUser(ctx context.Context, input domain.CreateWebUserInput) (*domain.WebUser, error) {
	if _, err := s.GetUserByEmail(ctx, input.Email); err == nil {
		return nil, domain.ErrAlreadyExists
	} else if err != domain.ErrNotFound {
		return nil, err
	}

	nowStr := s.now().UTC().Format(time.RFC3339)
	id, err := s.client.Add(ctx, collectionUsers, Document{
		"email":           input.Email,
		"password_hash":   input.PasswordHash,
		"nickname":        input.Nickname,
		"credits":         input.Credits,
		"membership_tier": input.TierOrFree(),
		"created_at":      nowStr,
		"updated_at":      nowStr,
	})
	if err != nil {
		return nil, err
	}

	docs, err := s.client.Query(ctx, collectionUsers, QueryOptions{
		Filter: map[string]interface{}{"_id": id},
		Limit:  1,
	})
	if err != nil || len(docs) == 0 {
		// 写入已成功，回读失败时用输入拼出结果
		created, _ := time.Parse(time.RFC3339, nowStr)
		return &domain.WebUser{
			ID:             id,
			Email:          input.Email,
			PasswordHash:   input.PasswordHash,
			Nickname:       input.Nickname,
			Credits:        input.Credits,
			MembershipTier: input.TierOrFree(),
			CreatedAt:      created,
			UpdatedAt:      created,
		}, nil
	}
	return userFromDoc(docs[0]), nil
}

// GetUserByEmail 按邮箱查询用户
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.WebUser, error) {
	docs, err := s.client.Query(ctx, collectionUsers, QueryOptions{
		Filter: map[string]interface{}{"email": email},
		Limit:  1,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, domain.ErrNotFound
	}
	return userFromDoc(docs[0]), nil
}

// ListUsers 管理后台用户列表
func (s *Store) ListUsers(ctx context.Context, limit int) ([]domain.AdminUserSummary, error) {
	docs, err := s.client.Query(ctx, collectionUsers, QueryOptions{
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	users := make([]domain.AdminUserSummary, 0, len(docs))
	for _, doc := range docs {
		user := userFromDoc(doc)
		users = append(users, domain.AdminUserSummary{
			ID:             user.ID,
			Email:          user.Email,
			Nickname:       user.Nickname,
			Credits:        user.Credits,
			MembershipTier: user.MembershipTier,
			MemberUntil:    user.MemberUntil,
			Region:         string(domain.DeploymentCN),
			CreatedAt:      user.CreatedAt,
		})
	}
	return users, nil
}

// CountUsers 用户总数
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	return s.client.Count(ctx, collectionUsers, nil)
}

// ========== Metrics Repository ==========

// BusinessMetrics 管理后台经营指标。
// 付费用户去重和营收求和在客户端完成。
func (s *Store) BusinessMetrics(ctx context.Context) (*domain.BusinessMetrics, error) {
	metrics := &domain.BusinessMetrics{}

	var err error
	if metrics.TotalUsers, err = s.client.Count(ctx, collectionUsers, nil); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	nowStr := now.Format(time.RFC3339)
	if metrics.ActiveMembers, err = s.client.Count(ctx, collectionUsers, map[string]interface{}{
		"member_until": map[string]interface{}{"$gt": nowStr},
	}); err != nil {
		return nil, err
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	if metrics.TodayNewUsers, err = s.client.Count(ctx, collectionUsers, map[string]interface{}{
		"created_at": map[string]interface{}{"$gte": today},
	}); err != nil {
		return nil, err
	}

	completed, err := s.client.Query(ctx, collectionTransactions, QueryOptions{
		Filter: map[string]interface{}{"status": string(domain.PaymentCompleted)},
	})
	if err != nil {
		return nil, err
	}

	paidEmails := make(map[string]struct{})
	for _, doc := range completed {
		metrics.CompletedOrders++
		metrics.Revenue += doc.Float64("amount_usd")
		if email := doc.String("user_email"); email != "" {
			paidEmails[email] = struct{}{}
		}
	}
	metrics.PaidUsers = int64(len(paidEmails))

	return metrics, nil
}

// ========== Object Storage ==========

// UploadObject 上传安装包文件，storage_path 即 CloudBase fileID
func (s *Store) UploadObject(ctx context.Context, path string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.UploadFile(ctx, path, reader, size, contentType)
	return err
}

// SignedDownloadURL 获取临时下载地址
func (s *Store) SignedDownloadURL(ctx context.Context, path string) (string, error) {
	return s.client.TempFileURL(ctx, path)
}

// DeleteObject 删除安装包文件
func (s *Store) DeleteObject(ctx context.Context, path string) error {
	return s.client.DeleteFile(ctx, path)
}

// Health 探活，访问任意集合即可
func (s *Store) Health(ctx context.Context) error {
	_, err := s.client.Count(ctx, collectionUsers, nil)
	return err
}

// Close 无持久连接可关
func (s *Store) Close() error { return nil }
