package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"morntool/backend/internal/domain"
)

// fakeRegionalStore 内存版区域后端，各方法可注入失败
type fakeRegionalStore struct {
	region domain.DeploymentRegion

	packages     map[string]*domain.DownloadPackageRecord
	events       []domain.DownloadEventRecord
	transactions []*domain.PaymentTransaction
	users        map[string]*domain.WebUser
	objects      map[string][]byte
	metrics      domain.BusinessMetrics

	failMetrics   bool
	failObjDelete bool
	nextID        int
}

func newFakeRegionalStore(region domain.DeploymentRegion) *fakeRegionalStore {
	return &fakeRegionalStore{
		region:   region,
		packages: make(map[string]*domain.DownloadPackageRecord),
		users:    make(map[string]*domain.WebUser),
		objects:  make(map[string][]byte),
	}
}

func (f *fakeRegionalStore) id() string {
	f.nextID++
	return fmt.Sprintf("%s-%d", f.region, f.nextID)
}

func (f *fakeRegionalStore) Region() domain.DeploymentRegion { return f.region }

func (f *fakeRegionalStore) Backend() domain.DatabaseBackend {
	if f.region == domain.DeploymentCN {
		return domain.BackendCloudBase
	}
	return domain.BackendSupabase
}

func (f *fakeRegionalStore) UpsertPackage(_ context.Context, input domain.CreateDownloadPackageInput) (*domain.DownloadPackageRecord, error) {
	for _, record := range f.packages {
		if record.Region == input.Region && record.Platform == input.Platform {
			record.Version = input.Version
			record.Title = input.Title
			record.FileName = input.FileName
			record.FileSize = input.FileSize
			record.MimeType = input.MimeType
			record.ReleaseNotes = input.ReleaseNotes
			record.IsActive = input.IsActive
			record.StoragePath = input.StoragePath
			record.UpdatedAt = time.Now()
			return record, nil
		}
	}
	record := &domain.DownloadPackageRecord{
		ID:          f.id(),
		Region:      input.Region,
		Platform:    input.Platform,
		Version:     input.Version,
		Title:       input.Title,
		FileName:    input.FileName,
		FileSize:    input.FileSize,
		MimeType:    input.MimeType,
		IsActive:    input.IsActive,
		StoragePath: input.StoragePath,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	f.packages[record.ID] = record
	return record, nil
}

func (f *fakeRegionalStore) GetPackage(_ context.Context, id string) (*domain.DownloadPackageRecord, error) {
	record, ok := f.packages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return record, nil
}

func (f *fakeRegionalStore) GetActivePackage(_ context.Context, platform string) (*domain.DownloadPackageRecord, error) {
	for _, record := range f.packages {
		if record.Platform == platform && record.IsActive {
			return record, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRegionalStore) ListPackages(context.Context) ([]domain.DownloadPackageRecord, error) {
	out := make([]domain.DownloadPackageRecord, 0, len(f.packages))
	for _, record := range f.packages {
		out = append(out, *record)
	}
	return out, nil
}

func (f *fakeRegionalStore) DeletePackage(_ context.Context, id string) error {
	if _, ok := f.packages[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.packages, id)
	return nil
}

func (f *fakeRegionalStore) RecordDownloadEvent(_ context.Context, input domain.DownloadEventInput) (*domain.DownloadEventRecord, error) {
	record, ok := f.packages[input.PackageID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	record.DownloadCount++
	event := domain.DownloadEventRecord{
		ID:        f.id(),
		Region:    input.Region,
		PackageID: input.PackageID,
		UserEmail: input.UserEmail,
		IP:        input.IP,
		CreatedAt: time.Now(),
	}
	f.events = append(f.events, event)
	return &event, nil
}

func (f *fakeRegionalStore) CountDownloadEvents(context.Context) (int64, error) {
	return int64(len(f.events)), nil
}

func (f *fakeRegionalStore) CreateTransaction(_ context.Context, tx *domain.PaymentTransaction) error {
	tx.ID = f.id()
	f.transactions = append(f.transactions, tx)
	return nil
}

func (f *fakeRegionalStore) GetTransaction(_ context.Context, transactionID string) (*domain.PaymentTransaction, error) {
	for _, tx := range f.transactions {
		if tx.TransactionID == transactionID {
			return tx, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRegionalStore) UpdateTransactionStatus(_ context.Context, transactionID string, status domain.PaymentStatus) error {
	for _, tx := range f.transactions {
		if tx.TransactionID == transactionID {
			tx.Status = status
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakeRegionalStore) ListRecentOrders(_ context.Context, limit int) ([]domain.OrderSummary, error) {
	out := make([]domain.OrderSummary, 0, len(f.transactions))
	for _, tx := range f.transactions {
		if len(out) >= limit {
			break
		}
		out = append(out, domain.OrderSummary{
			ID:        tx.ID,
			Region:    f.region,
			Method:    tx.PaymentMethod,
			Status:    string(tx.Status),
			Amount:    tx.AmountUSD,
			UserEmail: tx.UserEmail,
		})
	}
	return out, nil
}

func (f *fakeRegionalStore) CreateUser(_ context.Context, input domain.CreateWebUserInput) (*domain.WebUser, error) {
	if _, ok := f.users[input.Email]; ok {
		return nil, domain.ErrAlreadyExists
	}
	user := &domain.WebUser{
		ID:             f.id(),
		Email:          input.Email,
		PasswordHash:   input.PasswordHash,
		Nickname:       input.Nickname,
		Credits:        input.Credits,
		MembershipTier: input.TierOrFree(),
		CreatedAt:      time.Now(),
	}
	f.users[input.Email] = user
	return user, nil
}

func (f *fakeRegionalStore) GetUserByEmail(_ context.Context, email string) (*domain.WebUser, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return user, nil
}

func (f *fakeRegionalStore) ListUsers(_ context.Context, limit int) ([]domain.AdminUserSummary, error) {
	out := make([]domain.AdminUserSummary, 0, len(f.users))
	for _, user := range f.users {
		if len(out) >= limit {
			break
		}
		out = append(out, domain.AdminUserSummary{
			ID:     user.ID,
			Email:  user.Email,
			Region: string(f.region),
		})
	}
	return out, nil
}

func (f *fakeRegionalStore) CountUsers(context.Context) (int64, error) {
	return int64(len(f.users)), nil
}

func (f *fakeRegionalStore) BusinessMetrics(context.Context) (*domain.BusinessMetrics, error) {
	if f.failMetrics {
		return nil, errors.New("metrics backend down")
	}
	metrics := f.metrics
	return &metrics, nil
}

func (f *fakeRegionalStore) UploadObject(_ context.Context, path string, reader io.Reader, _ int64, _ string) error {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return err
	}
	f.objects[path] = buf.Bytes()
	return nil
}

func (f *fakeRegionalStore) SignedDownloadURL(_ context.Context, path string) (string, error) {
	if _, ok := f.objects[path]; !ok {
		return "", domain.ErrNotFound
	}
	return "https://files.example.com/" + path, nil
}

func (f *fakeRegionalStore) DeleteObject(_ context.Context, path string) error {
	if f.failObjDelete {
		return errors.New("object storage down")
	}
	delete(f.objects, path)
	return nil
}

func (f *fakeRegionalStore) Health(context.Context) error { return nil }
func (f *fakeRegionalStore) Close() error                 { return nil }
