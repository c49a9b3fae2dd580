package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"morntool/backend/internal/config"
	"morntool/backend/internal/domain"
	"morntool/backend/internal/storage/cloudbase"
	"morntool/backend/internal/storage/memory"
	"morntool/backend/internal/storage/supabase"
)

// Selector 持有各区域后端，按部署区域选主存储。
// 管理后台的统计需要同时看两个区域，没配置的区域保持缺位。
type Selector struct {
	primary domain.DeploymentRegion
	stores  map[domain.DeploymentRegion]domain.RegionalStore
	log     *zap.Logger
}

// NewSelector 用已构建的区域后端组装选择器
func NewSelector(primary domain.DeploymentRegion, stores map[domain.DeploymentRegion]domain.RegionalStore, log *zap.Logger) (*Selector, error) {
	if _, ok := stores[primary]; !ok {
		return nil, fmt.Errorf("no store configured for deployment region %s", primary)
	}
	return &Selector{primary: primary, stores: stores, log: log}, nil
}

// Open 按配置初始化区域后端。
// 当前实例所在区域的后端必须可用，另一个区域缺配置时只打告警。
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Selector, error) {
	s := &Selector{
		primary: cfg.Region.Deployment,
		stores:  make(map[domain.DeploymentRegion]domain.RegionalStore),
		log:     log,
	}

	if cfg.CloudBase.EnvID != "" {
		client, err := cloudbase.NewClient(cloudbase.Config{
			EnvID:     cfg.CloudBase.EnvID,
			SecretID:  cfg.CloudBase.SecretID,
			SecretKey: cfg.CloudBase.SecretKey,
			BaseURL:   cfg.CloudBase.BaseURL,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create cloudbase client: %w", err)
		}
		store, err := cloudbase.NewStore(ctx, client, log)
		if err != nil {
			return nil, fmt.Errorf("failed to init cloudbase store: %w", err)
		}
		s.stores[domain.DeploymentCN] = store
		log.Info("CN 区后端就绪", zap.String("backend", string(domain.BackendCloudBase)))
	}

	if cfg.Supabase.DSN != "" {
		var objects domain.ObjectStore
		if cfg.Supabase.StorageEndpoint != "" {
			storage, err := supabase.NewObjectStorage(ctx, supabase.ObjectConfig{
				Endpoint:  cfg.Supabase.StorageEndpoint,
				AccessKey: cfg.Supabase.StorageAccessKey,
				SecretKey: cfg.Supabase.StorageSecretKey,
				Bucket:    cfg.Supabase.StorageBucket,
				UseSSL:    cfg.Supabase.StorageUseSSL,
			}, log)
			if err != nil {
				return nil, fmt.Errorf("failed to init object storage: %w", err)
			}
			objects = storage
		}
		store, err := supabase.NewStore(cfg.Supabase.DSN, objects)
		if err != nil {
			return nil, fmt.Errorf("failed to init supabase store: %w", err)
		}
		s.stores[domain.DeploymentINTL] = store
		log.Info("INTL 区后端就绪", zap.String("backend", string(domain.BackendSupabase)))
	}

	if _, ok := s.stores[s.primary]; !ok {
		// 本区后端缺配置：生产环境直接失败，开发环境退化为内存存储
		if cfg.Server.Production {
			return nil, fmt.Errorf("no store configured for deployment region %s", s.primary)
		}
		s.stores[s.primary] = memory.NewStore(s.primary)
		log.Warn("本区后端未配置，使用内存存储（仅限开发环境）",
			zap.String("region", string(s.primary)))
	}
	for _, region := range []domain.DeploymentRegion{domain.DeploymentCN, domain.DeploymentINTL} {
		if _, ok := s.stores[region]; !ok {
			log.Warn("区域后端未配置，跨区统计将缺少该区数据", zap.String("region", string(region)))
		}
	}
	return s, nil
}

// Primary 当前实例所在区域的后端
func (s *Selector) Primary() domain.RegionalStore {
	return s.stores[s.primary]
}

// ForRegion 指定区域的后端，未配置时返回 false
func (s *Selector) ForRegion(region domain.DeploymentRegion) (domain.RegionalStore, bool) {
	store, ok := s.stores[region]
	return store, ok
}

// Regions 已配置的区域列表
func (s *Selector) Regions() []domain.DeploymentRegion {
	regions := make([]domain.DeploymentRegion, 0, len(s.stores))
	for region := range s.stores {
		regions = append(regions, region)
	}
	return regions
}

// Close 关闭全部后端
func (s *Selector) Close() error {
	var firstErr error
	for region, store := range s.stores {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s store: %w", region, err)
		}
	}
	return firstErr
}
