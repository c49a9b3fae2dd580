package cloudbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"morntool/backend/internal/resilience"
)

// Document CloudBase 文档，_id 之外的字段原样透传
type Document map[string]interface{}

// ID 文档主键
func (d Document) ID() string {
	id, _ := d["_id"].(string)
	return id
}

// String 读取字符串字段
func (d Document) String(key string) string {
	v, _ := d[key].(string)
	return v
}

// Int64 读取数值字段，JSON 解码后数值是 float64
func (d Document) Int64(key string) int64 {
	switch v := d[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	}
	return 0
}

// Float64 读取浮点字段
func (d Document) Float64(key string) float64 {
	if v, ok := d[key].(float64); ok {
		return v
	}
	return 0
}

// Bool 读取布尔字段
func (d Document) Bool(key string) bool {
	v, _ := d[key].(bool)
	return v
}

// Time 读取 RFC3339 时间字段
func (d Document) Time(key string) time.Time {
	if s, ok := d[key].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// QueryOptions 文档查询选项
type QueryOptions struct {
	Filter  map[string]interface{}
	OrderBy string
	Desc    bool
	Limit   int
}

// DocClient CloudBase 环境的文档与文件操作
type DocClient interface {
	Query(ctx context.Context, collection string, opts QueryOptions) ([]Document, error)
	Add(ctx context.Context, collection string, doc Document) (string, error)
	Update(ctx context.Context, collection, id string, patch Document) error
	Remove(ctx context.Context, collection, id string) error
	Count(ctx context.Context, collection string, filter map[string]interface{}) (int64, error)
	CreateCollection(ctx context.Context, collection string) error

	UploadFile(ctx context.Context, path string, reader io.Reader, size int64, contentType string) (string, error)
	TempFileURL(ctx context.Context, fileID string) (string, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// Config CloudBase 环境连接参数
type Config struct {
	// EnvID 环境 ID
	EnvID string
	// SecretID / SecretKey 腾讯云 API 密钥
	SecretID  string
	SecretKey string
	// BaseURL 网关地址，留空用默认
	BaseURL string
}

const defaultBaseURL = "https://tcb-api.tencentcloudapi.com"

// collectionMissingCode 访问不存在的集合时网关返回的错误码
const collectionMissingCode = "DATABASE_COLLECTION_NOT_EXIST"

// Client 通过 HTTP 网关访问 CloudBase。
// 腾讯云没有发布 Go 版 SDK，这里直接走开放接口。
type Client struct {
	cfg    Config
	base   string
	client *http.Client
	log    *zap.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient 创建 CloudBase 客户端
func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.EnvID == "" || cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, resilience.New(resilience.ConfigError, "CLOUDBASE_CONFIG",
			"CloudBase 环境 ID 与 API 密钥不能为空", false)
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	return &Client{
		cfg:    cfg,
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}, nil
}

// apiError 网关返回的业务错误
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("cloudbase: %s: %s", e.Code, e.Message)
}

// IsCollectionMissing 是否为集合不存在错误
func IsCollectionMissing(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.Code == collectionMissingCode
}

// token 获取访问令牌，到期前 60 秒内主动刷新
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.accessToken, nil
	}

	payload := map[string]string{
		"secret_id":  c.cfg.SecretID,
		"secret_key": c.cfg.SecretKey,
		"env":        c.cfg.EnvID,
	}
	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		Code        string `json:"code"`
		Message     string `json:"message"`
	}
	if err := c.postJSON(ctx, "/auth/v1/token", "", payload, &result); err != nil {
		return "", err
	}
	if result.Code != "" {
		return "", resilience.Wrap(&apiError{Code: result.Code, Message: result.Message},
			resilience.APIError, "CLOUDBASE_AUTH", "CloudBase 获取令牌失败", false)
	}

	c.accessToken = result.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(result.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// call 携带令牌调用数据接口，带一次网络级重试
func (c *Client) call(ctx context.Context, path string, payload interface{}, out interface{}) error {
	_, err := resilience.WithRetry(ctx, func(ctx context.Context) (struct{}, error) {
		token, err := c.token(ctx)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, c.postJSON(ctx, path, token, payload, out)
	}, resilience.RetryOptions{MaxRetries: 1, Delay: 500 * time.Millisecond, BackoffMultiplier: 2})
	return err
}

func (c *Client) postJSON(ctx context.Context, path, token string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return resilience.Wrap(err, resilience.ValidationError, "CLOUDBASE_ENCODE", "请求编码失败", false)
	}

	endpoint := c.base + path + "?env=" + url.QueryEscape(c.cfg.EnvID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return resilience.Wrap(err, resilience.ConfigError, "CLOUDBASE_REQUEST", "构造请求失败", false)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := resilience.DoWithTimeout(ctx, c.client, req, 10*time.Second)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resilience.Wrap(err, resilience.NetworkError, "CLOUDBASE_READ", "读取响应失败", true)
	}
	if resp.StatusCode >= 500 {
		return resilience.New(resilience.APIError, "CLOUDBASE_STATUS",
			fmt.Sprintf("CloudBase 网关返回 %d", resp.StatusCode), true)
	}
	if resp.StatusCode != http.StatusOK {
		return resilience.New(resilience.APIError, "CLOUDBASE_STATUS",
			fmt.Sprintf("CloudBase 网关返回 %d: %s", resp.StatusCode, string(data)), false)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resilience.Wrap(err, resilience.APIError, "CLOUDBASE_DECODE", "响应解码失败", false)
		}
	}
	return nil
}

// envelope 数据接口的统一响应壳
type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *envelope) err(wrapCode string) error {
	if e.Code == "" {
		return nil
	}
	return resilience.Wrap(&apiError{Code: e.Code, Message: e.Message},
		resilience.APIError, wrapCode, "CloudBase 操作失败", false)
}

// Query 按条件查询文档
func (c *Client) Query(ctx context.Context, collection string, opts QueryOptions) ([]Document, error) {
	payload := map[string]interface{}{
		"collection": collection,
		"query":      opts.Filter,
	}
	if opts.Limit > 0 {
		payload["limit"] = opts.Limit
	}
	if opts.OrderBy != "" {
		direction := "asc"
		if opts.Desc {
			direction = "desc"
		}
		payload["order_by"] = map[string]string{"field": opts.OrderBy, "direction": direction}
	}

	var resp envelope
	if err := c.call(ctx, "/database/v1/query", payload, &resp); err != nil {
		return nil, err
	}
	if err := resp.err("CLOUDBASE_QUERY"); err != nil {
		return nil, err
	}

	var docs []Document
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &docs); err != nil {
			return nil, resilience.Wrap(err, resilience.APIError, "CLOUDBASE_QUERY", "查询结果解码失败", false)
		}
	}
	return docs, nil
}

// Add 插入文档，返回生成的 _id
func (c *Client) Add(ctx context.Context, collection string, doc Document) (string, error) {
	payload := map[string]interface{}{
		"collection": collection,
		"data":       doc,
	}
	var resp envelope
	if err := c.call(ctx, "/database/v1/add", payload, &resp); err != nil {
		return "", err
	}
	if err := resp.err("CLOUDBASE_ADD"); err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return "", resilience.Wrap(err, resilience.APIError, "CLOUDBASE_ADD", "插入结果解码失败", false)
	}
	return result.ID, nil
}

// Update 按 _id 更新文档字段
func (c *Client) Update(ctx context.Context, collection, id string, patch Document) error {
	payload := map[string]interface{}{
		"collection": collection,
		"id":         id,
		"data":       patch,
	}
	var resp envelope
	if err := c.call(ctx, "/database/v1/update", payload, &resp); err != nil {
		return err
	}
	return resp.err("CLOUDBASE_UPDATE")
}

// Remove 按 _id 删除文档
func (c *Client) Remove(ctx context.Context, collection, id string) error {
	payload := map[string]interface{}{
		"collection": collection,
		"id":         id,
	}
	var resp envelope
	if err := c.call(ctx, "/database/v1/remove", payload, &resp); err != nil {
		return err
	}
	return resp.err("CLOUDBASE_REMOVE")
}

// Count 按条件统计文档数
func (c *Client) Count(ctx context.Context, collection string, filter map[string]interface{}) (int64, error) {
	payload := map[string]interface{}{
		"collection": collection,
		"query":      filter,
	}
	var resp envelope
	if err := c.call(ctx, "/database/v1/count", payload, &resp); err != nil {
		return 0, err
	}
	if err := resp.err("CLOUDBASE_COUNT"); err != nil {
		return 0, err
	}

	var result struct {
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return 0, resilience.Wrap(err, resilience.APIError, "CLOUDBASE_COUNT", "统计结果解码失败", false)
	}
	return result.Total, nil
}

// CreateCollection 创建集合，已存在时网关返回成功
func (c *Client) CreateCollection(ctx context.Context, collection string) error {
	payload := map[string]interface{}{
		"collection": collection,
	}
	var resp envelope
	if err := c.call(ctx, "/database/v1/create-collection", payload, &resp); err != nil {
		return err
	}
	return resp.err("CLOUDBASE_CREATE_COLLECTION")
}

// UploadFile 上传文件到环境的云存储，返回 fileID
func (c *Client) UploadFile(ctx context.Context, path string, reader io.Reader, size int64, contentType string) (string, error) {
	// 先取直传地址，再把文件内容 PUT 上去
	payload := map[string]interface{}{
		"path": path,
	}
	var resp envelope
	if err := c.call(ctx, "/storage/v1/upload-url", payload, &resp); err != nil {
		return "", err
	}
	if err := resp.err("CLOUDBASE_UPLOAD"); err != nil {
		return "", err
	}

	var grant struct {
		UploadURL string `json:"upload_url"`
		FileID    string `json:"file_id"`
	}
	if err := json.Unmarshal(resp.Data, &grant); err != nil {
		return "", resilience.Wrap(err, resilience.APIError, "CLOUDBASE_UPLOAD", "上传授权解码失败", false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, grant.UploadURL, reader)
	if err != nil {
		return "", resilience.Wrap(err, resilience.ConfigError, "CLOUDBASE_UPLOAD", "构造上传请求失败", false)
	}
	req.ContentLength = size
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	uploadResp, err := c.client.Do(req)
	if err != nil {
		return "", resilience.Wrap(err, resilience.NetworkError, "CLOUDBASE_UPLOAD", "文件上传失败", true)
	}
	defer uploadResp.Body.Close()
	if uploadResp.StatusCode != http.StatusOK && uploadResp.StatusCode != http.StatusNoContent {
		return "", resilience.New(resilience.APIError, "CLOUDBASE_UPLOAD",
			fmt.Sprintf("文件上传返回 %d", uploadResp.StatusCode), false)
	}
	return grant.FileID, nil
}

// TempFileURL 获取文件的临时下载地址
func (c *Client) TempFileURL(ctx context.Context, fileID string) (string, error) {
	payload := map[string]interface{}{
		"file_id": fileID,
	}
	var resp envelope
	if err := c.call(ctx, "/storage/v1/temp-url", payload, &resp); err != nil {
		return "", err
	}
	if err := resp.err("CLOUDBASE_TEMP_URL"); err != nil {
		return "", err
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return "", resilience.Wrap(err, resilience.APIError, "CLOUDBASE_TEMP_URL", "下载地址解码失败", false)
	}
	return result.URL, nil
}

// DeleteFile 删除云存储文件
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	payload := map[string]interface{}{
		"file_id": fileID,
	}
	var resp envelope
	if err := c.call(ctx, "/storage/v1/delete", payload, &resp); err != nil {
		return err
	}
	return resp.err("CLOUDBASE_DELETE_FILE")
}
