package georouter

import (
	"net"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

// localHeuristic 所有外部查询源都失败后的本地兜底。
// 配置了 GeoLite2 库文件时用库查询，否则只认内网地址。
type localHeuristic struct {
	reader *geoip2.Reader
	log    *zap.Logger
}

func newLocalHeuristic(mmdbPath string, log *zap.Logger) *localHeuristic {
	h := &localHeuristic{log: log}
	if mmdbPath == "" {
		return h
	}
	reader, err := geoip2.Open(mmdbPath)
	if err != nil {
		log.Warn("GeoLite2 库文件不可用，本地判定退化为内网检测",
			zap.String("path", mmdbPath), zap.Error(err))
		return h
	}
	h.reader = reader
	return h
}

// countryCode 返回推测的国家码
func (h *localHeuristic) countryCode(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "US"
	}
	// 内网/回环流量通常来自国内部署的测试环境
	if parsed.IsLoopback() || parsed.IsPrivate() {
		return "CN"
	}
	if h.reader != nil {
		if record, err := h.reader.Country(parsed); err == nil && record.Country.IsoCode != "" {
			return record.Country.IsoCode
		}
	}
	return "US"
}

func (h *localHeuristic) close() {
	if h.reader != nil {
		_ = h.reader.Close()
	}
}
