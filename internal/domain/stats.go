package domain

// BusinessMetrics 单个区域后端的经营指标
type BusinessMetrics struct {
	TotalUsers      int64   `json:"totalUsers"`
	PaidUsers       int64   `json:"paidUsers"`
	ActiveMembers   int64   `json:"activeMembers"`
	CompletedOrders int64   `json:"completedOrders"`
	Revenue         float64 `json:"revenue"`
	TodayNewUsers   int64   `json:"todayNewUsers"`
}

// Add 把另一份指标累加进来，用于跨区域汇总
func (m *BusinessMetrics) Add(other BusinessMetrics) {
	m.TotalUsers += other.TotalUsers
	m.PaidUsers += other.PaidUsers
	m.ActiveMembers += other.ActiveMembers
	m.CompletedOrders += other.CompletedOrders
	m.Revenue += other.Revenue
	m.TodayNewUsers += other.TodayNewUsers
}

// DashboardStats 管理后台总览数据
type DashboardStats struct {
	Overview  BusinessMetrics      `json:"overview"`
	CN        BusinessMetrics      `json:"cn"`
	INTL      BusinessMetrics      `json:"intl"`
	Downloads DownloadStatsSummary `json:"downloads"`
}
