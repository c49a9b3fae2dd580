package domain

// FreeUserInitialCredits 新用户初始积分
const FreeUserInitialCredits = 300

// USDToCNYRate 美元兑人民币汇率，传给 CN 渠道前换算
// TODO: 接入汇率源，当前上线前统一用 1 便于对账
const USDToCNYRate = 1

// ToolCreditCosts 各工具单次调用的积分消耗
var ToolCreditCosts = map[string]int64{
	"email-multi-sender":    5,
	"text-multi-sender":     5,
	"social-auto-poster":    5,
	"data-scraper":          8,
	"jpeg-to-pdf":           3,
	"file-format-converter": 5,
	"video-to-gif":          10,
	"bulk-image-resizer":    3,
	"qr-generator":          1,
	"currency-converter":    1,
	"unit-converter":        1,
	"text-utilities":        1,
	"timezone-converter":    1,
}

// ToolCreditCost 返回工具的积分消耗，未知工具返回 -1
func ToolCreditCost(toolID string) int64 {
	if cost, ok := ToolCreditCosts[toolID]; ok {
		return cost
	}
	return -1
}

// CreditPackage 一次性积分包
type CreditPackage struct {
	Amount  int64   `json:"amount"`
	PriceUSD float64 `json:"price"`
	Popular bool    `json:"popular"`
}

// CreditPackages 可购买的积分包
var CreditPackages = []CreditPackage{
	{Amount: 50, PriceUSD: 0.99},
	{Amount: 100, PriceUSD: 1.99, Popular: true},
	{Amount: 250, PriceUSD: 3.99},
	{Amount: 500, PriceUSD: 6.99},
}

// MembershipPlan 会员套餐
type MembershipPlan struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Tier            string   `json:"tier"`
	MonthlyPriceUSD float64  `json:"monthlyPrice"`
	YearlyPriceUSD  float64  `json:"yearlyPrice"`
	CreditsPerMonth int64    `json:"creditsPerMonth"`
	Features        []string `json:"features"`
	Popular         bool     `json:"popular,omitempty"`
}

// MembershipPlans 全部会员套餐
var MembershipPlans = []MembershipPlan{
	{
		ID:              "basic",
		Name:            "Basic",
		Tier:            "basic",
		MonthlyPriceUSD: 4.99,
		YearlyPriceUSD:  49.9,
		CreditsPerMonth: 300,
		Features:        []string{"Core tools", "Email support", "Monthly credits refresh"},
	},
	{
		ID:              "pro",
		Name:            "Pro",
		Tier:            "pro",
		MonthlyPriceUSD: 9.99,
		YearlyPriceUSD:  99.9,
		CreditsPerMonth: 900,
		Features:        []string{"All Basic features", "Priority queue", "Advanced tools"},
		Popular:         true,
	},
	{
		ID:              "business",
		Name:            "Business",
		Tier:            "business",
		MonthlyPriceUSD: 29.99,
		YearlyPriceUSD:  299.9,
		CreditsPerMonth: 2800,
		Features:        []string{"All Pro features", "Higher throughput", "Priority support"},
	},
}

// MembershipPlanByID 按 ID 查找套餐，找不到返回 nil
func MembershipPlanByID(planID string) *MembershipPlan {
	for i := range MembershipPlans {
		if MembershipPlans[i].ID == planID {
			return &MembershipPlans[i]
		}
	}
	return nil
}

// PlanPrice 返回套餐在指定计费周期下的美元价格
func PlanPrice(plan *MembershipPlan, cycle BillingCycle) float64 {
	if cycle == BillingYearly {
		return plan.YearlyPriceUSD
	}
	return plan.MonthlyPriceUSD
}

// PlanCreditsGrant 返回套餐在指定计费周期下发放的积分
func PlanCreditsGrant(plan *MembershipPlan, cycle BillingCycle) int64 {
	if cycle == BillingYearly {
		return plan.CreditsPerMonth * 12
	}
	return plan.CreditsPerMonth
}
