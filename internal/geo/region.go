package geo

// Region 地理区域分类，驱动货币、支付方式、认证方式和后端选择
type Region string

const (
	RegionChina     Region = "china"
	RegionUSA       Region = "usa"
	RegionEurope    Region = "europe"
	RegionIndia     Region = "india"
	RegionSingapore Region = "singapore"
	RegionOther     Region = "other"
)

// 主流市场国家代码
const (
	CountryChina     = "CN"
	CountryUSA       = "US"
	CountryIndia     = "IN"
	CountrySingapore = "SG"
)

// EuropeanCountries 欧洲国家代码列表（EU 27 + EEA + 英国 + 瑞士）
var EuropeanCountries = []string{
	// EU 成员国
	"AT", "BE", "BG", "HR", "CY", "CZ", "DK", "EE", "FI", "FR",
	"DE", "GR", "HU", "IE", "IT", "LV", "LT", "LU", "MT", "NL",
	"PL", "PT", "RO", "SK", "SI", "ES", "SE",
	// EEA 非 EU 成员
	"IS", "LI", "NO",
	// 英国（脱欧后仍需遵守部分 GDPR）
	"GB",
	// 瑞士（数据保护法与 EU 类似）
	"CH",
}

var europeanSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(EuropeanCountries))
	for _, code := range EuropeanCountries {
		m[code] = struct{}{}
	}
	return m
}()

// RegionFromCountryCode 根据 ISO-3166 国家代码返回区域分类。
// 优先匹配目标市场，再匹配欧洲国家集合，其余归为 other。
func RegionFromCountryCode(countryCode string) Region {
	switch countryCode {
	case CountryChina:
		return RegionChina
	case CountryUSA:
		return RegionUSA
	case CountryIndia:
		return RegionIndia
	case CountrySingapore:
		return RegionSingapore
	}
	if _, ok := europeanSet[countryCode]; ok {
		return RegionEurope
	}
	return RegionOther
}

// IsEuropeanCountry 检查国家代码是否属于欧洲集合
func IsEuropeanCountry(countryCode string) bool {
	_, ok := europeanSet[countryCode]
	return ok
}

// IsChinaCountry 检查是否为中国
func IsChinaCountry(countryCode string) bool {
	return countryCode == CountryChina
}

// PaymentMethodsByRegion 返回区域可用的支付方式。
// 欧洲区域返回空列表：出于合规成本考虑屏蔽支付，属于业务策略而非技术限制。
func PaymentMethodsByRegion(region Region) []string {
	switch region {
	case RegionChina:
		return []string{"alipay", "wechatpay", "unionpay", "stripe", "paypal"}
	case RegionUSA, RegionIndia, RegionSingapore, RegionOther:
		return []string{"stripe", "paypal"}
	case RegionEurope:
		return []string{}
	default:
		return []string{"stripe", "paypal"}
	}
}

// CurrencyByRegion 返回区域的 ISO-4217 货币代码
func CurrencyByRegion(region Region) string {
	switch region {
	case RegionChina:
		return "CNY"
	case RegionUSA:
		return "USD"
	case RegionIndia:
		return "INR"
	case RegionSingapore:
		return "SGD"
	case RegionEurope:
		return "EUR"
	default:
		return "USD"
	}
}

// DefaultLanguage 返回区域的默认语言
func DefaultLanguage(region Region) string {
	if region == RegionChina {
		return "zh"
	}
	return "en"
}

// AuthMethodsByRegion 返回区域可用的登录方式。
// 欧洲区域 GDPR 合规，只允许邮箱认证。
func AuthMethodsByRegion(region Region) []string {
	switch region {
	case RegionChina:
		return []string{"wechat", "email"}
	case RegionEurope:
		return []string{"email"}
	default:
		return []string{"google", "email"}
	}
}
