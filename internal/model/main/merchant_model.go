package mainmodel

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// 套餐
const (
	PlanFree       = "free"
	PlanTrial      = "trial"
	PlanStarter    = "starter"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// 网络模式
const (
	NetworkTestnet = "testnet"
	NetworkMainnet = "mainnet"
)

// Merchant 商户（本服务只关心费率、交易量和 webhook 配置）
type Merchant struct {
	MerchantID  uint64 `gorm:"column:m_id;primaryKey" json:"merchantId"`
	NickName    string `gorm:"column:nickname;type:varchar(64)" json:"nickname"`
	Plan        string `gorm:"column:plan;type:varchar(16);not null;default:free" json:"plan"`
	NetworkMode string `gorm:"column:network_mode;type:varchar(16);not null;default:testnet" json:"networkMode"`
	IsSuspended bool   `gorm:"column:is_suspended;not null;default:false" json:"isSuspended"`

	FeesDue             decimal.Decimal  `gorm:"column:fees_due;type:decimal(24,8);not null;default:0" json:"feesDue"`
	MonthlyVolumeUsed   decimal.Decimal  `gorm:"column:monthly_volume_used;type:decimal(24,8);not null;default:0" json:"monthlyVolumeUsed"`
	MonthlyTransactions int64            `gorm:"column:monthly_transactions;not null;default:0" json:"monthlyTransactions"`
	MainnetVolumeUsed   decimal.Decimal  `gorm:"column:mainnet_volume_used;type:decimal(24,8);not null;default:0" json:"mainnetVolumeUsed"`
	MainnetTransactions int64            `gorm:"column:mainnet_transactions;not null;default:0" json:"mainnetTransactions"`
	TestnetVolumeUsed   decimal.Decimal  `gorm:"column:testnet_volume_used;type:decimal(24,8);not null;default:0" json:"testnetVolumeUsed"`
	TestnetTransactions int64            `gorm:"column:testnet_transactions;not null;default:0" json:"testnetTransactions"`
	CustomFeePercent    *decimal.Decimal `gorm:"column:custom_fee_percent;type:decimal(8,4)" json:"customFeePercent,omitempty"`
	BillingCycleStart   time.Time        `gorm:"column:billing_cycle_start;not null" json:"billingCycleStart"`

	WebhookURL     string `gorm:"column:webhook_url;type:varchar(512)" json:"webhookUrl"`
	WebhookSecret  string `gorm:"column:webhook_secret;type:varchar(128)" json:"-"`
	WebhookEnabled bool   `gorm:"column:webhook_enabled;not null;default:false" json:"webhookEnabled"`
	WebhookEvents  string `gorm:"column:webhook_events;type:varchar(512)" json:"webhookEvents"` // 逗号分隔，空表示全部订阅

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Merchant) TableName() string { return "w_merchant" }

// IsFreeTier 免费或试用套餐
func (m *Merchant) IsFreeTier() bool {
	p := strings.ToLower(m.Plan)
	return p == "" || p == PlanFree || p == PlanTrial
}

// IsMainnet 商户当前是否在主网模式
func (m *Merchant) IsMainnet() bool {
	return strings.EqualFold(m.NetworkMode, NetworkMainnet)
}

// CycleElapsed 账期是否已满 days 天
func (m *Merchant) CycleElapsed(now time.Time, days int) bool {
	if m.BillingCycleStart.IsZero() {
		return true
	}
	return !now.Before(m.BillingCycleStart.AddDate(0, 0, days))
}

// ResetCycle 重置月度计数（主网/测试网累计量随账期一起清零）
func (m *Merchant) ResetCycle(now time.Time) {
	m.MonthlyVolumeUsed = decimal.Zero
	m.MonthlyTransactions = 0
	m.MainnetVolumeUsed = decimal.Zero
	m.MainnetTransactions = 0
	m.TestnetVolumeUsed = decimal.Zero
	m.TestnetTransactions = 0
	m.BillingCycleStart = now
}
