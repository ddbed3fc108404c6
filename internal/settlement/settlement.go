package settlement

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"stablepay-api/internal/config"
)

var hundred = decimal.NewFromInt(100)

// feeScale 费用金额保留 8 位小数
const feeScale = 8

// CustomTierName 使用协商费率时返回的档位名
const CustomTierName = "custom"

// Tier 交易量档位，Percent 为百分比（0.4 表示 0.4%）
type Tier struct {
	Name      string
	Threshold decimal.Decimal
	Percent   decimal.Decimal
}

// TierTable 按阈值升序排列的费率档位表
type TierTable struct {
	tiers     []Tier
	minCustom decimal.Decimal
}

// NewTierTable 阈值必须严格递增，费率不得随交易量上升
func NewTierTable(tiers []Tier, minCustom decimal.Decimal) (*TierTable, error) {
	if len(tiers) == 0 {
		return nil, errors.New("settlement: empty tier table")
	}
	sorted := make([]Tier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Threshold.LessThan(sorted[j].Threshold) })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Threshold.Equal(sorted[i-1].Threshold) {
			return nil, fmt.Errorf("settlement: duplicate tier threshold %s", sorted[i].Threshold)
		}
		if sorted[i].Percent.GreaterThan(sorted[i-1].Percent) {
			return nil, fmt.Errorf("settlement: tier %q fee %s is higher than lower tier", sorted[i].Name, sorted[i].Percent)
		}
	}
	for _, t := range sorted {
		if t.Percent.IsNegative() {
			return nil, fmt.Errorf("settlement: tier %q has negative fee", t.Name)
		}
	}
	return &TierTable{tiers: sorted, minCustom: minCustom}, nil
}

// NewTierTableFromConfig 从配置构建档位表
func NewTierTableFromConfig(c config.FeeCfg) (*TierTable, error) {
	tiers := make([]Tier, 0, len(c.Tiers))
	for _, t := range c.Tiers {
		th, err := decimal.NewFromString(t.Threshold)
		if err != nil {
			return nil, fmt.Errorf("settlement: tier %q threshold: %w", t.Name, err)
		}
		pct, err := decimal.NewFromString(t.Percent)
		if err != nil {
			return nil, fmt.Errorf("settlement: tier %q percent: %w", t.Name, err)
		}
		tiers = append(tiers, Tier{Name: t.Name, Threshold: th, Percent: pct})
	}
	minCustom := decimal.Zero
	if c.MinCustomPercent != "" {
		v, err := decimal.NewFromString(c.MinCustomPercent)
		if err != nil {
			return nil, fmt.Errorf("settlement: minCustomPercent: %w", err)
		}
		minCustom = v
	}
	return NewTierTable(tiers, minCustom)
}

// TierFor 阈值不超过 volume 的最高档位；volume 低于最低阈值时取最低档
func (t *TierTable) TierFor(volume decimal.Decimal) Tier {
	chosen := t.tiers[0]
	for _, tier := range t.tiers {
		if tier.Threshold.GreaterThan(volume) {
			break
		}
		chosen = tier
	}
	return chosen
}

// FeePercent 协商费率不低于下限时直接使用，否则按交易量查档位。
// volume 需包含正在确认的这笔订单
func (t *TierTable) FeePercent(volume decimal.Decimal, custom *decimal.Decimal) decimal.Decimal {
	pct, _ := t.Resolve(volume, custom)
	return pct
}

// Resolve 同 FeePercent，额外返回档位名
func (t *TierTable) Resolve(volume decimal.Decimal, custom *decimal.Decimal) (decimal.Decimal, string) {
	if custom != nil && custom.GreaterThanOrEqual(t.minCustom) {
		return *custom, CustomTierName
	}
	tier := t.TierFor(volume)
	return tier.Percent, tier.Name
}

// Tiers 返回档位副本
func (t *TierTable) Tiers() []Tier {
	out := make([]Tier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

// FeeAmount amount × percent / 100
func FeeAmount(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred).Round(feeScale)
}

// ProportionalReversal 退款冲回的手续费 = 退款额 / 订单额 × 原手续费
func ProportionalReversal(refundAmount, orderAmount, originalFee decimal.Decimal) decimal.Decimal {
	if !orderAmount.IsPositive() || !originalFee.IsPositive() || !refundAmount.IsPositive() {
		return decimal.Zero
	}
	if refundAmount.GreaterThan(orderAmount) {
		refundAmount = orderAmount
	}
	return refundAmount.Div(orderAmount).Mul(originalFee).Round(feeScale)
}

// SubFloorZero a - b，结果不小于 0
func SubFloorZero(a, b decimal.Decimal) decimal.Decimal {
	return MaxDecimal(a.Sub(b), decimal.Zero)
}

// MaxDecimal 比较两个数值，返回最大值
func MaxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}
