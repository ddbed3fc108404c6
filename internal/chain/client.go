package chain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TransferEvent 打到收款地址的一笔代币转账
type TransferEvent struct {
	TxHash      string
	From        string
	To          string
	Amount      decimal.Decimal
	BlockNumber uint64
}

// Receipt 交易回执，Success=false 表示链上执行失败
type Receipt struct {
	Success     bool
	BlockNumber uint64
}

type Block struct {
	Number    uint64
	Timestamp time.Time
}

// Client 单条链的只读访问能力
type Client interface {
	CurrentBlockHeight(ctx context.Context) (uint64, error)
	TransferEventsInRange(ctx context.Context, fromBlock, toBlock uint64, watched []string) ([]TransferEvent, error)
	// GetReceipt 交易尚未上链时返回 (nil, nil)
	GetReceipt(ctx context.Context, txHash string) (*Receipt, error)
	GetBlock(ctx context.Context, number uint64) (*Block, error)
}

// Confirmations 区块确认数，含交易所在块
func Confirmations(current, txBlock uint64) int64 {
	if txBlock == 0 || current < txBlock {
		return 0
	}
	return int64(current-txBlock) + 1
}
