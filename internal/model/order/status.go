package ordermodel

// Status 订单状态
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusConfirmed Status = "CONFIRMED"
	StatusExpired   Status = "EXPIRED"
	StatusRefunded  Status = "REFUNDED"
)

// 合法状态迁移表
var transitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusConfirmed, StatusExpired},
	StatusPaid:      {StatusConfirmed, StatusRefunded},
	StatusConfirmed: {StatusRefunded},
}

// CanTransition 判断 from -> to 是否合法
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal EXPIRED 与 REFUNDED 为终态
func (s Status) IsTerminal() bool {
	return s == StatusExpired || s == StatusRefunded
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusConfirmed, StatusExpired, StatusRefunded:
		return true
	}
	return false
}

// TxStatus 链上交易状态
type TxStatus string

const (
	TxPending   TxStatus = "PENDING"
	TxConfirmed TxStatus = "CONFIRMED"
	TxFailed    TxStatus = "FAILED"
)

// RefundStatus 退款状态
type RefundStatus string

const (
	RefundPending   RefundStatus = "PENDING"
	RefundApproved  RefundStatus = "APPROVED"
	RefundRejected  RefundStatus = "REJECTED"
	RefundProcessed RefundStatus = "PROCESSED"
)
