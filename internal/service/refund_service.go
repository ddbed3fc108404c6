package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"stablepay-api/internal/constant"
	"stablepay-api/internal/event"
	"stablepay-api/internal/idgen"
	"stablepay-api/internal/logger"
	ordermodel "stablepay-api/internal/model/order"
	"stablepay-api/internal/repo"
	"stablepay-api/internal/settlement"
	"stablepay-api/internal/utils/timeutil"
)

// CreateRefundInput Amount 为空时全额退款；MerchantID 非 0 时校验订单归属
type CreateRefundInput struct {
	OrderID    uint64
	MerchantID uint64
	Amount     *decimal.Decimal
	Reason     string
}

const autoReviewer = "auto"

// RefundService 退款流程：申请 -> 审批/驳回 -> 处理，处理时按比例冲回手续费
type RefundService struct {
	store     repo.Store
	ids       idgen.Generator
	publisher event.Publisher
	opts      options
}

func NewRefundService(store repo.Store, ids idgen.Generator, pub event.Publisher, opts ...Option) *RefundService {
	if pub == nil {
		pub = event.NopPublisher{}
	}
	return &RefundService{store: store, ids: ids, publisher: pub, opts: buildOptions(opts)}
}

// CreateRefund 申请退款，金额不超过订单金额减去未驳回退款之和
func (s *RefundService) CreateRefund(ctx context.Context, in CreateRefundInput) (*ordermodel.Refund, error) {
	var created *ordermodel.Refund
	err := s.store.Transaction(ctx, func(tx repo.Store) error {
		// 1) 锁订单，同一订单的退款申请串行
		o, err := tx.Orders().GetForUpdate(ctx, in.OrderID)
		if err != nil {
			return fmt.Errorf("lock order %d: %w", in.OrderID, err)
		}
		if o == nil {
			return constant.ErrOrderNotFound
		}
		if in.MerchantID != 0 && (!o.HasMerchant() || *o.MerchantID != in.MerchantID) {
			return constant.ErrAccessDenied
		}
		if o.Status != ordermodel.StatusPaid && o.Status != ordermodel.StatusConfirmed {
			return constant.ErrRefundOrderInvalid
		}

		// 2) 退款时效
		now := s.opts.now()
		paidAt := o.CreatedAt
		if o.ConfirmedAt != nil {
			paidAt = *o.ConfirmedAt
		} else if o.PaidAt != nil {
			paidAt = *o.PaidAt
		}
		if s.opts.refundMaxAge > 0 && now.Sub(paidAt) > s.opts.refundMaxAge {
			return constant.ErrRefundWindowClosed.WithData(map[string]int{
				"ageDays": timeutil.DaysBetween(paidAt, now),
			})
		}

		// 3) 可退金额
		amount := o.Amount
		if in.Amount != nil {
			amount = *in.Amount
		}
		if !amount.IsPositive() {
			return constant.ErrOrderAmountInvalid
		}
		existing, err := tx.Refunds().ListByOrder(ctx, o.OrderID)
		if err != nil {
			return fmt.Errorf("list refunds of order %d: %w", o.OrderID, err)
		}
		refunded := decimal.Zero
		for i := range existing {
			if existing[i].Counts() {
				refunded = refunded.Add(existing[i].Amount)
			}
		}
		available := o.Amount.Sub(refunded)
		if amount.GreaterThan(available) {
			return constant.ErrRefundAmountExceeded.WithData(map[string]string{
				"available": available.String(),
			})
		}

		// 4) 小额自动通过
		r := &ordermodel.Refund{
			ID:         s.ids.NextID(),
			OrderID:    o.OrderID,
			MerchantID: o.MerchantID,
			Amount:     amount,
			Reason:     strings.TrimSpace(in.Reason),
			Status:     ordermodel.RefundPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if amount.LessThanOrEqual(s.opts.autoApproveLimit) {
			r.Status = ordermodel.RefundApproved
			r.ReviewedBy = autoReviewer
		}
		if err := tx.Refunds().Create(ctx, r); err != nil {
			return fmt.Errorf("create refund: %w", err)
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.L.WithFields(logrus.Fields{
		"refund_id": created.ID,
		"order_id":  created.OrderID,
		"amount":    created.Amount.String(),
		"status":    created.Status,
	}).Info("[REFUND] requested")
	if created.MerchantID != nil {
		s.publisher.Publish(ctx, *created.MerchantID, event.RefundRequested, refundEventData(created))
	}
	return created, nil
}

// ApproveRefund 商户审批通过
func (s *RefundService) ApproveRefund(ctx context.Context, refundID, actorMerchantID uint64) (*ordermodel.Refund, error) {
	return s.review(ctx, refundID, actorMerchantID, ordermodel.RefundApproved)
}

// RejectRefund 商户驳回，驳回后金额释放
func (s *RefundService) RejectRefund(ctx context.Context, refundID, actorMerchantID uint64) (*ordermodel.Refund, error) {
	return s.review(ctx, refundID, actorMerchantID, ordermodel.RefundRejected)
}

// review actor 为 0 表示平台操作员，只能审批平台订单
func (s *RefundService) review(ctx context.Context, refundID, actor uint64, to ordermodel.RefundStatus) (*ordermodel.Refund, error) {
	var out *ordermodel.Refund
	err := s.store.Transaction(ctx, func(tx repo.Store) error {
		r, err := tx.Refunds().GetForUpdate(ctx, refundID)
		if err != nil {
			return fmt.Errorf("lock refund %d: %w", refundID, err)
		}
		if r == nil {
			return constant.ErrRefundNotFound
		}
		if !ownsRefund(r, actor) {
			return constant.ErrAccessDenied
		}
		if r.Status != ordermodel.RefundPending {
			return constant.ErrRefundStatusInvalid
		}
		r.Status = to
		r.ReviewedBy = reviewerName(actor)
		r.UpdatedAt = s.opts.now()
		if err := tx.Refunds().UpdateStatus(ctx, r, ordermodel.RefundPending); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.L.WithFields(logrus.Fields{"refund_id": refundID, "status": to, "actor": actor}).Info("[REFUND] reviewed")
	return out, nil
}

func ownsRefund(r *ordermodel.Refund, actor uint64) bool {
	if r.MerchantID == nil {
		return actor == 0
	}
	return *r.MerchantID == actor
}

func reviewerName(actor uint64) string {
	if actor == 0 {
		return "platform"
	}
	return fmt.Sprintf("merchant:%d", actor)
}

// ProcessRefund 链上退款完成：订单置为 REFUNDED，按退款比例冲回手续费，应付手续费不低于 0
func (s *RefundService) ProcessRefund(ctx context.Context, refundID uint64, refundTxHash string) (*ordermodel.Refund, error) {
	refundTxHash = strings.TrimSpace(refundTxHash)
	if refundTxHash == "" {
		return nil, constant.ErrInvalidParams
	}
	var out *ordermodel.Refund
	err := s.store.Transaction(ctx, func(tx repo.Store) error {
		// 1) 锁退款单
		r, err := tx.Refunds().GetForUpdate(ctx, refundID)
		if err != nil {
			return fmt.Errorf("lock refund %d: %w", refundID, err)
		}
		if r == nil {
			return constant.ErrRefundNotFound
		}
		if r.Status != ordermodel.RefundApproved {
			return constant.ErrRefundStatusInvalid
		}
		now := s.opts.now()

		// 2) 订单置为 REFUNDED
		o, err := tx.Orders().GetForUpdate(ctx, r.OrderID)
		if err != nil {
			return fmt.Errorf("lock order %d: %w", r.OrderID, err)
		}
		if o == nil {
			return constant.ErrOrderNotFound
		}
		if o.Status != ordermodel.StatusRefunded {
			if err := tx.Orders().Transition(ctx, o.OrderID, ordermodel.StatusChange{
				From: o.Status,
				To:   ordermodel.StatusRefunded,
				At:   now,
			}); err != nil {
				return err
			}
		}

		// 3) 冲回手续费
		reversed := decimal.Zero
		if o.HasMerchant() && o.FeeAmount != nil {
			reversed = settlement.ProportionalReversal(r.Amount, o.Amount, *o.FeeAmount)
			if reversed.IsPositive() {
				m, err := tx.Merchants().GetForUpdate(ctx, *o.MerchantID)
				if err != nil {
					return fmt.Errorf("lock merchant %d: %w", *o.MerchantID, err)
				}
				if m == nil {
					return constant.ErrMerchantNotFound
				}
				m.FeesDue = settlement.SubFloorZero(m.FeesDue, reversed)
				if err := tx.Merchants().SaveCounters(ctx, m); err != nil {
					return fmt.Errorf("save merchant %d counters: %w", m.MerchantID, err)
				}
			}
		}

		// 4) 退款单完结
		r.Status = ordermodel.RefundProcessed
		r.RefundTxHash = refundTxHash
		r.FeeReversed = reversed
		r.ProcessedAt = &now
		r.UpdatedAt = now
		if err := tx.Refunds().UpdateStatus(ctx, r, ordermodel.RefundApproved); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.L.WithFields(logrus.Fields{
		"refund_id":    out.ID,
		"order_id":     out.OrderID,
		"tx_hash":      refundTxHash,
		"fee_reversed": out.FeeReversed.String(),
	}).Info("[REFUND] processed")
	if out.MerchantID != nil {
		s.publisher.Publish(ctx, *out.MerchantID, event.RefundProcessed, refundEventData(out))
	}
	return out, nil
}

// GetRefund 不存在时返回 ErrRefundNotFound
func (s *RefundService) GetRefund(ctx context.Context, refundID uint64) (*ordermodel.Refund, error) {
	r, err := s.store.Refunds().Get(ctx, refundID)
	if err != nil {
		return nil, fmt.Errorf("load refund %d: %w", refundID, err)
	}
	if r == nil {
		return nil, constant.ErrRefundNotFound
	}
	return r, nil
}

// ListRefunds 订单下全部退款单
func (s *RefundService) ListRefunds(ctx context.Context, orderID uint64) ([]ordermodel.Refund, error) {
	o, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}
	if o == nil {
		return nil, constant.ErrOrderNotFound
	}
	return s.store.Refunds().ListByOrder(ctx, orderID)
}
