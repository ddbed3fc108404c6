package service

import (
	"stablepay-api/internal/dto"
	ordermodel "stablepay-api/internal/model/order"
)

func orderEventData(o *ordermodel.Order) dto.OrderEventData {
	return dto.OrderEventData{
		OrderID:        o.OrderID,
		Amount:         o.Amount,
		Chain:          o.Chain,
		Token:          o.Token,
		PaymentAddress: o.PaymentAddress,
		Status:         string(o.Status),
		FeePercent:     o.FeePercent,
		FeeAmount:      o.FeeAmount,
		TxHash:         o.TxHash,
		ExpiresAt:      o.ExpiresAt,
	}
}

func refundEventData(r *ordermodel.Refund) dto.RefundEventData {
	return dto.RefundEventData{
		RefundID:     r.ID,
		OrderID:      r.OrderID,
		Amount:       r.Amount,
		Status:       string(r.Status),
		Reason:       r.Reason,
		RefundTxHash: r.RefundTxHash,
	}
}
