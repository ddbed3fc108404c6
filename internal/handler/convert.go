package handler

import (
	"stablepay-api/internal/dto"
	mainmodel "stablepay-api/internal/model/main"
	ordermodel "stablepay-api/internal/model/order"
	"stablepay-api/internal/service"
)

func toOrderVO(o *ordermodel.Order) dto.OrderVO {
	return dto.OrderVO{
		OrderID:        o.OrderID,
		MerchantID:     o.MerchantID,
		Amount:         o.Amount,
		Chain:          o.Chain,
		Token:          o.Token,
		PaymentAddress: o.PaymentAddress,
		Status:         string(o.Status),
		FeePercent:     o.FeePercent,
		FeeAmount:      o.FeeAmount,
		TxHash:         o.TxHash,
		ExpiresAt:      o.ExpiresAt,
		PaidAt:         o.PaidAt,
		ConfirmedAt:    o.ConfirmedAt,
		CreatedAt:      o.CreatedAt,
	}
}

func toRefundVO(r *ordermodel.Refund) dto.RefundVO {
	return dto.RefundVO{
		RefundID:     r.ID,
		OrderID:      r.OrderID,
		Amount:       r.Amount,
		Reason:       r.Reason,
		Status:       string(r.Status),
		RefundTxHash: r.RefundTxHash,
		FeeReversed:  r.FeeReversed,
		ProcessedAt:  r.ProcessedAt,
		CreatedAt:    r.CreatedAt,
	}
}

func toWebhookLogVO(l *mainmodel.WebhookLog) dto.WebhookLogVO {
	return dto.WebhookLogVO{
		ID:          l.ID,
		Event:       l.Event,
		URL:         l.URL,
		HTTPStatus:  l.HTTPStatus,
		Attempts:    l.Attempts,
		LastError:   l.LastError,
		DeliveredAt: l.DeliveredAt,
		NextRetryAt: l.NextRetryAt,
	}
}

func toTierCheckResp(r *service.TierCheckResult) dto.TierCheckResp {
	return dto.TierCheckResp{
		Allowed:         r.Allowed,
		Reason:          r.Reason,
		Suspended:       r.Suspended,
		UpgradeRequired: r.UpgradeRequired,
		FeePercent:      r.FeePercent,
		FeeAmount:       r.FeeAmount,
		VolumeTier:      r.VolumeTier,
	}
}
