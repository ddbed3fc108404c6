package mainmodel

import "time"

// WebhookLog webhook 投递记录，除投递状态字段外只追加不修改
type WebhookLog struct {
	ID          uint64     `gorm:"column:id;primaryKey" json:"id"`
	MerchantID  uint64     `gorm:"column:m_id;not null;index" json:"merchantId"`
	Event       string     `gorm:"column:event;type:varchar(64);not null" json:"event"`
	Payload     string     `gorm:"column:payload;type:text;not null" json:"payload"`
	Signature   string     `gorm:"column:signature;type:varchar(128);not null" json:"signature"`
	URL         string     `gorm:"column:url;type:varchar(512);not null" json:"url"`
	HTTPStatus  int        `gorm:"column:http_status" json:"httpStatus"`
	Response    string     `gorm:"column:response;type:text" json:"response"`
	LastError   string     `gorm:"column:last_error;type:varchar(512)" json:"lastError"`
	Attempts    int        `gorm:"column:attempts;not null;default:1" json:"attempts"`
	DeliveredAt *time.Time `gorm:"column:delivered_at" json:"deliveredAt"`
	NextRetryAt *time.Time `gorm:"column:next_retry_at;index:idx_webhook_retry" json:"nextRetryAt"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (WebhookLog) TableName() string { return "w_webhook_log" }

// Delivered 已投递成功
func (w *WebhookLog) Delivered() bool { return w.DeliveredAt != nil }

// PermanentlyFailed 重试次数已用尽且未投递成功
func (w *WebhookLog) PermanentlyFailed() bool {
	return w.DeliveredAt == nil && w.NextRetryAt == nil
}
