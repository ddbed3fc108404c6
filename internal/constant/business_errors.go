package constant

// 业务级错误码 (2xxx)

// 商户相关错误码
const (
	CodeMerchantNotFound     = 2000 // 商户不存在或未找到，请检查商户编号是否正确
	CodeMerchantSuspended    = 2001 // 商户已被暂停，无法创建或确认订单
	CodeMerchantLimitReached = 2003 // 免费套餐主网额度已用完，需要升级套餐
	CodeWalletNotFound       = 2004 // 商户在该链上没有启用的收款地址
)

// 订单相关错误码
const (
	CodeOrderNotFound      = 2100 // 订单不存在，请检查订单号是否正确
	CodeOrderStatusInvalid = 2102 // 订单状态无效，无法进行当前操作
	CodeOrderAmountInvalid = 2103 // 订单金额无效，请检查金额格式和范围
	CodeOrderExpired       = 2104 // 订单已过期，请重新创建订单
	CodeTxHashConflict     = 2108 // 交易哈希已关联到其他订单
)

// 链相关错误码
const (
	CodeChainNotSupported = 2200 // 不支持的链
	CodeChainUnavailable  = 2201 // 链节点暂时不可用
)

// 退款相关错误码
const (
	CodeRefundNotFound       = 2400 // 退款单不存在
	CodeRefundStatusInvalid  = 2401 // 退款单状态不允许当前操作
	CodeRefundAmountExceeded = 2402 // 退款金额超过可退金额
	CodeRefundWindowClosed   = 2403 // 订单已超过可退款期限
	CodeRefundOrderInvalid   = 2404 // 订单状态不允许退款
)

// Webhook 相关错误码
const (
	CodeWebhookNotConfigured = 2500 // 商户未配置 webhook 地址或密钥
	CodeWebhookLogNotFound   = 2501 // webhook 投递记录不存在
)

// 业务错误变量，配合 errors.Is 使用
var (
	ErrMerchantNotFound     = NewError(CodeMerchantNotFound)
	ErrMerchantSuspended    = NewError(CodeMerchantSuspended)
	ErrMerchantLimitReached = NewError(CodeMerchantLimitReached)
	ErrWalletNotFound       = NewError(CodeWalletNotFound)
	ErrOrderNotFound        = NewError(CodeOrderNotFound)
	ErrOrderStatusInvalid   = NewError(CodeOrderStatusInvalid)
	ErrOrderAmountInvalid   = NewError(CodeOrderAmountInvalid)
	ErrOrderExpired         = NewError(CodeOrderExpired)
	ErrTxHashConflict       = NewError(CodeTxHashConflict)
	ErrChainNotSupported    = NewError(CodeChainNotSupported)
	ErrRefundNotFound       = NewError(CodeRefundNotFound)
	ErrRefundStatusInvalid  = NewError(CodeRefundStatusInvalid)
	ErrRefundAmountExceeded = NewError(CodeRefundAmountExceeded)
	ErrRefundWindowClosed   = NewError(CodeRefundWindowClosed)
	ErrRefundOrderInvalid   = NewError(CodeRefundOrderInvalid)
	ErrAccessDenied         = NewError(CodeAccessDenied)
	ErrInvalidParams        = NewError(CodeInvalidParams)
	ErrWebhookNotConfigured = NewError(CodeWebhookNotConfigured)
	ErrWebhookLogNotFound   = NewError(CodeWebhookLogNotFound)
)
