package constant

// ErrorInfo 错误信息结构
type ErrorInfo struct {
	CN string `json:"cn"` // 中文错误信息
	EN string `json:"en"` // 英文错误信息
}

// ErrorMessages 错误信息映射
var ErrorMessages = map[int]ErrorInfo{
	// 系统错误
	CodeSuccess:            {"操作成功", "Success"},
	CodeSystemError:        {"系统错误", "System error"},
	CodeDatabaseError:      {"数据库错误", "Database error"},
	CodeRedisError:         {"缓存服务错误", "Redis error"},
	CodeInternalError:      {"内部服务错误", "Internal error"},
	CodeServiceUnavailable: {"服务暂时不可用", "Service unavailable"},
	CodeTimeout:            {"请求超时", "Request timeout"},
	CodeRateLimit:          {"请求过于频繁", "Rate limit exceeded"},

	// 参数错误
	CodeInvalidParams:     {"参数错误", "Invalid parameters"},
	CodeMissingParams:     {"缺少必要参数", "Missing parameters"},
	CodeParamsFormatError: {"参数格式错误", "Parameter format error"},
	CodeParamsRangeError:  {"参数超出范围", "Parameter out of range"},

	// 认证授权
	CodeUnauthorized:   {"未授权访问", "Unauthorized"},
	CodeSignatureError: {"签名验证失败", "Signature verification failed"},
	CodeAccessDenied:   {"无权操作该资源", "Access denied"},

	// 商户
	CodeMerchantNotFound:     {"商户不存在", "Merchant not found"},
	CodeMerchantSuspended:    {"商户已暂停", "Merchant suspended"},
	CodeMerchantLimitReached: {"免费套餐额度已用完", "Plan limit reached, upgrade required"},
	CodeWalletNotFound:       {"商户未配置该链收款地址", "No active wallet for chain"},

	// 订单
	CodeOrderNotFound:      {"订单不存在", "Order not found"},
	CodeOrderStatusInvalid: {"订单状态无效", "Order status invalid"},
	CodeOrderAmountInvalid: {"订单金额无效", "Order amount invalid"},
	CodeOrderExpired:       {"订单已过期", "Order expired"},
	CodeTxHashConflict:     {"交易哈希已关联其他订单", "Transaction hash belongs to another order"},

	// 链
	CodeChainNotSupported: {"不支持的链", "Chain not supported"},
	CodeChainUnavailable:  {"链节点不可用", "Chain node unavailable"},

	// 退款
	CodeRefundNotFound:       {"退款单不存在", "Refund not found"},
	CodeRefundStatusInvalid:  {"退款单状态无效", "Refund status invalid"},
	CodeRefundAmountExceeded: {"退款金额超过可退金额", "Refund amount exceeds refundable amount"},
	CodeRefundWindowClosed:   {"已超过退款期限", "Refund window closed"},
	CodeRefundOrderInvalid:   {"订单状态不允许退款", "Order is not refundable"},

	// Webhook
	CodeWebhookNotConfigured: {"未配置 webhook", "Webhook not configured"},
	CodeWebhookLogNotFound:   {"webhook 记录不存在", "Webhook log not found"},
}
