package notify

import (
	"fmt"
	"sort"
	"strings"

	"stablepay-api/internal/utils/timeutil"
)

// Alerter 运维告警出口
type Alerter interface {
	Alert(title string, fields map[string]string)
}

// NopAlerter 未配置告警渠道时使用
type NopAlerter struct{}

func (NopAlerter) Alert(string, map[string]string) {}

func formatAlert(title string, fields map[string]string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("*%s*\n", escapeMarkdown(title)))
	sb.WriteString(fmt.Sprintf("*时间:* %s\n", timeutil.FormatISO8601(timeutil.NowUTC())))
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("%s: %s\n", escapeMarkdown(k), escapeMarkdown(fields[k])))
	}
	return sb.String()
}

func escapeMarkdown(s string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"]", "\\]",
		"`", "\\`",
	)
	return replacer.Replace(s)
}
