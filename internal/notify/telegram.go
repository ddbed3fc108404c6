package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"stablepay-api/internal/logger"
)

type TelegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
	Parse  string `json:"parse_mode"`
}

// TelegramAlerter 运维告警，token 从 TELEGRAM_BOT_TOKEN 读取（.env 在 config.Init 中加载）
type TelegramAlerter struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

// NewAlerter chatID 或 token 缺失时返回 NopAlerter
func NewAlerter(chatID string) Alerter {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if chatID == "" || token == "" {
		return NopAlerter{}
	}
	return &TelegramAlerter{
		botToken: token,
		chatID:   chatID,
		apiBase:  "https://api.telegram.org",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramAlerter) send(ctx context.Context, content string) error {
	msg := TelegramMessage{ChatID: t.chatID, Text: content, Parse: "Markdown"}
	body, _ := json.Marshal(msg)
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}
	return nil
}

// Alert 异步发送，失败只记日志
func (t *TelegramAlerter) Alert(title string, fields map[string]string) {
	content := formatAlert(title, fields)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.L.Errorf("[NOTIFY] telegram panic: %v", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := t.send(ctx, content); err != nil {
			logger.L.Warnf("[NOTIFY] Telegram 消息发送失败: %v", err)
		}
	}()
}
