package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	mainmodel "stablepay-api/internal/model/main"
)

const maxResponseBytes = 2048

// Result 一次 HTTP 投递的结果
type Result struct {
	StatusCode int
	Body       string
	Err        error
}

// OK 传输成功且返回 2xx
func (r Result) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Sender 负责把已签名的报文 POST 到商户地址
type Sender struct {
	client *http.Client
}

func NewSender(timeout time.Duration) *Sender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Sender{client: &http.Client{Timeout: timeout}}
}

// Post 报文与签名都来自日志，重试时原样重发
func (s *Sender) Post(ctx context.Context, l *mainmodel.WebhookLog) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.URL, bytes.NewReader([]byte(l.Payload)))
	if err != nil {
		return Result{Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "StablePay-Webhook/1.0")
	req.Header.Set("X-Signature", l.Signature)
	req.Header.Set("X-Webhook-Event", l.Event)
	req.Header.Set("X-Webhook-Id", strconv.FormatUint(l.ID, 10))
	req.Header.Set("X-Webhook-Attempt", strconv.Itoa(l.Attempts))

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	res := Result{StatusCode: resp.StatusCode, Body: string(body)}
	if !res.OK() {
		res.Err = fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return res
}
