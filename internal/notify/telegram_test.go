package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFormatAlertSortsAndEscapes(t *testing.T) {
	out := formatAlert("webhook_failed", map[string]string{"b_key": "2", "a": "x*y"})
	if !strings.HasPrefix(out, "*webhook\\_failed*\n") {
		t.Fatalf("title not escaped: %q", out)
	}
	ia, ib := strings.Index(out, "a: x\\*y"), strings.Index(out, "b\\_key: 2")
	if ia < 0 || ib < 0 || ia > ib {
		t.Fatalf("fields not sorted/escaped: %q", out)
	}
}

func TestTelegramSend(t *testing.T) {
	var got TelegramMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := &TelegramAlerter{botToken: "TOKEN", chatID: "-100", apiBase: srv.URL, client: srv.Client()}
	if err := a.send(context.Background(), "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.ChatID != "-100" || got.Text != "hello" || got.Parse != "Markdown" {
		t.Fatalf("unexpected message %+v", got)
	}
}

func TestNewAlerterWithoutConfig(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	if _, ok := NewAlerter("123").(NopAlerter); !ok {
		t.Fatal("expected NopAlerter when token missing")
	}
}
