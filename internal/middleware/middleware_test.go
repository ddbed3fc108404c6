package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"stablepay-api/internal/logger"
	"stablepay-api/internal/ratelimit"
)

const secret = "internal-secret"

func init() { gin.SetMode(gin.TestMode) }

func signedRequest(method, path, body, merchant string, ts time.Time) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	tsStr := strconv.FormatInt(ts.UnixMilli(), 10)
	req.Header.Set(HeaderTimestamp, tsStr)
	if merchant != "" {
		req.Header.Set(HeaderMerchantID, merchant)
	}
	req.Header.Set(HeaderSignature, SignRequest(secret, tsStr, merchant, []byte(body)))
	return req
}

func authRouter() *gin.Engine {
	r := gin.New()
	r.Use(AuthHMAC(secret, time.Minute))
	r.POST("/echo", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"merchant": MerchantID(c)})
	})
	return r
}

func TestAuthHMACAcceptsSignedRequest(t *testing.T) {
	w := httptest.NewRecorder()
	authRouter().ServeHTTP(w, signedRequest(http.MethodPost, "/echo", `{"a":1}`, "42", time.Now()))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"merchant":42`) {
		t.Fatalf("merchant id not propagated: %s", w.Body.String())
	}
}

func TestAuthHMACRejects(t *testing.T) {
	cases := []struct {
		name string
		req  func() *http.Request
	}{
		{"missing signature", func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("{}"))
		}},
		{"tampered body", func() *http.Request {
			req := signedRequest(http.MethodPost, "/echo", `{"a":1}`, "", time.Now())
			req.Body = http.NoBody
			return req
		}},
		{"forged merchant", func() *http.Request {
			req := signedRequest(http.MethodPost, "/echo", `{}`, "42", time.Now())
			req.Header.Set(HeaderMerchantID, "43")
			return req
		}},
		{"stale timestamp", func() *http.Request {
			return signedRequest(http.MethodPost, "/echo", `{}`, "", time.Now().Add(-10*time.Minute))
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			authRouter().ServeHTTP(w, tc.req())
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestRateLimitHeadersAndRejection(t *testing.T) {
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), nil, 2)
	r := gin.New()
	r.Use(RateLimit(limiter))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.9:5555"
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
		if got := w.Header().Get("X-RateLimit-Remaining"); got != strconv.Itoa(1-i) {
			t.Fatalf("request %d: remaining = %q", i, got)
		}
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" || w.Header().Get("X-RateLimit-Limit") != "2" {
		t.Fatalf("missing rate limit headers: %v", w.Header())
	}

	other := httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.10:5555"
	r.ServeHTTP(other, req)
	if other.Code != http.StatusNoContent {
		t.Fatal("other clients must have their own window")
	}
}

func TestTraceAuditRecordsExchange(t *testing.T) {
	var got *logger.AuditEntry
	r := gin.New()
	r.Use(TraceAuditWith(func(e *logger.AuditEntry) { got = e }))
	r.POST("/echo", func(c *gin.Context) {
		c.String(http.StatusCreated, "trace="+TraceID(c))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("hello")))
	traceID := w.Header().Get(HeaderTraceID)
	if traceID == "" || w.Body.String() != "trace="+traceID {
		t.Fatalf("trace id not exposed: header=%q body=%q", traceID, w.Body.String())
	}
	if got == nil || got.TraceID != traceID || got.RequestBody != "hello" || got.Status != http.StatusCreated {
		t.Fatalf("unexpected audit entry: %+v", got)
	}
	if got.ResponseBody != "trace="+traceID {
		t.Fatalf("response body not captured: %q", got.ResponseBody)
	}
}

func TestRecoverReturnsSystemError(t *testing.T) {
	r := gin.New()
	r.Use(Recover())
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), `"code":1000`) {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}
