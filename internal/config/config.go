package config

import (
	"flag"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type ServerCfg struct {
	Port               string `mapstructure:"port"`
	Mode               string `mapstructure:"mode"`
	ShutdownTimeoutSec int    `mapstructure:"shutdownTimeoutSec"`
}

type StorageCfg struct {
	Driver string `mapstructure:"driver"` // mysql | memory
}

type MysqlCfg struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Database     string `mapstructure:"database"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Charset      string `mapstructure:"charset"`
	MaxIdleConns int    `mapstructure:"maxIdleConns"`
	MaxOpenConns int    `mapstructure:"maxOpenConns"`
	SlowSqlMs    int    `mapstructure:"slowSqlMs"`
	AutoMigrate  bool   `mapstructure:"autoMigrate"`
}

type RabbitCfg struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	VirtualHost   string `mapstructure:"virtualHost"`
	PrefetchCount int    `mapstructure:"prefetchCount"`
	Exchange      string `mapstructure:"exchange"`
	Queue         string `mapstructure:"queue"`
}

type RedisCfg struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type SecurityCfg struct {
	HMACSecret string `mapstructure:"hmacSecret"`
}

type OrderCfg struct {
	DefaultExpiryMinutes int               `mapstructure:"defaultExpiryMinutes"`
	MatchTolerance       string            `mapstructure:"matchTolerance"`
	ExpirySweepSec       int               `mapstructure:"expirySweepSec"`
	ExpiryBatch          int               `mapstructure:"expiryBatch"`
	PlatformAddresses    map[string]string `mapstructure:"platformAddresses"` // chain -> 平台默认收款地址
}

// Tolerance 金额匹配容差
func (o OrderCfg) Tolerance() decimal.Decimal {
	d, err := decimal.NewFromString(o.MatchTolerance)
	if err != nil {
		return decimal.RequireFromString("0.01")
	}
	return d
}

type FeeTierCfg struct {
	Name      string `mapstructure:"name"`
	Threshold string `mapstructure:"threshold"`
	Percent   string `mapstructure:"percent"`
}

type FeeCfg struct {
	MinCustomPercent string       `mapstructure:"minCustomPercent"`
	Tiers            []FeeTierCfg `mapstructure:"tiers"`
}

type PlanCfg struct {
	FreeMainnetVolumeCap string         `mapstructure:"freeMainnetVolumeCap"`
	FreeMainnetTxCap     int64          `mapstructure:"freeMainnetTxCap"`
	BillingCycleDays     int            `mapstructure:"billingCycleDays"`
	RateLimits           map[string]int `mapstructure:"rateLimits"` // plan -> 每小时请求数
	AnonymousRateLimit   int            `mapstructure:"anonymousRateLimit"`
}

type RefundCfg struct {
	MaxAgeDays           int    `mapstructure:"maxAgeDays"`
	AutoApproveThreshold string `mapstructure:"autoApproveThreshold"`
}

type WebhookCfg struct {
	TimeoutSec       int `mapstructure:"timeoutSec"`
	Workers          int `mapstructure:"workers"`
	QueueSize        int `mapstructure:"queueSize"`
	RetryIntervalSec int `mapstructure:"retryIntervalSec"`
	BatchSize        int `mapstructure:"batchSize"`
	LeaseSec         int `mapstructure:"leaseSec"`
}

type ChainCfg struct {
	Name             string `mapstructure:"name"`
	Network          string `mapstructure:"network"` // mainnet | testnet
	Token            string `mapstructure:"token"`
	RpcUrl           string `mapstructure:"rpcUrl"`
	TokenContract    string `mapstructure:"tokenContract"`
	Decimals         int32  `mapstructure:"decimals"`
	RequiredConfirms int64  `mapstructure:"requiredConfirms"`
	WindowSize       int64  `mapstructure:"windowSize"`
	InitialLookback  int64  `mapstructure:"initialLookback"`
	PollIntervalSec  int    `mapstructure:"pollIntervalSec"`
}

type NotifyCfg struct {
	TelegramChatID string `mapstructure:"telegramChatId"`
}

type LogCfg struct {
	Dir   string `mapstructure:"dir"`
	Level string `mapstructure:"level"`
}

type Root struct {
	Server    ServerCfg   `mapstructure:"server"`
	Storage   StorageCfg  `mapstructure:"storage"`
	MysqlMain MysqlCfg    `mapstructure:"mysql_main"`
	RabbitMQ  RabbitCfg   `mapstructure:"rabbitmq"`
	Redis     RedisCfg    `mapstructure:"redis"`
	Security  SecurityCfg `mapstructure:"security"`
	Order     OrderCfg    `mapstructure:"order"`
	Fee       FeeCfg      `mapstructure:"fee"`
	Plan      PlanCfg     `mapstructure:"plan"`
	Refund    RefundCfg   `mapstructure:"refund"`
	Webhook   WebhookCfg  `mapstructure:"webhook"`
	Chains    []ChainCfg  `mapstructure:"chains"`
	Notify    NotifyCfg   `mapstructure:"notify"`
	Log       LogCfg      `mapstructure:"log"`
}

var C = Default()

// Default 默认配置，YAML 在此基础上覆盖
func Default() Root {
	return Root{
		Server:  ServerCfg{Port: "8080", Mode: "debug", ShutdownTimeoutSec: 10},
		Storage: StorageCfg{Driver: "mysql"},
		MysqlMain: MysqlCfg{
			Host: "127.0.0.1", Port: 3306, Database: "stablepay", Username: "root",
			Charset: "utf8mb4", MaxIdleConns: 10, MaxOpenConns: 50, SlowSqlMs: 200,
		},
		RabbitMQ: RabbitCfg{
			Host: "127.0.0.1", Port: 5672, Username: "guest", Password: "guest",
			PrefetchCount: 16, Exchange: "webhook_events", Queue: "webhook_delivery",
		},
		Redis: RedisCfg{Addr: "127.0.0.1:6379", Prefix: "stablepay"},
		Order: OrderCfg{
			DefaultExpiryMinutes: 30,
			MatchTolerance:       "0.01",
			ExpirySweepSec:       60,
			ExpiryBatch:          200,
		},
		Fee: FeeCfg{
			MinCustomPercent: "0.1",
			Tiers: []FeeTierCfg{
				{Name: "starter", Threshold: "0", Percent: "0.5"},
				{Name: "growth", Threshold: "10000", Percent: "0.4"},
				{Name: "scale", Threshold: "100000", Percent: "0.3"},
				{Name: "enterprise", Threshold: "1000000", Percent: "0.2"},
			},
		},
		Plan: PlanCfg{
			FreeMainnetVolumeCap: "1000",
			FreeMainnetTxCap:     50,
			BillingCycleDays:     30,
			RateLimits:           map[string]int{"free": 100, "starter": 1000, "pro": 5000, "enterprise": 20000},
			AnonymousRateLimit:   60,
		},
		Refund:  RefundCfg{MaxAgeDays: 90, AutoApproveThreshold: "100"},
		Webhook: WebhookCfg{TimeoutSec: 30, Workers: 8, QueueSize: 1024, RetryIntervalSec: 30, BatchSize: 100, LeaseSec: 90},
		Log:     LogCfg{Dir: "./logs", Level: "info"},
	}
}

func Init() {
	env := flag.String("env", "dev", "config env: dev|prod")
	flag.Parse()

	// 链节点 RPC、Telegram token 等敏感信息放在 .env
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile("config/config." + *env + ".yaml")
	v.SetEnvPrefix("STABLEPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("read config file failed: %v", err)
	}
	if err := v.Unmarshal(&C); err != nil {
		log.Fatalf("unmarshal config failed: %v", err)
	}

	// sane defaults
	def := Default()
	if strings.TrimSpace(C.Server.Port) == "" {
		C.Server.Port = def.Server.Port
	}
	if C.Order.DefaultExpiryMinutes <= 0 {
		C.Order.DefaultExpiryMinutes = def.Order.DefaultExpiryMinutes
	}
	if len(C.Fee.Tiers) == 0 {
		C.Fee.Tiers = def.Fee.Tiers
	}
	if C.Plan.BillingCycleDays <= 0 {
		C.Plan.BillingCycleDays = def.Plan.BillingCycleDays
	}
	if C.Webhook.TimeoutSec <= 0 {
		C.Webhook.TimeoutSec = def.Webhook.TimeoutSec
	}
	if C.Webhook.Workers <= 0 {
		C.Webhook.Workers = def.Webhook.Workers
	}
	if C.Webhook.BatchSize <= 0 {
		C.Webhook.BatchSize = def.Webhook.BatchSize
	}
	for i := range C.Chains {
		ch := &C.Chains[i]
		if ch.WindowSize <= 0 {
			ch.WindowSize = 500
		}
		if ch.PollIntervalSec <= 0 {
			ch.PollIntervalSec = 15
		}
		if ch.RequiredConfirms <= 0 {
			ch.RequiredConfirms = 12
		}
		if ch.Decimals <= 0 {
			ch.Decimals = 6
		}
	}
}
