package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"stablepay-api/internal/chain"
	"stablepay-api/internal/config"
	"stablepay-api/internal/dal"
	"stablepay-api/internal/dao"
	"stablepay-api/internal/handler"
	"stablepay-api/internal/idgen"
	"stablepay-api/internal/logger"
	"stablepay-api/internal/middleware"
	"stablepay-api/internal/mq"
	"stablepay-api/internal/notify"
	"stablepay-api/internal/ratelimit"
	"stablepay-api/internal/repo"
	"stablepay-api/internal/repo/memory"
	"stablepay-api/internal/scanner"
	"stablepay-api/internal/service"
	"stablepay-api/internal/settlement"
	"stablepay-api/internal/utils"
	"stablepay-api/internal/webhook"
)

func main() {
	// load config env
	config.Init()
	logger.Init(config.C.Log.Dir, config.C.Log.Level)

	// idgen
	idgen.InitFromEnv()
	go idgen.CheckSystemClock()
	ids := idgen.Snowflake{}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// init infra
	store := initStore()
	alerter := notify.NewAlerter(config.C.Notify.TelegramChatID)

	var (
		limitStore ratelimit.Store = ratelimit.NewMemoryStore()
		locker     scanner.Locker
	)
	if config.C.Redis.Enabled {
		dal.InitRedis()
		defer dal.CloseRedis()
		limitStore = ratelimit.NewRedisStore(dal.RedisClient)
		locker = scanner.NewRedisLocker(dal.RedisClient)
	}

	var queue webhook.Queue = webhook.NewLocalQueue(config.C.Webhook.QueueSize, config.C.Webhook.Workers)
	if config.C.RabbitMQ.Enabled {
		if err := dal.InitRabbitMQ(); err != nil {
			log.Fatalf("init rabbitmq failed: %v", err)
		}
		defer dal.CloseRabbitMQ()
		queue = mq.NewWebhookQueue(config.C.RabbitMQ, config.C.Webhook.Workers)
	}

	// domain services
	tiers, err := settlement.NewTierTableFromConfig(config.C.Fee)
	if err != nil {
		log.Fatalf("fee tiers: %v", err)
	}
	chains := chain.NewRegistryFromConfig(config.C.Chains, config.C.Order.PlatformAddresses)
	svcOpts := []service.Option{service.WithConfig(config.C)}

	wh := config.C.Webhook
	dispatcher := webhook.NewDispatcher(store, ids,
		webhook.NewSender(time.Duration(wh.TimeoutSec)*time.Second),
		queue,
		webhook.WithAlerter(alerter),
		webhook.WithLease(time.Duration(wh.LeaseSec)*time.Second),
		webhook.WithBatch(wh.BatchSize, wh.Workers),
		webhook.WithRetryInterval(time.Duration(wh.RetryIntervalSec)*time.Second),
	)
	dispatcher.Start(ctx)

	orders := service.NewOrderService(store, ids, chains, tiers, dispatcher, svcOpts...)
	tierSvc := service.NewTierService(store, tiers, svcOpts...)
	refunds := service.NewRefundService(store, ids, dispatcher, svcOpts...)

	// background loops
	go runExpirySweep(ctx, orders)
	scanners := startScanners(ctx, chains, store, ids, orders, locker, alerter)

	// http server
	if config.C.Server.Mode != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	// 设置可信代理 IP（如本地或内网）
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "192.168.0.0/16"})
	r.Use(middleware.Recover(), middleware.TraceAudit(), middleware.RequestLogger())
	r.GET("/health", func(c *gin.Context) {
		var chainHealth []scanner.ChainHealth
		if scanners != nil {
			chainHealth = scanners.Health()
		}
		c.JSON(http.StatusOK, utils.Success(gin.H{"status": "ok", "chains": chainHealth}))
	})

	limiter := ratelimit.NewLimiter(limitStore,
		ratelimit.NewPlanResolver(store.Merchants(), config.C.Plan.RateLimits, config.C.Plan.AnonymousRateLimit),
		config.C.Plan.AnonymousRateLimit)
	v1 := r.Group("/api/v1",
		middleware.AuthHMAC(config.C.Security.HMACSecret, middleware.DefaultSignWindow),
		middleware.RateLimit(limiter),
	)
	handler.Handlers{
		Orders:   handler.NewOrderHandler(orders, tierSvc),
		Refunds:  handler.NewRefundHandler(orders, refunds),
		Webhooks: handler.NewWebhookHandler(dispatcher),
	}.Register(v1)

	srv := &http.Server{Addr: ":" + config.C.Server.Port, Handler: r}
	go func() {
		log.Printf("listening %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	logger.L.Info("[SERVER] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(config.C.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L.Errorf("[SERVER] shutdown: %v", err)
	}
}

func initStore() repo.Store {
	if config.C.Storage.Driver == "memory" {
		log.Println("[STORE] using in-memory store, data is lost on restart")
		return memory.NewStore()
	}
	dal.InitMainDB()
	if config.C.MysqlMain.AutoMigrate {
		if err := dao.AutoMigrate(dal.MainDB); err != nil {
			log.Fatalf("auto migrate failed: %v", err)
		}
	}
	return dao.NewStore(dal.MainDB)
}

// startScanners 节点连不上的链只记录错误，不影响其他链
func startScanners(ctx context.Context, chains *chain.Registry, store repo.Store, ids idgen.Generator,
	orders *service.OrderService, locker scanner.Locker, alerter notify.Alerter) *scanner.Manager {
	var scanners []*scanner.Scanner
	for _, c := range chains.All() {
		if c.RpcUrl == "" || c.TokenContract == "" {
			logger.L.WithField("chain", c.Name).Warn("[SCANNER] rpcUrl or tokenContract missing, chain not scanned")
			continue
		}
		var client *chain.EVMClient
		err := utils.DoWithRetry(ctx, "dial "+c.Name, 3, 2*time.Second, func() error {
			var err error
			client, err = chain.DialEVM(ctx, c)
			return err
		})
		if err != nil {
			logger.L.WithField("chain", c.Name).Errorf("[SCANNER] dial failed: %v", err)
			continue
		}
		go func() {
			<-ctx.Done()
			client.Close()
		}()
		scanners = append(scanners, scanner.New(c, client, store, ids, orders,
			scanner.WithTolerance(config.C.Order.Tolerance())))
	}
	if len(scanners) == 0 {
		return nil
	}
	mgr := scanner.NewManager(locker, alerter, scanners...)
	go func() {
		if err := mgr.Run(ctx); err != nil {
			logger.L.Errorf("[SCANNER] manager stopped: %v", err)
		}
	}()
	return mgr
}

func runExpirySweep(ctx context.Context, orders *service.OrderService) {
	interval := time.Duration(config.C.Order.ExpirySweepSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx, orders)
		}
	}
}

func sweepOnce(ctx context.Context, orders *service.OrderService) {
	defer func() {
		if r := recover(); r != nil {
			logger.L.Errorf("[ORDER] expiry sweep panic: %v", r)
		}
	}()
	n, err := orders.ExpireDue(ctx, config.C.Order.ExpiryBatch)
	if err != nil {
		logger.L.Errorf("[ORDER] expiry sweep: %v", err)
		return
	}
	if n > 0 {
		logger.L.Infof("[ORDER] expired %d orders", n)
	}
}
