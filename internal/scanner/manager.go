package scanner

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"stablepay-api/internal/logger"
	"stablepay-api/internal/notify"
	rediskey "stablepay-api/internal/types/redis-key"
	"stablepay-api/internal/utils/timeutil"
)

// alertAfterFailures 连续失败达到该次数时告警一次
const alertAfterFailures = 5

// Manager 每条链一个独立循环，单链失败不影响其他链
type Manager struct {
	scanners []*Scanner
	locker   Locker
	alerter  notify.Alerter
	health   *healthBook
}

func NewManager(locker Locker, alerter notify.Alerter, scanners ...*Scanner) *Manager {
	if alerter == nil {
		alerter = notify.NopAlerter{}
	}
	return &Manager{scanners: scanners, locker: locker, alerter: alerter, health: newHealthBook(0.2)}
}

// Health 各链最近的扫块健康度
func (m *Manager) Health() []ChainHealth {
	return m.health.snapshot()
}

// Run 阻塞直到 ctx 结束
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range m.scanners {
		s := s
		g.Go(func() error {
			m.loop(ctx, s)
			return nil
		})
	}
	return g.Wait()
}

func (m *Manager) loop(ctx context.Context, s *Scanner) {
	interval := s.chain.PollInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	s.log().Infof("[SCANNER] started, window=%d interval=%s confirms=%d", s.chain.WindowSize, interval, s.chain.RequiredConfirms)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		m.observe(s, m.tick(ctx, s, interval))
		select {
		case <-ctx.Done():
			s.log().Info("[SCANNER] stopped")
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) observe(s *Scanner, err error) {
	h := m.health.record(s.chain.Name, err, timeutil.NowUTC())
	if h.Failures == alertAfterFailures {
		m.alerter.Alert("扫块连续失败", map[string]string{
			"chain":        s.chain.Name,
			"failures":     strconv.Itoa(h.Failures),
			"success_rate": strconv.FormatFloat(h.SuccessRate, 'f', 1, 64),
			"error":        h.LastError,
		})
	}
}

// tick 未抢到锁不算失败
func (m *Manager) tick(ctx context.Context, s *Scanner, interval time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log().Errorf("[SCANNER] panic: %v", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if m.locker != nil {
		release, acquired, lockErr := m.locker.Acquire(ctx, rediskey.ScanLock(s.chain.Name), 2*interval)
		if lockErr != nil {
			// 锁服务不可用时照常扫描，重复扫描由 tx_hash 去重兜底
			s.log().Warnf("[SCANNER] lock unavailable: %v", lockErr)
		} else if !acquired {
			return nil
		} else {
			defer release()
		}
	}

	res, err := s.ScanOnce(ctx)
	if err != nil {
		logger.L.WithField("chain", s.chain.Name).Errorf("[SCANNER] tick aborted at [%d,%d]: %v", res.From, res.To, err)
		return err
	}
	if !res.Skipped && (res.Events > 0 || res.Promoted > 0) {
		s.log().Infof("[SCANNER] scanned [%d,%d] events=%d matched=%d promoted=%d",
			res.From, res.To, res.Events, res.Matched, res.Promoted)
	}
	return nil
}
