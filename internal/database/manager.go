package database

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Pinger — минимальный контракт pgxpool.Pool, используемый менеджером.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LivenessChecker отдаёт текущее состояние подключения к хранилищу.
// Пайплайн верификации проверяет его перед каждой операцией с базой.
type LivenessChecker interface {
	IsLive() bool
}

// Manager владеет состоянием единственного логического подключения к базе.
// Переподключение автоматическое: неудачный connect планирует повтор через
// фиксированный интервал, обработчики запросов никогда не ждут реконнекта.
type Manager struct {
	db             Pinger
	connectTimeout time.Duration
	retryInterval  time.Duration
	logger         *zap.Logger

	live atomic.Bool

	mu           sync.Mutex
	onConnected  func(ctx context.Context)
	retryPending bool
	retryTimer   *time.Timer
	closed       bool
}

// NewManager создаёт менеджер подключения. Начальное состояние — not live.
func NewManager(db Pinger, connectTimeout, retryInterval time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		db:             db,
		connectTimeout: connectTimeout,
		retryInterval:  retryInterval,
		logger:         logger,
	}
}

// OnConnected регистрирует хук, вызываемый при каждом переходе в live.
// Должен быть установлен до первого вызова Connect.
func (m *Manager) OnConnected(hook func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = hook
}

// IsLive — неблокирующее чтение состояния подключения.
// Никогда не инициирует попытку подключения.
func (m *Manager) IsLive() bool {
	return m.live.Load()
}

// Connect идемпотентно устанавливает подключение. Если подключение уже live,
// возвращается сразу. При неудаче состояние остаётся not live, повтор
// планируется через retryInterval, ошибка наружу не отдаётся — для
// вызывающего это отложенный повтор, а не сбой.
func (m *Manager) Connect(ctx context.Context) {
	if m.live.Load() {
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.retryPending = false
	m.mu.Unlock()

	pingCtx, cancel := context.WithTimeout(ctx, m.connectTimeout)
	err := m.db.Ping(pingCtx)
	cancel()

	if err != nil {
		m.live.Store(false)
		m.logger.Error("database connection failed", zap.Error(err),
			zap.Duration("retry_in", m.retryInterval))
		m.scheduleRetry()
		return
	}

	m.live.Store(true)
	m.logger.Info("successfully connected to database")

	m.mu.Lock()
	hook := m.onConnected
	m.mu.Unlock()
	if hook != nil {
		hook(ctx)
	}
}

// scheduleRetry планирует однократный повтор Connect через retryInterval.
// Повторы не накапливаются: пока один запланирован, новые не создаются.
func (m *Manager) scheduleRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.retryPending {
		return
	}
	m.retryPending = true
	m.retryTimer = time.AfterFunc(m.retryInterval, func() {
		m.Connect(context.Background())
	})
}

// Watch периодически проверяет подключение и переводит состояние в not live
// при ошибке ping, сразу же запуская переподключение. Блокирует до отмены ctx;
// запускается горутиной из bootstrap.
func (m *Manager) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !m.live.Load() {
				continue
			}

			pingCtx, cancel := context.WithTimeout(ctx, m.connectTimeout)
			err := m.db.Ping(pingCtx)
			cancel()

			if err != nil {
				m.live.Store(false)
				m.logger.Warn("database disconnected, attempting to reconnect", zap.Error(err))
				m.Connect(ctx)
			}
		}
	}
}

// Close останавливает запланированные повторы подключения.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	if m.retryTimer != nil {
		m.retryTimer.Stop()
	}
	m.live.Store(false)
}
