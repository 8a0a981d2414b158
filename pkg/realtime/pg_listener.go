package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PGListener relays Postgres LISTEN/NOTIFY messages on one channel into a Broker.
type PGListener struct {
	dsn          string
	channel      string
	broker       *Broker
	logger       *zap.Logger
	minReconnect time.Duration
	maxReconnect time.Duration
	pingInterval time.Duration
}

// NewPGListener builds a listener for channel using the lib/pq connection string dsn.
func NewPGListener(dsn, channel string, broker *Broker, logger *zap.Logger) *PGListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PGListener{
		dsn:          dsn,
		channel:      channel,
		broker:       broker,
		logger:       logger,
		minReconnect: 10 * time.Second,
		maxReconnect: time.Minute,
		pingInterval: 90 * time.Second,
	}
}

// Run blocks until ctx is cancelled, forwarding notifications to the broker.
func (l *PGListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.dsn, l.minReconnect, l.maxReconnect, l.reportProblem)
	defer listener.Close() //nolint:errcheck

	if err := listener.Listen(l.channel); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	l.logger.Info("change feed listening", zap.String("channel", l.channel))

	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("change feed stopped", zap.String("channel", l.channel))
			return nil
		case n := <-listener.Notify:
			l.dispatch(n)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					l.logger.Warn("change feed ping failed", zap.Error(err))
				}
			}()
		}
	}
}

// dispatch converts a notification into a broker event. A nil notification follows a reconnect,
// during which notifications may have been lost, so subscribers are told to resync.
func (l *PGListener) dispatch(n *pq.Notification) {
	if n == nil {
		l.broker.Publish(Event{Channel: l.channel, Resync: true})
		return
	}
	l.broker.Publish(Event{Channel: n.Channel, Payload: n.Extra})
}

func (l *PGListener) reportProblem(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
		l.logger.Warn("change feed connection problem", zap.String("channel", l.channel), zap.Error(err))
	case pq.ListenerEventReconnected:
		l.logger.Info("change feed reconnected", zap.String("channel", l.channel))
	}
}
