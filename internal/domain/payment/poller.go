package payment

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Poller periodically queries the gateway for one transaction. It ends on its own when
// the session becomes terminal or the poll deadline passes.
type Poller struct {
	transactionID string
	cancel        context.CancelFunc
	done          chan struct{}
}

// Stop halts polling. The session is left as it is. Stop does not wait.
func (p *Poller) Stop() {
	p.cancel()
}

// Done is closed when the polling goroutine has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) TransactionID() string {
	return p.transactionID
}

// StartPolling starts polling the session awaiting payment, replacing any previous
// poller. Polling stops at the session expiry plus the grace period.
func (m *Manager) StartPolling(ctx context.Context) (*Poller, error) {
	m.mu.Lock()
	session := m.active
	if session == nil || session.Status != StatusPending {
		m.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	if m.poller != nil {
		m.poller.Stop()
	}

	deadline := session.ExpiresAt.Add(m.grace)
	pctx, cancel := context.WithDeadline(ctx, deadline)
	p := &Poller{
		transactionID: session.TransactionID,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	m.poller = p
	interval := m.interval
	m.mu.Unlock()

	go m.runPoller(pctx, p, interval)
	return p, nil
}

// StopPolling halts the current poller, if any, without touching the session.
func (m *Manager) StopPolling() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.poller != nil {
		m.poller.Stop()
		m.poller = nil
	}
}

func (m *Manager) runPoller(ctx context.Context, p *Poller, interval time.Duration) {
	defer close(p.done)
	defer p.cancel()

	logger := m.logger.With(zap.String("transaction_id", p.transactionID))
	logger.Debug("polling started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				m.ExpireIfDue()
			}
			logger.Debug("polling stopped", zap.Error(ctx.Err()))
			return
		case <-ticker.C:
			session, err := m.pollTransaction(ctx, p.transactionID)
			switch {
			case session.awaitingCommit():
				logger.Warn("order not stored yet, polling again", zap.Error(err))
			case session.Status.IsTerminal():
				logger.Debug("polling finished", zap.String("status", string(session.Status)))
				return
			case errors.Is(err, ErrUnknownTransaction):
				return
			case err != nil && ctx.Err() == nil:
				logger.Warn("poll failed", zap.Error(err))
			}
		}
	}
}
