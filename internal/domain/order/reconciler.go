package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/example/digital-storefront/internal/domain/event"
	"github.com/example/digital-storefront/internal/domain/payment"
)

const publishTimeout = 10 * time.Second

// CartRemover removes committed lines from the customer's cart.
type CartRemover interface {
	RemoveLines(ids ...string) int
}

// Publisher delivers events to the notification pipeline.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Deps struct {
	Repo      Repository
	Cart      CartRemover
	Publisher Publisher
	Logger    *zap.Logger
	Clock     func() time.Time
}

// Reconciler commits paid sessions as orders. It implements payment.Reconciler.
type Reconciler struct {
	repo      Repository
	cart      CartRemover
	publisher Publisher
	logger    *zap.Logger
	clock     func() time.Time

	wg sync.WaitGroup
}

var _ payment.Reconciler = (*Reconciler)(nil)

func NewReconciler(deps Deps) *Reconciler {
	r := &Reconciler{
		repo:      deps.Repo,
		cart:      deps.Cart,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		clock:     deps.Clock,
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.logger = r.logger.Named("order")
	if r.clock == nil {
		r.clock = time.Now
	}
	return r
}

// Commit persists the order for a paid session. A second commit for the same
// transaction is a no-op. On first creation the committed lines leave the cart and an
// OrderPlaced event is published in the background.
func (r *Reconciler) Commit(ctx context.Context, s payment.Session) error {
	o, err := FromSession(s, r.clock())
	if err != nil {
		return err
	}

	stored, created, err := r.repo.CreateOrder(ctx, o)
	if err != nil {
		return fmt.Errorf("persist order %s: %w", o.TransactionID, err)
	}
	if !created {
		r.logger.Info("order already committed",
			zap.String("transaction_id", stored.TransactionID),
			zap.String("order_id", stored.ID),
		)
		return nil
	}

	if r.cart != nil {
		removed := r.cart.RemoveLines(s.LineIDs()...)
		r.logger.Debug("removed committed lines from cart", zap.Int("lines", removed))
	}

	r.logger.Info("order committed",
		zap.String("order_id", stored.ID),
		zap.String("transaction_id", stored.TransactionID),
		zap.Int64("total", stored.Total),
	)

	r.publish(ctx, stored)
	return nil
}

func (r *Reconciler) publish(ctx context.Context, o Order) {
	if r.publisher == nil {
		return
	}

	evt, err := event.New(o.ID, AggregateType, EventOrderPlaced, o.Placed(), o.CreatedAt)
	if err != nil {
		r.logger.Error("build OrderPlaced event", zap.String("order_id", o.ID), zap.Error(err))
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if err := r.publisher.Publish(pctx, o.ID, evt); err != nil {
			r.logger.Warn("publish OrderPlaced failed",
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until background publishes have finished.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}
