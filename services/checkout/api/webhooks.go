package checkoutapi

import (
	"context"
	"time"

	"github.com/altarlane/marketplace/internal/cache"
	"github.com/altarlane/marketplace/internal/domain/booking"
	"github.com/altarlane/marketplace/internal/domain/order"
	"github.com/altarlane/marketplace/internal/errors"
	"github.com/altarlane/marketplace/internal/scheduler"
	"github.com/altarlane/marketplace/services/checkout/payments"
	checkoutsupabase "github.com/altarlane/marketplace/services/checkout/supabase"
	commonservice "github.com/altarlane/marketplace/services/common/service"
)

// Webhook outcomes recorded in metrics.
const (
	outcomeApplied   = "applied"
	outcomeDuplicate = "duplicate"
	outcomeIgnored   = "ignored"
	outcomeError     = "error"
)

func eventKey(id string) string {
	return "stripe:event:" + id
}

// HandleWebhook verifies and applies a Stripe event. Each event ID is applied
// at most once; a failed application releases the claim so a redelivery can
// retry it.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.payments.ParseEvent(payload, signature)
	if err != nil {
		s.Logger().LogSecurityEvent(ctx, "webhook_signature_invalid", map[string]interface{}{"error": err.Error()})
		return errors.InvalidInput("invalid webhook signature")
	}
	log := s.Logger().WithContext(ctx).WithFields(map[string]interface{}{
		"event_id":   ev.ID,
		"event_type": ev.Type,
		"order_id":   ev.OrderID,
	})

	claimed, err := cache.ClaimOnce(ctx, s.rdb, eventKey(ev.ID), eventDedupeTTL)
	if err != nil {
		return errors.Unavailable("webhook de-duplication unavailable", err)
	}
	if !claimed {
		s.Metrics().RecordPaymentEvent(ev.Type, outcomeDuplicate)
		log.Debug("duplicate webhook delivery")
		return nil
	}

	outcome, err := s.applyEvent(ctx, ev)
	if err != nil {
		if rerr := cache.Release(ctx, s.rdb, eventKey(ev.ID)); rerr != nil {
			log.WithError(rerr).Warn("failed to release webhook claim")
		}
		s.Metrics().RecordPaymentEvent(ev.Type, outcomeError)
		log.WithError(err).Error("webhook processing failed")
		return err
	}
	s.Metrics().RecordPaymentEvent(ev.Type, outcome)
	log.WithField("outcome", outcome).Info("webhook processed")
	return nil
}

func (s *Service) applyEvent(ctx context.Context, ev *payments.Event) (string, error) {
	if ev.OrderID == "" {
		return outcomeIgnored, nil
	}
	switch ev.Type {
	case payments.EventSessionCompleted, payments.EventAsyncPaymentSucceeded:
		if !ev.Paid() {
			// Delayed payment methods settle through async_payment_succeeded.
			return outcomeIgnored, nil
		}
		return s.markPaid(ctx, ev.OrderID, ev.PaymentIntentID)
	case payments.EventSessionExpired:
		return s.release(ctx, ev.OrderID, order.StatusExpired, booking.StatusExpired)
	case payments.EventAsyncPaymentFailed:
		return s.release(ctx, ev.OrderID, order.StatusFailed, booking.StatusCancelled)
	}
	return outcomeIgnored, nil
}

// markPaid records payment and runs the paid side effects. Every step is
// idempotent, so a redelivered event finishes any step that failed before.
func (s *Service) markPaid(ctx context.Context, orderID, paymentIntentID string) (string, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if isNotFound(err) {
			s.Logger().WithContext(ctx).WithField("order_id", orderID).Warn("payment for unknown order")
			return outcomeIgnored, nil
		}
		return "", commonservice.StoreError(err, "order", orderID)
	}
	log := s.Logger().WithContext(ctx).WithField("order_id", o.ID)

	// The cart belongs to this order only while the order is on time. After a
	// late payment the user may already be building a new cart.
	clearCart := o.Status == order.StatusPending
	if o.Status == order.StatusPaid {
		clearCart = o.PaidAt != nil && !o.PaidAt.After(o.ExpiresAt)
	}

	if o.Status != order.StatusPaid {
		now := s.now().UTC()
		changed, err := s.orders.TransitionStatus(ctx, o.ID, order.PaySources, order.StatusPaid, checkoutsupabase.Transition{
			PaymentIntentID: paymentIntentID,
			PaidAt:          &now,
		})
		if err != nil {
			return "", commonservice.StoreError(err, "order", o.ID)
		}
		if !changed {
			log.WithField("status", o.Status).Warn("payment received for order that cannot be paid")
			return outcomeIgnored, nil
		}
		if o.Status != order.StatusPending {
			log.WithField("previous_status", o.Status).Warn("late payment recorded for released order")
		}
	}

	n, err := s.bookings.ConfirmOrder(ctx, o.ID)
	if err != nil {
		return "", err
	}
	if s.conversations != nil {
		if err := s.conversations.OpenConversations(ctx, o.UserID, o.ID, o.VendorIDs()); err != nil {
			return "", err
		}
	}
	if clearCart {
		if _, err := s.carts.Clear(ctx, o.UserID); err != nil {
			return "", err
		}
	}
	log.WithFields(map[string]interface{}{"confirmed": n, "cart_cleared": clearCart}).Info("order paid")
	return outcomeApplied, nil
}

// release moves a pending order to to and releases its held bookings. A
// paid order is left untouched.
func (s *Service) release(ctx context.Context, orderID string, to order.Status, bs booking.Status) (string, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if isNotFound(err) {
			return outcomeIgnored, nil
		}
		return "", commonservice.StoreError(err, "order", orderID)
	}
	if o.Status == order.StatusPaid {
		return outcomeIgnored, nil
	}
	if o.Status == order.StatusPending {
		if _, err := s.orders.TransitionStatus(ctx, o.ID, order.ReleaseSources, to, checkoutsupabase.Transition{}); err != nil {
			return "", commonservice.StoreError(err, "order", o.ID)
		}
	}
	n, err := s.bookings.ReleaseOrder(ctx, o.ID, bs)
	if err != nil {
		return "", err
	}
	s.Logger().WithContext(ctx).WithFields(map[string]interface{}{
		"order_id": o.ID,
		"status":   to,
		"released": n,
	}).Info("order released")
	return outcomeApplied, nil
}

// ExpireHolds expires pending orders past their deadline and releases their
// holds. Open checkout sessions are expired best-effort.
func (s *Service) ExpireHolds(ctx context.Context) (int, error) {
	now := s.now().UTC()
	due, err := s.orders.ListExpiredPending(ctx, now, expireBatchSize)
	if err != nil {
		return 0, commonservice.StoreError(err, "orders", "")
	}
	expired := 0
	for _, o := range due {
		log := s.Logger().WithContext(ctx).WithField("order_id", o.ID)
		changed, err := s.orders.TransitionStatus(ctx, o.ID, order.ReleaseSources, order.StatusExpired, checkoutsupabase.Transition{})
		if err != nil {
			return expired, commonservice.StoreError(err, "order", o.ID)
		}
		if !changed {
			continue
		}
		if _, err := s.bookings.ReleaseOrder(ctx, o.ID, booking.StatusExpired); err != nil {
			return expired, err
		}
		if o.CheckoutSessionID != "" {
			if err := s.payments.ExpireSession(ctx, o.CheckoutSessionID); err != nil {
				log.WithError(err).Warn("failed to expire checkout session")
			}
		}
		expired++
	}
	if expired > 0 {
		s.Logger().WithContext(ctx).WithField("expired", expired).Info("expired pending orders")
	}
	return expired, nil
}

// Job returns the expire-holds job for the scheduler.
func (s *Service) Job(spec string) scheduler.Job {
	return scheduler.Job{
		Name:    "expire-holds",
		Spec:    spec,
		Timeout: 2 * time.Minute,
		Run: func(ctx context.Context) error {
			_, err := s.ExpireHolds(ctx)
			return err
		},
	}
}
