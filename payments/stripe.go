package payments

import (
	"context"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"go.uber.org/zap"
)

// Provider is the payment-processor surface the handlers depend on, kept as
// an interface so tests can stub it out.
type Provider interface {
	CreateIntent(ctx context.Context, amountMinor int64, orderID string) (*stripe.PaymentIntent, error)
	GetIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
}

type Client struct {
	logger *zap.Logger
}

func NewClient(secretKey string, logger *zap.Logger) *Client {
	stripe.Key = secretKey
	return &Client{logger: logger}
}

// CreateIntent creates a PaymentIntent for the amount in minor currency
// units, tagged with the order id so webhooks can be tied back to the order.
func (c *Client) CreateIntent(ctx context.Context, amountMinor int64, orderID string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(string(stripe.CurrencyBGN)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", orderID)

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Payment intent created",
		zap.String("payment_intent_id", pi.ID),
		zap.Int64("amount", amountMinor),
		zap.String("order_id", orderID),
	)
	return pi, nil
}

func (c *Client) GetIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}}
	return paymentintent.Get(id, params)
}
