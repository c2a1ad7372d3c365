// Package billing integrates with Stripe for subscription self-service.
package billing

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// PortalClient creates hosted billing-portal sessions for a customer.
type PortalClient interface {
	PortalSessionURL(ctx context.Context, customerID, returnURL string) (string, error)
}

// StripeClient implements PortalClient against the Stripe API.
type StripeClient struct {
	api *client.API
}

// NewStripeClient builds a Stripe-backed portal client.
func NewStripeClient(secretKey string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api}
}

// PortalSessionURL asks Stripe for a hosted portal session scoped to the
// customer and returns its URL.
func (c *StripeClient) PortalSessionURL(ctx context.Context, customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create billing portal session: %w", err)
	}
	return sess.URL, nil
}
