package testing

import (
	"strconv"
	"sync"
)

// Default supplier selectors, first entry of each fallback list
const (
	SelQuantity     = `input[name="quantity"]`
	SelAddToCart    = "button.add-to-cart"
	SelCart         = `a[href*="cart"]`
	SelCartQuantity = ".cart-quantity input"
	SelUpdateCart   = "button.update-cart"
	SelCheckout     = ".checkout-button"
	SelDeliveryDate = `input[name="deliveryDate"]`
	SelReference    = `input[name="reference"]`
	SelOrderNumber  = `input[name="orderNumber"]`
	SelAcceptTerms  = `input[name="acceptTerms"]`
	SelSubmit       = `button[type="submit"]`
	SelConfirmation = "body"
	SelErrorBanner  = ".error"
)

// Outcome decides what the supplier shows after submitting an order of
// quantity units. An empty banner with confirmed false shows nothing.
type Outcome func(quantity string) (confirmed bool, banner string)

// AlwaysConfirm accepts every order
func AlwaysConfirm(string) (bool, string) { return true, "" }

// CreditLimitAbove rejects orders larger than limit with a credit-limit banner
func CreditLimitAbove(limit int) Outcome {
	return func(quantity string) (bool, string) {
		if n, _ := strconv.Atoi(quantity); n > limit {
			return false, "Din kreditgräns är överskriden"
		}
		return true, ""
	}
}

// Checkout records what was submitted through a scripted checkout
type Checkout struct {
	mu        sync.Mutex
	quantity  string
	Submitted []string
}

// SubmittedQuantities returns the cart quantity at each submit
func (c *Checkout) SubmittedQuantities() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Submitted...)
}

// ScriptCheckout makes the supplier checkout selectors present on f and
// renders the confirmation or error banner decided by outcome on submit.
func ScriptCheckout(f *FakeSession, outcome Outcome) *Checkout {
	c := &Checkout{}
	f.SetPresent(
		SelQuantity, SelAddToCart, SelCart, SelCartQuantity, SelUpdateCart,
		SelCheckout, SelDeliveryDate, SelReference, SelOrderNumber,
		SelAcceptTerms, SelSubmit,
	)

	f.OnAction(func(f *FakeSession, action, selector, value string) {
		switch {
		case action == "fill" && (selector == SelQuantity || selector == SelCartQuantity):
			c.mu.Lock()
			c.quantity = value
			c.mu.Unlock()
		case action == "click" && selector == SelSubmit:
			f.Remove(SelConfirmation)
			f.Remove(SelErrorBanner)

			c.mu.Lock()
			qty := c.quantity
			c.Submitted = append(c.Submitted, qty)
			c.mu.Unlock()

			confirmed, banner := outcome(qty)
			if confirmed {
				f.SetText(SelConfirmation, "Tack för din order! Ordernummer följer per e-post.")
			}
			if banner != "" {
				f.SetText(SelErrorBanner, banner)
			}
		}
	})
	return c
}
