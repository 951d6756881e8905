package ordering

// Selectors are the CSS selector fallback lists for each checkout step.
// The first selector in a list that resolves on the page is used.
type Selectors struct {
	Quantity     []string `yaml:"quantity"`
	AddToCart    []string `yaml:"add_to_cart"`
	Cart         []string `yaml:"cart"`
	CartQuantity []string `yaml:"cart_quantity"`
	UpdateCart   []string `yaml:"update_cart"`
	Checkout     []string `yaml:"checkout"`
	DeliveryDate []string `yaml:"delivery_date"`
	Reference    []string `yaml:"reference"`
	OrderNumber  []string `yaml:"order_number"`
	AcceptTerms  []string `yaml:"accept_terms"`
	Submit       []string `yaml:"submit"`
	Confirmation []string `yaml:"confirmation"`
	ErrorBanner  []string `yaml:"error_banner"`
}

// DefaultSelectors returns the selectors of the supplier's web shop
func DefaultSelectors() Selectors {
	return Selectors{
		Quantity:     []string{`input[name="quantity"]`, "#quantity"},
		AddToCart:    []string{"button.add-to-cart", `button[value="KÖP"]`, ".add-to-cart-button"},
		Cart:         []string{`a[href*="cart"]`, ".cart-link"},
		CartQuantity: []string{".cart-quantity input", `input[name="cartQuantity"]`},
		UpdateCart:   []string{"button.update-cart", ".update-cart-button"},
		Checkout:     []string{".checkout-button", `a[href*="checkout"]`},
		DeliveryDate: []string{`input[name="deliveryDate"]`, "#deliveryDate"},
		Reference:    []string{`input[name="reference"]`, "#reference"},
		OrderNumber:  []string{`input[name="orderNumber"]`, "#orderNumber"},
		AcceptTerms:  []string{`input[name="acceptTerms"]`, "#acceptTerms"},
		Submit:       []string{`button[type="submit"]`, ".place-order-button"},
		Confirmation: []string{".order-confirmation", "h1", "body"},
		ErrorBanner:  []string{".error", ".alert"},
	}
}

// Merge fills empty lists of s from defaults
func (s Selectors) Merge(defaults Selectors) Selectors {
	pick := func(v, d []string) []string {
		if len(v) == 0 {
			return d
		}
		return v
	}
	return Selectors{
		Quantity:     pick(s.Quantity, defaults.Quantity),
		AddToCart:    pick(s.AddToCart, defaults.AddToCart),
		Cart:         pick(s.Cart, defaults.Cart),
		CartQuantity: pick(s.CartQuantity, defaults.CartQuantity),
		UpdateCart:   pick(s.UpdateCart, defaults.UpdateCart),
		Checkout:     pick(s.Checkout, defaults.Checkout),
		DeliveryDate: pick(s.DeliveryDate, defaults.DeliveryDate),
		Reference:    pick(s.Reference, defaults.Reference),
		OrderNumber:  pick(s.OrderNumber, defaults.OrderNumber),
		AcceptTerms:  pick(s.AcceptTerms, defaults.AcceptTerms),
		Submit:       pick(s.Submit, defaults.Submit),
		Confirmation: pick(s.Confirmation, defaults.Confirmation),
		ErrorBanner:  pick(s.ErrorBanner, defaults.ErrorBanner),
	}
}
