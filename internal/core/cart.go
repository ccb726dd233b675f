package core

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CartItem is one product line in a buyer's cart.
type CartItem struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Image         string          `json:"image,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	SelectedColor string          `json:"selectedColor,omitempty"`
	SelectedSize  string          `json:"selectedSize,omitempty"`
	Colors        []string        `json:"colors,omitempty"`
	Sizes         []string        `json:"sizes,omitempty"`
}

// LineTotal is price × quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Validate checks a single item at the system boundary.
func (i CartItem) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("%w: cart item id is required", ErrValidation)
	}
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("%w: cart item %s has no name", ErrValidation, i.ID)
	}
	if i.Price.IsNegative() {
		return fmt.Errorf("%w: cart item %s has a negative price", ErrValidation, i.ID)
	}
	if i.Quantity < 1 {
		return fmt.Errorf("cart item %s: %w", i.ID, ErrInvalidQuantity)
	}
	if i.SelectedColor != "" && !offers(i.Colors, i.SelectedColor) {
		return fmt.Errorf("cart item %s color %q: %w", i.ID, i.SelectedColor, ErrInvalidVariant)
	}
	if i.SelectedSize != "" && !offers(i.Sizes, i.SelectedSize) {
		return fmt.Errorf("cart item %s size %q: %w", i.ID, i.SelectedSize, ErrInvalidVariant)
	}
	return nil
}

// offers reports whether v is one of the declared variants. An empty list accepts anything.
func offers(variants []string, v string) bool {
	if len(variants) == 0 {
		return true
	}
	for _, candidate := range variants {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

// Cart holds the items of one checkout. It is not safe for concurrent use;
// the checkout registry serializes access.
type Cart struct {
	items []CartItem
}

// NewCart validates items and rejects duplicate ids.
func NewCart(items []CartItem) (*Cart, error) {
	seen := make(map[string]struct{}, len(items))
	cart := &Cart{items: make([]CartItem, 0, len(items))}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate cart item %s", ErrValidation, item.ID)
		}
		seen[item.ID] = struct{}{}
		cart.items = append(cart.items, cloneItem(item))
	}
	return cart, nil
}

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items() []CartItem {
	out := make([]CartItem, len(c.items))
	for i, item := range c.items {
		out[i] = cloneItem(item)
	}
	return out
}

func (c *Cart) Len() int      { return len(c.items) }
func (c *Cart) IsEmpty() bool { return len(c.items) == 0 }

// Subtotal sums every line total.
func (c *Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// UpdateQuantity sets the quantity of one line.
func (c *Cart) UpdateQuantity(id string, quantity int) error {
	idx, err := c.find(id)
	if err != nil {
		return err
	}
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	c.items[idx].Quantity = quantity
	return nil
}

// UpdateVariant changes the selected color and/or size. Empty values leave
// the current selection untouched.
func (c *Cart) UpdateVariant(id, color, size string) error {
	idx, err := c.find(id)
	if err != nil {
		return err
	}
	item := &c.items[idx]
	if color != "" {
		if !offers(item.Colors, color) {
			return fmt.Errorf("color %q: %w", color, ErrInvalidVariant)
		}
		item.SelectedColor = color
	}
	if size != "" {
		if !offers(item.Sizes, size) {
			return fmt.Errorf("size %q: %w", size, ErrInvalidVariant)
		}
		item.SelectedSize = size
	}
	return nil
}

// Remove deletes a line.
func (c *Cart) Remove(id string) error {
	idx, err := c.find(id)
	if err != nil {
		return err
	}
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	return nil
}

func (c *Cart) find(id string) (int, error) {
	for i, item := range c.items {
		if item.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrItemNotFound, id)
}

// MarshalJSON renders the cart as its item list.
func (c *Cart) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.Items())
}

func cloneItem(item CartItem) CartItem {
	item.Colors = append([]string(nil), item.Colors...)
	item.Sizes = append([]string(nil), item.Sizes...)
	return item
}
