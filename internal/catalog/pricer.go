package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefrontapp/storefront/internal/models"
)

// LineRequest is a product and quantity as submitted by a shopper. Any
// price the client sent is never read.
type LineRequest struct {
	ProductID uuid.UUID
	Quantity  int
}

type PricedLine struct {
	Product   *models.Product
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
}

type PricedCart struct {
	Lines []PricedLine
	Total decimal.Decimal
}

func (c PricedCart) Empty() bool {
	return len(c.Lines) == 0
}

type Pricer struct{}

func NewPricer() *Pricer {
	return &Pricer{}
}

// Price resolves each requested line against the store's current products.
// Lines for unknown or inactive products are dropped, quantities below one
// count as one, and repeated products are merged in first-seen order.
func (p *Pricer) Price(lines []LineRequest, products map[uuid.UUID]*models.Product) PricedCart {
	cart := PricedCart{Total: decimal.Zero}
	index := make(map[uuid.UUID]int, len(lines))

	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok || !product.IsActive() {
			continue
		}
		quantity := line.Quantity
		if quantity < 1 {
			quantity = 1
		}

		if i, seen := index[product.ID]; seen {
			cart.Lines[i].Quantity += quantity
			continue
		}
		index[product.ID] = len(cart.Lines)
		cart.Lines = append(cart.Lines, PricedLine{
			Product:   product,
			Quantity:  quantity,
			UnitPrice: product.Price,
		})
	}

	for i := range cart.Lines {
		line := &cart.Lines[i]
		line.Total = line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		cart.Total = cart.Total.Add(line.Total)
	}
	return cart
}
