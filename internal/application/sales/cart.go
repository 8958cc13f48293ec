package sales

import (
	"math"
	"strings"

	"github.com/jhoicas/agromarket-api/internal/domain"
)

// CartLine línea del carrito: producto y cantidad pedida.
type CartLine struct {
	ProductID string
	Quantity  int
}

// CreateSaleInput entrada de CreateSale.
type CreateSaleInput struct {
	BuyerID       string
	Items         []CartLine
	PaymentMethod string
}

// normalize valida la entrada y fusiona líneas del mismo producto
// (cantidades sumadas, se conserva la posición de la primera aparición).
func (in CreateSaleInput) normalize() ([]CartLine, error) {
	if strings.TrimSpace(in.BuyerID) == "" || strings.TrimSpace(in.PaymentMethod) == "" || len(in.Items) == 0 {
		return nil, domain.ErrInvalidInput
	}
	lines := make([]CartLine, 0, len(in.Items))
	index := make(map[string]int, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return nil, domain.ErrInvalidInput
		}
		if i, ok := index[it.ProductID]; ok {
			if it.Quantity > math.MaxInt-lines[i].Quantity {
				return nil, domain.ErrInvalidInput
			}
			lines[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(lines)
		lines = append(lines, it)
	}
	return lines, nil
}

func productIDs(lines []CartLine) []string {
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}
