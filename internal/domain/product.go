package domain

// Product is the part of a catalog product the cart needs.
type Product struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Price  int64    `json:"price"`
	Image  string   `json:"image"`
	Sizes  []string `json:"sizes"`
	Colors []string `json:"colors"`
}

// Line snapshots the product into a cart line.
func (p *Product) Line(size, color string, quantity int) CartLine {
	return CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		Image:     p.Image,
		Price:     p.Price,
		Size:      size,
		Color:     color,
		Quantity:  quantity,
	}
}
