package models

// Product is master data. The engine reads it to label movements and to check recipe references.
type Product struct {
	ID       int         `json:"id"`
	Name     string      `json:"name"`
	Type     ProductType `json:"type"`
	BaseUnit string      `json:"baseUnit"`
}

func FindProduct(products []Product, id int) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
