package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Product описывает товар каталога.
// Доступное количество не хранится, а всегда вычисляется из Stock и Reserved.
type Product struct {
	ID          ID              `json:"id,omitempty"`
	Title       string          `json:"title"`
	Image       string          `json:"image"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Reserved    int             `json:"reserved"`
	Category    string          `json:"category"`
}

// Available возвращает количество товара, доступное покупателю.
func (p Product) Available() int {
	if p.Stock <= p.Reserved {
		return 0
	}
	return p.Stock - p.Reserved
}

// MarshalJSON добавляет в представление товара вычисленное поле available.
func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return json.Marshal(struct {
		plain
		Available int `json:"available"`
	}{
		plain:     plain(p),
		Available: p.Available(),
	})
}

// ProductForm содержит данные формы создания или изменения товара.
// Image задаёт новое изображение, ImageURL ссылается на уже загруженное.
type ProductForm struct {
	Title       string
	Description string
	Price       decimal.Decimal
	Stock       int
	Reserved    int
	Category    string
	Image       *Upload
	ImageURL    string
}
