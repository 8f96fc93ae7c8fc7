package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem описывает позицию корзины. Идентификатором позиции служит ProductID.
type CartItem struct {
	ProductID    ID              `json:"productId"`
	ProductName  string          `json:"productName"`
	ProductPrice decimal.Decimal `json:"productPrice"`
	Quantity     int             `json:"quantity"`
	Image        string          `json:"image,omitempty"`
}

// Subtotal возвращает стоимость позиции.
func (c CartItem) Subtotal() decimal.Decimal {
	return c.ProductPrice.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// CartLine описывает запрос на добавление товара в корзину.
type CartLine struct {
	ProductID ID  `json:"productId"`
	Quantity  int `json:"quantity"`
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderItem содержит снимок товара на момент заказа.
type OrderItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Order описывает оформленный заказ.
type Order struct {
	ID              ID                  `json:"id"`
	User            *User               `json:"user,omitempty"`
	Items           []OrderItem         `json:"items"`
	TotalPrice      decimal.NullDecimal `json:"totalPrice"`
	ShippingAddress string              `json:"shippingAddress,omitempty"`
	Status          OrderStatus         `json:"status"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// Total возвращает сумму заказа: значение сервера, если оно есть, иначе сумму позиций.
func (o Order) Total() decimal.Decimal {
	if o.TotalPrice.Valid {
		return o.TotalPrice.Decimal
	}

	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// CreateOrderRequest описывает тело запроса на создание заказа.
type CreateOrderRequest struct {
	Items           []CartLine `json:"items"`
	ShippingAddress string     `json:"shippingAddress,omitempty"`
}
