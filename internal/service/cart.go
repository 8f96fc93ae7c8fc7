package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mmeshcher/storefront/internal/apiclient"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/state"
	"github.com/mmeshcher/storefront/internal/validation"
)

// GetCartItems загружает корзину.
func (s *Service) GetCartItems(ctx context.Context) ([]model.CartItem, error) {
	return perform(s, state.OpFetchCart, apiclient.DefaultErrorMessage, func() ([]model.CartItem, error) {
		items := []model.CartItem{}
		if err := s.api.Get(ctx, "/cart", &items); err != nil {
			return nil, err
		}
		if items == nil {
			items = []model.CartItem{}
		}
		return items, nil
	}, same[[]model.CartItem])
}

// AddCartItem добавляет товар в корзину.
func (s *Service) AddCartItem(ctx context.Context, line model.CartLine) (*model.CartItem, error) {
	if line.Quantity < 1 {
		return nil, s.rejectLocal(state.OpAddCartItem, validation.Quantity(line.Quantity, 0))
	}

	// остаток сверяется с итоговым количеством позиции, как и при изменении
	item := s.cartItemFor(line)
	if err := s.checkQuantity(line.ProductID, item.Quantity); err != nil {
		return nil, s.rejectLocal(state.OpAddCartItem, err)
	}

	res, err := perform(s, state.OpAddCartItem, apiclient.DefaultErrorMessage, func() (model.CartItem, error) {
		var raw json.RawMessage
		if err := s.api.Send(ctx, http.MethodPost, "/cart", line, &raw); err != nil {
			return model.CartItem{}, err
		}
		return mergeCartItem(item, raw)
	}, same[model.CartItem])
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdateCartItem меняет количество товара. Количество меньше 1 удаляет позицию.
func (s *Service) UpdateCartItem(ctx context.Context, id model.ID, quantity int) error {
	if quantity < 1 {
		return s.DeleteCartItem(ctx, id)
	}
	if err := s.checkQuantity(id, quantity); err != nil {
		return s.rejectLocal(state.OpUpdateCartItem, err)
	}

	path := "/cart/" + url.PathEscape(id.String())
	_, err := perform(s, state.OpUpdateCartItem, apiclient.DefaultErrorMessage, func() (model.CartLine, error) {
		body := map[string]int{"quantity": quantity}
		if err := s.api.Send(ctx, http.MethodPut, path, body, nil); err != nil {
			return model.CartLine{}, err
		}
		return model.CartLine{ProductID: id, Quantity: quantity}, nil
	}, same[model.CartLine])
	return err
}

// DeleteCartItem удаляет позицию корзины.
func (s *Service) DeleteCartItem(ctx context.Context, id model.ID) error {
	path := "/cart/" + url.PathEscape(id.String())
	_, err := perform(s, state.OpDeleteCartItem, apiclient.DefaultErrorMessage, func() (model.ID, error) {
		if err := s.api.Send(ctx, http.MethodDelete, path, nil, nil); err != nil {
			return "", err
		}
		return id, nil
	}, same[model.ID])
	return err
}

// ClearCart очищает корзину.
func (s *Service) ClearCart(ctx context.Context) error {
	_, err := perform(s, state.OpClearCart, apiclient.DefaultErrorMessage, func() (struct{}, error) {
		return struct{}{}, s.api.Send(ctx, http.MethodPost, "/cart/clearCart", nil, nil)
	}, func(struct{}) any { return nil })
	return err
}

// checkQuantity сверяет количество с доступным остатком товара из каталога.
// Если товар в каталоге не загружен, остаток проверяет сервер.
func (s *Service) checkQuantity(id model.ID, quantity int) error {
	p, ok := s.store.State().Catalog.Product(id)
	if !ok {
		return nil
	}
	return validation.Quantity(quantity, p.Available())
}

// cartItemFor строит ожидаемую позицию корзины из текущей корзины и каталога.
func (s *Service) cartItemFor(line model.CartLine) model.CartItem {
	st := s.store.State()
	for _, it := range st.Cart.Items {
		if it.ProductID == line.ProductID {
			it.Quantity += line.Quantity
			return it
		}
	}

	item := model.CartItem{ProductID: line.ProductID, Quantity: line.Quantity}
	if p, ok := st.Catalog.Product(line.ProductID); ok {
		item.ProductName = p.Title
		item.ProductPrice = p.Price
		item.Image = p.Image
	}
	return item
}

// mergeCartItem накладывает ответ API на ожидаемую позицию. API может вернуть
// саму позицию или всю корзину.
func mergeCartItem(item model.CartItem, raw json.RawMessage) (model.CartItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return item, nil
	}

	switch trimmed[0] {
	case '[':
		var items []model.CartItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return model.CartItem{}, &apiclient.APIError{Message: apiclient.DefaultErrorMessage, Err: fmt.Errorf("decode cart: %w", err)}
		}
		for _, it := range items {
			if it.ProductID == item.ProductID {
				return it, nil
			}
		}
	case '{':
		id := item.ProductID
		if err := json.Unmarshal(trimmed, &item); err != nil {
			return model.CartItem{}, &apiclient.APIError{Message: apiclient.DefaultErrorMessage, Err: fmt.Errorf("decode cart item: %w", err)}
		}
		if item.ProductID == "" {
			item.ProductID = id
		}
	}
	return item, nil
}
