package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/apiclient"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/state"
	"github.com/mmeshcher/storefront/internal/validation"
)

// ErrCartNotCleared возвращается вместе с заказом, если корзину не удалось очистить.
var ErrCartNotCleared = errors.New("order placed, but cart clear failed")

// ListOrders загружает заказы пользователя.
func (s *Service) ListOrders(ctx context.Context) ([]model.Order, error) {
	return perform(s, state.OpListOrders, apiclient.DefaultErrorMessage, func() ([]model.Order, error) {
		orders := []model.Order{}
		if err := s.api.Get(ctx, "/order", &orders); err != nil {
			return nil, err
		}
		if orders == nil {
			orders = []model.Order{}
		}
		return orders, nil
	}, same[[]model.Order])
}

// Checkout оформляет заказ из текущей корзины.
func (s *Service) Checkout(ctx context.Context, shippingAddress string) (*model.Order, error) {
	return s.CreateOrder(ctx, s.store.State().Cart.Items, shippingAddress)
}

// CreateOrder создаёт заказ и только после этого очищает корзину.
// Если очистка не удалась, заказ возвращается вместе с ErrCartNotCleared.
func (s *Service) CreateOrder(ctx context.Context, items []model.CartItem, shippingAddress string) (*model.Order, error) {
	if len(items) == 0 {
		return nil, s.rejectLocal(state.OpCreateOrder, &validation.Error{Field: "items", Message: "cart is empty"})
	}

	req := model.CreateOrderRequest{
		Items:           make([]model.CartLine, 0, len(items)),
		ShippingAddress: shippingAddress,
	}
	for _, it := range items {
		req.Items = append(req.Items, model.CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	order, err := perform(s, state.OpCreateOrder, apiclient.DefaultErrorMessage, func() (*model.Order, error) {
		var raw json.RawMessage
		if err := s.api.Send(ctx, http.MethodPost, "/order", req, &raw); err != nil {
			return nil, err
		}
		return decodeOrder(raw, items, shippingAddress)
	}, same[*model.Order])
	if err != nil {
		return nil, err
	}

	// заказ уже создан: очистка не должна прерываться отменой исходного запроса
	if err := s.clearAfterOrder(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("cart clear after order failed",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		s.store.Dispatch(state.Event{
			Op:      state.OpOrderWarning,
			Phase:   state.PhaseFulfilled,
			Payload: ErrCartNotCleared.Error(),
		})
		return order, fmt.Errorf("%w: %w", ErrCartNotCleared, err)
	}
	return order, nil
}

// clearAfterOrder очищает корзину, повторяя попытки при ошибках транспорта и 5xx.
func (s *Service) clearAfterOrder(ctx context.Context) error {
	return retry.Do(ctx, s.clearBackoff(), func(ctx context.Context) error {
		err := s.ClearCart(ctx)
		if err == nil {
			return nil
		}
		if status := apiclient.StatusCode(err); status == 0 || status >= http.StatusInternalServerError {
			return retry.RetryableError(err)
		}
		return err
	})
}

// decodeOrder накладывает ответ API на заказ, собранный из позиций корзины.
func decodeOrder(raw json.RawMessage, items []model.CartItem, shippingAddress string) (*model.Order, error) {
	order := &model.Order{
		Items:           make([]model.OrderItem, 0, len(items)),
		ShippingAddress: shippingAddress,
		Status:          model.OrderStatusPending,
	}
	for _, it := range items {
		order.Items = append(order.Items, model.OrderItem{
			Product: model.Product{
				ID:    it.ProductID,
				Title: it.ProductName,
				Price: it.ProductPrice,
				Image: it.Image,
			},
			Quantity: it.Quantity,
		})
	}

	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, order); err != nil {
			return nil, &apiclient.APIError{Message: apiclient.DefaultErrorMessage, Err: fmt.Errorf("decode order: %w", err)}
		}
	}
	return order, nil
}
