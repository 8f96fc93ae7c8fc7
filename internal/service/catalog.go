package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mmeshcher/storefront/internal/apiclient"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/state"
	"github.com/mmeshcher/storefront/internal/validation"
)

// ListProducts загружает каталог.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	return perform(s, state.OpListProducts, apiclient.DefaultErrorMessage, func() ([]model.Product, error) {
		products := []model.Product{}
		if err := s.api.Get(ctx, "/product", &products); err != nil {
			return nil, err
		}
		if products == nil {
			products = []model.Product{}
		}
		return products, nil
	}, same[[]model.Product])
}

// CreateProduct создаёт товар. Без нового изображения запрос не отправляется.
func (s *Service) CreateProduct(ctx context.Context, form model.ProductForm) (*model.Product, error) {
	if err := validation.ProductForm(form, true); err != nil {
		return nil, s.rejectLocal(state.OpCreateProduct, err)
	}

	return perform(s, state.OpCreateProduct, apiclient.DefaultErrorMessage, func() (*model.Product, error) {
		return s.submitProduct(ctx, http.MethodPost, "/product", "", form)
	}, same[*model.Product])
}

// UpdateProduct изменяет товар. Без нового изображения отправляется ссылка на текущее.
func (s *Service) UpdateProduct(ctx context.Context, id model.ID, form model.ProductForm) (*model.Product, error) {
	if err := validation.ProductForm(form, false); err != nil {
		return nil, s.rejectLocal(state.OpUpdateProduct, err)
	}

	path := "/product/" + url.PathEscape(id.String())
	return perform(s, state.OpUpdateProduct, apiclient.DefaultErrorMessage, func() (*model.Product, error) {
		return s.submitProduct(ctx, http.MethodPut, path, id, form)
	}, same[*model.Product])
}

func (s *Service) submitProduct(ctx context.Context, method, path string, id model.ID, form model.ProductForm) (*model.Product, error) {
	f := &apiclient.Form{}
	f.Set("title", form.Title)
	f.Set("description", form.Description)
	f.Set("price", form.Price.String())
	f.Set("stock", strconv.Itoa(form.Stock))
	f.Set("reserved", strconv.Itoa(form.Reserved))
	f.Set("category", form.Category)
	// новое изображение заменяет ссылку на текущее, поле image тогда не отправляется
	if form.Image != nil && len(form.Image.Data) > 0 {
		f.Attach("file", form.Image.Name, form.Image.Data)
	} else {
		f.Set("image", form.ImageURL)
	}

	var raw json.RawMessage
	if err := s.api.SendForm(ctx, method, path, f, &raw); err != nil {
		return nil, err
	}

	// ответ накладывается на данные формы: отсутствующие в нём поля берутся из неё
	p := &model.Product{
		ID:          id,
		Title:       form.Title,
		Image:       form.ImageURL,
		Description: form.Description,
		Price:       form.Price,
		Stock:       form.Stock,
		Reserved:    form.Reserved,
		Category:    form.Category,
	}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, p); err != nil {
			return nil, &apiclient.APIError{Message: apiclient.DefaultErrorMessage, Err: fmt.Errorf("decode product: %w", err)}
		}
	}
	return p, nil
}
