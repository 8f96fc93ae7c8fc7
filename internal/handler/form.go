package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/validation"
)

const maxUploadSize = 10 << 20

// readUpload читает файл из поля формы. Отсутствие файла не является ошибкой.
func readUpload(r *http.Request, field string) (*model.Upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", field, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", field, err)
	}
	return &model.Upload{Name: header.Filename, Data: data}, nil
}

func formInt(r *http.Request, field string) (int, error) {
	raw := strings.TrimSpace(r.FormValue(field))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &validation.Error{Field: field, Message: field + " must be a whole number"}
	}
	return n, nil
}

// parseProductForm собирает форму товара: файл в поле file, ссылку на изображение в поле image.
func parseProductForm(r *http.Request) (model.ProductForm, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return model.ProductForm{}, fmt.Errorf("parse product form: %w", err)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("price")))
	if err != nil {
		return model.ProductForm{}, &validation.Error{Field: "price", Message: "price is invalid"}
	}
	stock, err := formInt(r, "stock")
	if err != nil {
		return model.ProductForm{}, err
	}
	reserved, err := formInt(r, "reserved")
	if err != nil {
		return model.ProductForm{}, err
	}
	upload, err := readUpload(r, "file")
	if err != nil {
		return model.ProductForm{}, err
	}

	return model.ProductForm{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Price:       price,
		Stock:       stock,
		Reserved:    reserved,
		Category:    r.FormValue("category"),
		Image:       upload,
		ImageURL:    r.FormValue("image"),
	}, nil
}
