package apiclient

import (
	"bytes"
	"fmt"
	"mime/multipart"
)

type formField struct {
	name, value string
}

type formFile struct {
	field, filename string
	data            []byte
}

// Form собирает multipart/form-data тело запроса.
type Form struct {
	fields []formField
	files  []formFile
}

// Set добавляет текстовое поле.
func (f *Form) Set(name, value string) {
	f.fields = append(f.fields, formField{name: name, value: value})
}

// Attach добавляет файл.
func (f *Form) Attach(field, filename string, data []byte) {
	f.files = append(f.files, formFile{field: field, filename: filename, data: data})
}

func (f *Form) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, fld := range f.fields {
		if err := w.WriteField(fld.name, fld.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", fld.name, err)
		}
	}

	for _, file := range f.files {
		part, err := w.CreateFormFile(file.field, file.filename)
		if err != nil {
			return nil, "", fmt.Errorf("create file part %s: %w", file.field, err)
		}
		if _, err := part.Write(file.data); err != nil {
			return nil, "", fmt.Errorf("write file part %s: %w", file.field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
