package handlers

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/bazaar-market/apiserver/internal/services"
)

// formImage reads a single optional image field. It returns nil when the
// field is absent.
func formImage(form *multipart.Form, field string) (*services.Upload, error) {
	if form == nil {
		return nil, errors.New("missing form data")
	}
	files := form.File[field]
	if len(files) == 0 {
		return nil, nil
	}
	if len(files) > 1 {
		return nil, fmt.Errorf("only one %s image is allowed", field)
	}
	upload, err := readImage(files[0])
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// formImages reads every file sent under field.
func formImages(form *multipart.Form, field string) ([]services.Upload, error) {
	if form == nil {
		return nil, errors.New("missing form data")
	}
	uploads := make([]services.Upload, 0, len(form.File[field]))
	for _, header := range form.File[field] {
		upload, err := readImage(header)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, upload)
	}
	return uploads, nil
}

func readImage(header *multipart.FileHeader) (services.Upload, error) {
	file, err := header.Open()
	if err != nil {
		return services.Upload{}, fmt.Errorf("failed to read %s: %w", header.Filename, err)
	}
	data, err := readFileLimited(file, maxImageBytes)
	_ = file.Close()
	if err != nil {
		return services.Upload{}, err
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return services.Upload{}, fmt.Errorf("%s is not an image", header.Filename)
	}

	return services.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}
