package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookstore/internal/app"
	"bookstore/pkg/domain"
)

// bookRequest is the JSON body for book create and update.
type bookRequest struct {
	ID            uint    `json:"id"`
	Title         string  `json:"title"`
	ISBN          string  `json:"isbn"`
	Description   string  `json:"description"`
	Price         float64 `json:"price"`
	StockQuantity int     `json:"stockQuantity"`
	PublishedDate string  `json:"publishedDate"`
	Publisher     string  `json:"publisher"`
	NumberOfPages int     `json:"numberOfPages"`
	Language      string  `json:"language"`
	IsActive      *bool   `json:"isActive"`
	CategoryIDs   []uint  `json:"categoryIds"`
	AuthorIDs     []uint  `json:"authorIds"`
}

// readBookRequest accepts either a JSON body or a multipart form. The form
// path additionally yields the optional cover image file under "coverImage".
func (s *Server) readBookRequest(w http.ResponseWriter, r *http.Request) (domain.BookInput, uint, *app.UploadedFile, func(), error) {
	noop := func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return s.readBookForm(w, r)
	}
	var req bookRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		return domain.BookInput{}, 0, nil, noop, fmt.Errorf("%w: invalid JSON body", app.ErrValidation)
	}
	input, err := req.toInput()
	if err != nil {
		return domain.BookInput{}, 0, nil, noop, err
	}
	return input, req.ID, nil, noop, nil
}

func (req bookRequest) toInput() (domain.BookInput, error) {
	published, err := parseDate(req.PublishedDate)
	if err != nil {
		return domain.BookInput{}, err
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = "English"
	}
	return domain.BookInput{
		Title:         strings.TrimSpace(req.Title),
		ISBN:          strings.TrimSpace(req.ISBN),
		Description:   req.Description,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		PublishedDate: published,
		Publisher:     strings.TrimSpace(req.Publisher),
		NumberOfPages: req.NumberOfPages,
		Language:      language,
		IsActive:      isActive,
		CategoryIDs:   req.CategoryIDs,
		AuthorIDs:     req.AuthorIDs,
	}, nil
}

func (s *Server) readBookForm(w http.ResponseWriter, r *http.Request) (domain.BookInput, uint, *app.UploadedFile, func(), error) {
	noop := func() {}
	if max := s.app.MaxUploadBytes(); max > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, max+(1<<20))
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return domain.BookInput{}, 0, nil, noop, fmt.Errorf("%w: invalid form data", app.ErrValidation)
	}
	req := bookRequest{
		Title:         r.FormValue("title"),
		ISBN:          r.FormValue("isbn"),
		Description:   r.FormValue("description"),
		PublishedDate: r.FormValue("publishedDate"),
		Publisher:     r.FormValue("publisher"),
		Language:      r.FormValue("language"),
	}
	var err error
	if req.ID, err = formUint(r, "id"); err != nil {
		return domain.BookInput{}, 0, nil, noop, err
	}
	if v := r.FormValue("price"); v != "" {
		req.Price, err = strconv.ParseFloat(v, 64)
		if err != nil {
			return domain.BookInput{}, 0, nil, noop, fmt.Errorf("%w: invalid price", app.ErrValidation)
		}
	}
	if v := r.FormValue("stockQuantity"); v != "" {
		req.StockQuantity, err = strconv.Atoi(v)
		if err != nil {
			return domain.BookInput{}, 0, nil, noop, fmt.Errorf("%w: invalid stockQuantity", app.ErrValidation)
		}
	}
	if v := r.FormValue("numberOfPages"); v != "" {
		req.NumberOfPages, err = strconv.Atoi(v)
		if err != nil {
			return domain.BookInput{}, 0, nil, noop, fmt.Errorf("%w: invalid numberOfPages", app.ErrValidation)
		}
	}
	if v := r.FormValue("isActive"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return domain.BookInput{}, 0, nil, noop, fmt.Errorf("%w: invalid isActive", app.ErrValidation)
		}
		req.IsActive = &active
	}
	if req.CategoryIDs, err = formIDList(r, "categoryIds"); err != nil {
		return domain.BookInput{}, 0, nil, noop, err
	}
	if req.AuthorIDs, err = formIDList(r, "authorIds"); err != nil {
		return domain.BookInput{}, 0, nil, noop, err
	}
	input, err := req.toInput()
	if err != nil {
		return domain.BookInput{}, 0, nil, noop, err
	}

	file, header, err := r.FormFile("coverImage")
	if err == http.ErrMissingFile {
		return input, req.ID, nil, noop, nil
	}
	if err != nil {
		return domain.BookInput{}, 0, nil, noop, fmt.Errorf("%w: invalid coverImage", app.ErrValidation)
	}
	cover := &app.UploadedFile{
		Filename: header.Filename,
		Size:     header.Size,
		Reader:   file,
	}
	return input, req.ID, cover, func() { file.Close() }, nil
}

func formUint(r *http.Request, field string) (uint, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s", app.ErrValidation, field)
	}
	return uint(n), nil
}

// formIDList reads an ID list from repeated form values, each of which may
// itself be comma-separated.
func formIDList(r *http.Request, field string) ([]uint, error) {
	values := r.Form[field]
	ids := make([]uint, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.ParseUint(part, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: invalid %s", app.ErrValidation, field)
			}
			ids = append(ids, uint(n))
		}
	}
	return ids, nil
}

// parseDate accepts a date-only or RFC 3339 timestamp. An empty value maps
// to the zero time.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid date %q", app.ErrValidation, raw)
}
