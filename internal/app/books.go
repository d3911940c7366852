package app

import (
	"context"
	"fmt"
	"strings"

	"bookstore/pkg/domain"
)

const uploadURLPrefix = "/uploads/"

// ListBooks returns the filtered catalog ordered by title.
func (a *App) ListBooks(filter domain.BookFilter) ([]domain.Book, error) {
	return a.store.ListBooks(filter)
}

// GetBook retrieves a book with its relationships resolved.
func (a *App) GetBook(id uint) (domain.Book, bool, error) {
	return a.store.GetBook(id)
}

// CreateBook validates the input, creates the book with its relationship
// links, and stores the optional cover image. The book and its links commit
// together; a cover failure afterwards leaves the book without a cover and
// surfaces the error.
func (a *App) CreateBook(input domain.BookInput, cover *UploadedFile) (domain.Book, error) {
	if err := validateBookInput(input); err != nil {
		return domain.Book{}, err
	}
	if cover != nil {
		if err := a.validateUpload(*cover); err != nil {
			return domain.Book{}, err
		}
	}
	book, err := a.store.CreateBook(input)
	if err != nil {
		return domain.Book{}, fmt.Errorf("create book: %w", err)
	}
	if cover != nil {
		book, err = a.storeCover(book, *cover)
		if err != nil {
			return domain.Book{}, err
		}
	}
	return book, nil
}

// UpdateBook validates the input and replaces the book's fields and
// relationship links. A new cover replaces the previous one; the old object
// is removed after the new path is recorded.
func (a *App) UpdateBook(id uint, input domain.BookInput, cover *UploadedFile) (domain.Book, bool, error) {
	if err := validateBookInput(input); err != nil {
		return domain.Book{}, false, err
	}
	if cover != nil {
		if err := a.validateUpload(*cover); err != nil {
			return domain.Book{}, false, err
		}
	}
	previous, found, err := a.store.GetBook(id)
	if err != nil || !found {
		return domain.Book{}, found, err
	}
	book, found, err := a.store.UpdateBook(id, input)
	if err != nil || !found {
		return domain.Book{}, found, err
	}
	book.CoverImagePath = previous.CoverImagePath
	if cover != nil {
		book, err = a.storeCover(book, *cover)
		if err != nil {
			return domain.Book{}, true, err
		}
		if key, ok := coverKeyFromPath(previous.CoverImagePath); ok {
			_ = a.objects.Delete(context.Background(), key)
		}
	}
	return book, true, nil
}

// DeleteBook removes the book row, its links, and its stored cover.
func (a *App) DeleteBook(id uint) (bool, error) {
	book, found, err := a.store.GetBook(id)
	if err != nil || !found {
		return found, err
	}
	deleted, err := a.store.DeleteBook(id)
	if err != nil || !deleted {
		return deleted, err
	}
	if key, ok := coverKeyFromPath(book.CoverImagePath); ok {
		_ = a.objects.Delete(context.Background(), key)
	}
	return true, nil
}

func (a *App) storeCover(book domain.Book, cover UploadedFile) (domain.Book, error) {
	key := newCoverKey(cover.Filename)
	if err := a.objects.Put(context.Background(), key, cover.Reader, cover.Size, contentTypeForFilename(cover.Filename)); err != nil {
		return domain.Book{}, fmt.Errorf("store cover: %w", err)
	}
	path := uploadURLPrefix + key
	if err := a.store.SetBookCover(book.ID, path); err != nil {
		_ = a.objects.Delete(context.Background(), key)
		return domain.Book{}, fmt.Errorf("record cover: %w", err)
	}
	book.CoverImagePath = path
	return book, nil
}

func coverKeyFromPath(path string) (string, bool) {
	if !strings.HasPrefix(path, uploadURLPrefix) {
		return "", false
	}
	key := strings.TrimPrefix(path, uploadURLPrefix)
	return key, key != ""
}

func validateBookInput(input domain.BookInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(input.Title) > 200 {
		return fmt.Errorf("%w: title exceeds 200 characters", ErrValidation)
	}
	if input.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if input.StockQuantity < 0 {
		return fmt.Errorf("%w: stockQuantity must not be negative", ErrValidation)
	}
	if input.NumberOfPages < 0 {
		return fmt.Errorf("%w: numberOfPages must not be negative", ErrValidation)
	}
	return nil
}
