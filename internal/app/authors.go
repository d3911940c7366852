package app

import (
	"fmt"
	"strings"

	"bookstore/pkg/domain"
)

// ListAuthors returns all authors.
func (a *App) ListAuthors() ([]domain.Author, error) {
	return a.store.ListAuthors()
}

// GetAuthor retrieves an author by ID.
func (a *App) GetAuthor(id uint) (domain.Author, bool, error) {
	return a.store.GetAuthor(id)
}

// CreateAuthor validates and creates an author.
func (a *App) CreateAuthor(author domain.Author) (domain.Author, error) {
	if err := validateAuthor(author); err != nil {
		return domain.Author{}, err
	}
	return a.store.CreateAuthor(author)
}

// UpdateAuthor rewrites an author. A body ID that contradicts the route ID
// rejects the request before any lookup.
func (a *App) UpdateAuthor(routeID uint, author domain.Author) (domain.Author, bool, error) {
	if author.ID != 0 && author.ID != routeID {
		return domain.Author{}, false, ErrIDMismatch
	}
	author.ID = routeID
	if err := validateAuthor(author); err != nil {
		return domain.Author{}, false, err
	}
	return a.store.UpdateAuthor(author)
}

// DeleteAuthor removes the author; linked books merely lose the link.
func (a *App) DeleteAuthor(id uint) (bool, error) {
	return a.store.DeleteAuthor(id)
}

func validateAuthor(author domain.Author) error {
	if strings.TrimSpace(author.FirstName) == "" {
		return fmt.Errorf("%w: firstName is required", ErrValidation)
	}
	if strings.TrimSpace(author.LastName) == "" {
		return fmt.Errorf("%w: lastName is required", ErrValidation)
	}
	if len(author.FirstName) > 50 || len(author.LastName) > 50 {
		return fmt.Errorf("%w: name exceeds 50 characters", ErrValidation)
	}
	return nil
}
