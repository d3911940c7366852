package app

import (
	"fmt"
	"strings"

	"bookstore/pkg/domain"
	"bookstore/pkg/store"
)

// ListCategories returns all categories.
func (a *App) ListCategories() ([]domain.Category, error) {
	return a.store.ListCategories()
}

// GetCategory retrieves a category by ID.
func (a *App) GetCategory(id uint) (domain.Category, bool, error) {
	return a.store.GetCategory(id)
}

// CreateCategory validates and creates a category.
func (a *App) CreateCategory(category domain.Category) (domain.Category, error) {
	if err := validateCategory(category); err != nil {
		return domain.Category{}, err
	}
	return a.store.CreateCategory(category)
}

// UpdateCategory rewrites a category. A body ID that contradicts the route
// ID rejects the request before any lookup.
func (a *App) UpdateCategory(routeID uint, category domain.Category) (domain.Category, bool, error) {
	if category.ID != 0 && category.ID != routeID {
		return domain.Category{}, false, ErrIDMismatch
	}
	category.ID = routeID
	if err := validateCategory(category); err != nil {
		return domain.Category{}, false, err
	}
	return a.store.UpdateCategory(category)
}

// DeleteCategory deletes a category, removing books whose only category it
// was and detaching the rest.
func (a *App) DeleteCategory(id uint) (store.CascadeResult, bool, error) {
	return a.store.DeleteCategory(id)
}

func validateCategory(category domain.Category) error {
	if strings.TrimSpace(category.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(category.Name) > 100 {
		return fmt.Errorf("%w: name exceeds 100 characters", ErrValidation)
	}
	return nil
}
