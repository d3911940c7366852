package store

import "bookstore/pkg/domain"

// Store defines persistence operations for books, authors, categories, and
// users. Multi-step mutations (book relationship replacement, category
// cascade deletion) execute as one atomic unit of work inside the store.
type Store interface {
	// books
	CreateBook(input domain.BookInput) (domain.Book, error)
	UpdateBook(id uint, input domain.BookInput) (domain.Book, bool, error)
	GetBook(id uint) (domain.Book, bool, error)
	ListBooks(filter domain.BookFilter) ([]domain.Book, error)
	DeleteBook(id uint) (bool, error)
	SetBookCover(id uint, path string) error

	// categories
	CreateCategory(category domain.Category) (domain.Category, error)
	UpdateCategory(category domain.Category) (domain.Category, bool, error)
	GetCategory(id uint) (domain.Category, bool, error)
	ListCategories() ([]domain.Category, error)
	DeleteCategory(id uint) (CascadeResult, bool, error)

	// authors
	CreateAuthor(author domain.Author) (domain.Author, error)
	UpdateAuthor(author domain.Author) (domain.Author, bool, error)
	GetAuthor(id uint) (domain.Author, bool, error)
	ListAuthors() ([]domain.Author, error)
	DeleteAuthor(id uint) (bool, error)

	// users
	SaveUser(user domain.User) error
	GetUserByID(id string) (domain.User, bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	HasUserEmail(email string) (bool, error)
	ListUsers() ([]domain.User, error)
}

// CascadeResult reports what a category deletion did to linked books:
// books whose only category was the deleted one are removed outright,
// the rest merely lose the link.
type CascadeResult struct {
	DeletedBookIDs  []uint
	DetachedBookIDs []uint
}
