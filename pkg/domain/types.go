package domain

import (
	"strings"
	"time"
)

// Book is the catalog entry exposed over the API. CategoryIDs and AuthorIDs
// always reflect the junction rows; Categories and Authors carry the resolved
// entities for list/detail responses.
type Book struct {
	ID             uint       `json:"id"`
	Title          string     `json:"title"`
	ISBN           string     `json:"isbn,omitempty"`
	Description    string     `json:"description,omitempty"`
	Price          float64    `json:"price"`
	StockQuantity  int        `json:"stockQuantity"`
	PublishedDate  time.Time  `json:"publishedDate"`
	CoverImagePath string     `json:"coverImagePath,omitempty"`
	Publisher      string     `json:"publisher,omitempty"`
	NumberOfPages  int        `json:"numberOfPages"`
	Language       string     `json:"language"`
	IsActive       bool       `json:"isActive"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`

	CategoryIDs []uint     `json:"categoryIds"`
	AuthorIDs   []uint     `json:"authorIds"`
	Categories  []Category `json:"categories,omitempty"`
	Authors     []Author   `json:"authors,omitempty"`
}

// InStock reports whether the book has remaining inventory.
func (b Book) InStock() bool {
	return b.StockQuantity > 0
}

type Author struct {
	ID          uint       `json:"id"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Biography   string     `json:"biography,omitempty"`
	Nationality string     `json:"nationality,omitempty"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// FullName joins first and last name for display.
func (a Author) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

type Category struct {
	ID          uint       `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// User is an account record. Email doubles as the username.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FullName joins first and last name for display and token claims.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// BookInput carries the writable book fields plus the authoritative
// relationship ID lists for create and update.
type BookInput struct {
	Title         string
	ISBN          string
	Description   string
	Price         float64
	StockQuantity int
	PublishedDate time.Time
	Publisher     string
	NumberOfPages int
	Language      string
	IsActive      bool
	CategoryIDs   []uint
	AuthorIDs     []uint
}

// BookFilter restricts book listings. Nil fields are ignored; present fields
// are ANDed together.
type BookFilter struct {
	CategoryID       *uint
	AuthorID         *uint
	PriceGTE         *float64
	PriceLTE         *float64
	StockQuantityLTE *int
	Query            string
}
