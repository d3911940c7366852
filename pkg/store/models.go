package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type BookModel struct {
	ID             uint   `gorm:"primaryKey"`
	Title          string `gorm:"size:200;not null"`
	ISBN           string `gorm:"size:20"`
	Description    string `gorm:"size:2000"`
	Price          float64 `gorm:"type:decimal(10,2);not null"`
	StockQuantity  int     `gorm:"not null;default:0"`
	PublishedDate  datatypes.Date
	CoverImagePath string `gorm:"size:500"`
	Publisher      string `gorm:"size:100"`
	NumberOfPages  int
	Language       string    `gorm:"size:20;default:English"`
	IsActive       bool      `gorm:"default:true"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      *time.Time `gorm:"autoUpdateTime:false"`
}

func (BookModel) TableName() string { return "books" }

type AuthorModel struct {
	ID          uint   `gorm:"primaryKey"`
	FirstName   string `gorm:"size:50;not null"`
	LastName    string `gorm:"size:50;not null"`
	Biography   string `gorm:"size:1000"`
	Nationality string `gorm:"size:100"`
	DateOfBirth *datatypes.Date
	CreatedAt   time.Time  `gorm:"not null"`
	UpdatedAt   *time.Time `gorm:"autoUpdateTime:false"`
}

func (AuthorModel) TableName() string { return "authors" }

type CategoryModel struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:100;not null"`
	Description string    `gorm:"size:500"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   *time.Time `gorm:"autoUpdateTime:false"`
}

func (CategoryModel) TableName() string { return "categories" }

// Junction rows carry composite keys and cascade with both parents, so a link
// never outlives its book, author, or category.
type BookAuthorModel struct {
	BookID   uint        `gorm:"primaryKey;autoIncrement:false"`
	AuthorID uint        `gorm:"primaryKey;autoIncrement:false"`
	Book     BookModel   `gorm:"constraint:OnDelete:CASCADE"`
	Author   AuthorModel `gorm:"constraint:OnDelete:CASCADE"`
}

func (BookAuthorModel) TableName() string { return "book_authors" }

type BookCategoryModel struct {
	BookID     uint          `gorm:"primaryKey;autoIncrement:false"`
	CategoryID uint          `gorm:"primaryKey;autoIncrement:false"`
	Book       BookModel     `gorm:"constraint:OnDelete:CASCADE"`
	Category   CategoryModel `gorm:"constraint:OnDelete:CASCADE"`
}

func (BookCategoryModel) TableName() string { return "book_categories" }

type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	FirstName    string `gorm:"size:50"`
	LastName     string `gorm:"size:50"`
	IsActive     bool   `gorm:"default:true"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }
