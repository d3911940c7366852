package store

import (
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bookstore/pkg/domain"
)

const migrateLockID int64 = 82930167

// GormStore implements Store using GORM. Production runs it on Postgres;
// tests open it on SQLite via NewGormStoreWithDialector.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens a Postgres-backed store and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	return NewGormStoreWithDialector(postgres.Open(dsn))
}

// NewGormStoreWithDialector opens the store on any GORM dialector and runs
// auto-migrations.
func NewGormStoreWithDialector(dialector gorm.Dialector) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate(db); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func migrate(db *gorm.DB) error {
	run := func(tx *gorm.DB) error {
		return tx.AutoMigrate(
			&BookModel{},
			&AuthorModel{},
			&CategoryModel{},
			&BookAuthorModel{},
			&BookCategoryModel{},
			&UserModel{},
		)
	}
	// Serialize concurrent migrations when several instances start against
	// the same Postgres database.
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("SELECT pg_advisory_lock(?)", migrateLockID).Error; err != nil {
			return fmt.Errorf("acquire migrate lock: %w", err)
		}
		defer db.Exec("SELECT pg_advisory_unlock(?)", migrateLockID)
	}
	if err := run(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// CreateBook inserts the book row and one junction row per unique supplied
// category and author ID, as one transaction. An unknown relationship ID
// fails the whole write with a foreign-key violation.
func (s *GormStore) CreateBook(input domain.BookInput) (domain.Book, error) {
	model := BookModel{CreatedAt: time.Now().UTC()}
	applyBookInput(&model, input)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&model).Error; err != nil {
			return err
		}
		return replaceBookLinks(tx, model.ID, input.CategoryIDs, input.AuthorIDs, false)
	})
	if err != nil {
		return domain.Book{}, err
	}
	book, _, err := s.GetBook(model.ID)
	return book, err
}

// UpdateBook applies the scalar fields and replaces the full set of category
// and author links with the supplied lists. The previous links are removed
// unconditionally; the supplied lists are authoritative.
func (s *GormStore) UpdateBook(id uint, input domain.BookInput) (domain.Book, bool, error) {
	found := true
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model BookModel
		if err := tx.First(&model, id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				found = false
				return nil
			}
			return err
		}
		applyBookInput(&model, input)
		now := time.Now().UTC()
		model.UpdatedAt = &now
		if err := tx.Omit(clause.Associations).Save(&model).Error; err != nil {
			return err
		}
		return replaceBookLinks(tx, id, input.CategoryIDs, input.AuthorIDs, true)
	})
	if err != nil || !found {
		return domain.Book{}, found, err
	}
	book, _, err := s.GetBook(id)
	return book, true, err
}

// replaceBookLinks synchronizes junction rows for a book. Duplicate IDs in
// the input collapse to a single row per unique pair.
func replaceBookLinks(tx *gorm.DB, bookID uint, categoryIDs, authorIDs []uint, dropExisting bool) error {
	if dropExisting {
		if err := tx.Where("book_id = ?", bookID).Delete(&BookCategoryModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("book_id = ?", bookID).Delete(&BookAuthorModel{}).Error; err != nil {
			return err
		}
	}
	if ids := uniqueIDs(categoryIDs); len(ids) > 0 {
		rows := make([]BookCategoryModel, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, BookCategoryModel{BookID: bookID, CategoryID: id})
		}
		if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
			return err
		}
	}
	if ids := uniqueIDs(authorIDs); len(ids) > 0 {
		rows := make([]BookAuthorModel, 0, len(ids))
		for _, id := range ids {
			rows = append(rows, BookAuthorModel{BookID: bookID, AuthorID: id})
		}
		if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetBook retrieves a book with its categories and authors resolved.
func (s *GormStore) GetBook(id uint) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	books, err := s.attachRelations([]BookModel{model})
	if err != nil {
		return domain.Book{}, false, err
	}
	return books[0], true, nil
}

// ListBooks returns the full filtered set ordered by title ascending.
func (s *GormStore) ListBooks(filter domain.BookFilter) ([]domain.Book, error) {
	tx := s.db.Model(&BookModel{})
	if filter.CategoryID != nil {
		tx = tx.Where("id IN (SELECT book_id FROM book_categories WHERE category_id = ?)", *filter.CategoryID)
	}
	if filter.AuthorID != nil {
		tx = tx.Where("id IN (SELECT book_id FROM book_authors WHERE author_id = ?)", *filter.AuthorID)
	}
	if filter.PriceGTE != nil {
		tx = tx.Where("price >= ?", *filter.PriceGTE)
	}
	if filter.PriceLTE != nil {
		tx = tx.Where("price <= ?", *filter.PriceLTE)
	}
	if filter.StockQuantityLTE != nil {
		tx = tx.Where("stock_quantity <= ?", *filter.StockQuantityLTE)
	}
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		tx = tx.Where("title LIKE ? OR description LIKE ?", pattern, pattern)
	}
	var models []BookModel
	if err := tx.Order("title ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return s.attachRelations(models)
}

// DeleteBook removes the book and its junction rows in one transaction.
func (s *GormStore) DeleteBook(id uint) (bool, error) {
	found := true
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model BookModel
		if err := tx.First(&model, id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				found = false
				return nil
			}
			return err
		}
		if err := tx.Where("book_id = ?", id).Delete(&BookCategoryModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("book_id = ?", id).Delete(&BookAuthorModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&BookModel{}, id).Error
	})
	return found, err
}

// SetBookCover records the stored cover path on the book row.
func (s *GormStore) SetBookCover(id uint, path string) error {
	return s.db.Model(&BookModel{}).Where("id = ?", id).
		Update("cover_image_path", path).Error
}

// CreateCategory inserts a category with CreatedAt set server-side.
func (s *GormStore) CreateCategory(category domain.Category) (domain.Category, error) {
	model := CategoryModel{
		Name:        category.Name,
		Description: category.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Category{}, err
	}
	return categoryFromModel(model), nil
}

// UpdateCategory rewrites name and description and refreshes UpdatedAt.
func (s *GormStore) UpdateCategory(category domain.Category) (domain.Category, bool, error) {
	var model CategoryModel
	if err := s.db.First(&model, category.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Category{}, false, nil
		}
		return domain.Category{}, false, err
	}
	now := time.Now().UTC()
	model.Name = category.Name
	model.Description = category.Description
	model.UpdatedAt = &now
	if err := s.db.Save(&model).Error; err != nil {
		return domain.Category{}, false, err
	}
	return categoryFromModel(model), true, nil
}

// GetCategory returns a category by ID.
func (s *GormStore) GetCategory(id uint) (domain.Category, bool, error) {
	var model CategoryModel
	if err := s.db.First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Category{}, false, nil
		}
		return domain.Category{}, false, err
	}
	return categoryFromModel(model), true, nil
}

// ListCategories returns all categories ordered by name.
func (s *GormStore) ListCategories() ([]domain.Category, error) {
	var models []CategoryModel
	if err := s.db.Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Category, 0, len(models))
	for _, m := range models {
		res = append(res, categoryFromModel(m))
	}
	return res, nil
}

// DeleteCategory deletes a category and resolves the fate of every linked
// book: a book whose only category is the one being deleted is removed
// entirely, a book with other categories just loses the link. The whole
// sequence commits as one transaction; a failure partway leaves nothing
// applied.
func (s *GormStore) DeleteCategory(id uint) (CascadeResult, bool, error) {
	result := CascadeResult{}
	found := true
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var category CategoryModel
		if err := tx.First(&category, id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				found = false
				return nil
			}
			return err
		}
		var links []BookCategoryModel
		if err := tx.Where("category_id = ?", id).Find(&links).Error; err != nil {
			return err
		}
		for _, bookID := range uniqueLinkBookIDs(links) {
			var total int64
			if err := tx.Model(&BookCategoryModel{}).
				Where("book_id = ?", bookID).
				Count(&total).Error; err != nil {
				return err
			}
			if total == 1 {
				// Sole category: a category-less book is invalid inventory
				// state, so the book goes with it.
				if err := tx.Where("book_id = ?", bookID).Delete(&BookCategoryModel{}).Error; err != nil {
					return err
				}
				if err := tx.Where("book_id = ?", bookID).Delete(&BookAuthorModel{}).Error; err != nil {
					return err
				}
				if err := tx.Delete(&BookModel{}, bookID).Error; err != nil {
					return err
				}
				result.DeletedBookIDs = append(result.DeletedBookIDs, bookID)
				continue
			}
			if err := tx.Where("book_id = ? AND category_id = ?", bookID, id).
				Delete(&BookCategoryModel{}).Error; err != nil {
				return err
			}
			result.DetachedBookIDs = append(result.DetachedBookIDs, bookID)
		}
		return tx.Delete(&CategoryModel{}, id).Error
	})
	if err != nil || !found {
		return CascadeResult{}, found, err
	}
	sort.Slice(result.DeletedBookIDs, func(i, j int) bool { return result.DeletedBookIDs[i] < result.DeletedBookIDs[j] })
	sort.Slice(result.DetachedBookIDs, func(i, j int) bool { return result.DetachedBookIDs[i] < result.DetachedBookIDs[j] })
	return result, true, nil
}

// CreateAuthor inserts an author with CreatedAt set server-side.
func (s *GormStore) CreateAuthor(author domain.Author) (domain.Author, error) {
	model := authorToModel(author)
	model.CreatedAt = time.Now().UTC()
	model.UpdatedAt = nil
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Author{}, err
	}
	return authorFromModel(model), nil
}

// UpdateAuthor rewrites the author fields and refreshes UpdatedAt.
func (s *GormStore) UpdateAuthor(author domain.Author) (domain.Author, bool, error) {
	var model AuthorModel
	if err := s.db.First(&model, author.ID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Author{}, false, nil
		}
		return domain.Author{}, false, err
	}
	now := time.Now().UTC()
	model.FirstName = author.FirstName
	model.LastName = author.LastName
	model.Biography = author.Biography
	model.Nationality = author.Nationality
	model.DateOfBirth = dateOrNil(author.DateOfBirth)
	model.UpdatedAt = &now
	if err := s.db.Save(&model).Error; err != nil {
		return domain.Author{}, false, err
	}
	return authorFromModel(model), true, nil
}

// GetAuthor returns an author by ID.
func (s *GormStore) GetAuthor(id uint) (domain.Author, bool, error) {
	var model AuthorModel
	if err := s.db.First(&model, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Author{}, false, nil
		}
		return domain.Author{}, false, err
	}
	return authorFromModel(model), true, nil
}

// ListAuthors returns all authors ordered by last then first name.
func (s *GormStore) ListAuthors() ([]domain.Author, error) {
	var models []AuthorModel
	if err := s.db.Order("last_name ASC, first_name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Author, 0, len(models))
	for _, m := range models {
		res = append(res, authorFromModel(m))
	}
	return res, nil
}

// DeleteAuthor removes the author and its junction rows in one transaction.
func (s *GormStore) DeleteAuthor(id uint) (bool, error) {
	found := true
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var model AuthorModel
		if err := tx.First(&model, id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				found = false
				return nil
			}
			return err
		}
		if err := tx.Where("author_id = ?", id).Delete(&BookAuthorModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&AuthorModel{}, id).Error
	})
	return found, err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(user domain.User) error {
	model := userToModel(user)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "password_hash", "first_name", "last_name", "is_active", "updated_at"}),
	}).Create(&model).Error
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// attachRelations resolves categories and authors for a batch of books with
// two junction queries instead of one pair per book.
func (s *GormStore) attachRelations(models []BookModel) ([]domain.Book, error) {
	books := make([]domain.Book, 0, len(models))
	if len(models) == 0 {
		return books, nil
	}
	ids := make([]uint, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	var categoryLinks []BookCategoryModel
	if err := s.db.Preload("Category").Where("book_id IN ?", ids).Find(&categoryLinks).Error; err != nil {
		return nil, err
	}
	var authorLinks []BookAuthorModel
	if err := s.db.Preload("Author").Where("book_id IN ?", ids).Find(&authorLinks).Error; err != nil {
		return nil, err
	}
	categoriesByBook := make(map[uint][]domain.Category)
	for _, link := range categoryLinks {
		categoriesByBook[link.BookID] = append(categoriesByBook[link.BookID], categoryFromModel(link.Category))
	}
	authorsByBook := make(map[uint][]domain.Author)
	for _, link := range authorLinks {
		authorsByBook[link.BookID] = append(authorsByBook[link.BookID], authorFromModel(link.Author))
	}
	for _, m := range models {
		book := bookFromModel(m)
		for _, c := range categoriesByBook[m.ID] {
			book.CategoryIDs = append(book.CategoryIDs, c.ID)
			book.Categories = append(book.Categories, c)
		}
		for _, a := range authorsByBook[m.ID] {
			book.AuthorIDs = append(book.AuthorIDs, a.ID)
			book.Authors = append(book.Authors, a)
		}
		books = append(books, book)
	}
	return books, nil
}

func applyBookInput(model *BookModel, input domain.BookInput) {
	model.Title = input.Title
	model.ISBN = input.ISBN
	model.Description = input.Description
	model.Price = input.Price
	model.StockQuantity = input.StockQuantity
	model.PublishedDate = datatypes.Date(input.PublishedDate)
	model.Publisher = input.Publisher
	model.NumberOfPages = input.NumberOfPages
	model.Language = input.Language
	model.IsActive = input.IsActive
}

func bookFromModel(m BookModel) domain.Book {
	return domain.Book{
		ID:             m.ID,
		Title:          m.Title,
		ISBN:           m.ISBN,
		Description:    m.Description,
		Price:          m.Price,
		StockQuantity:  m.StockQuantity,
		PublishedDate:  time.Time(m.PublishedDate),
		CoverImagePath: m.CoverImagePath,
		Publisher:      m.Publisher,
		NumberOfPages:  m.NumberOfPages,
		Language:       m.Language,
		IsActive:       m.IsActive,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
		CategoryIDs:    []uint{},
		AuthorIDs:      []uint{},
	}
}

func categoryFromModel(m CategoryModel) domain.Category {
	return domain.Category{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func authorToModel(a domain.Author) AuthorModel {
	return AuthorModel{
		ID:          a.ID,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Biography:   a.Biography,
		Nationality: a.Nationality,
		DateOfBirth: dateOrNil(a.DateOfBirth),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func authorFromModel(m AuthorModel) domain.Author {
	var dob *time.Time
	if m.DateOfBirth != nil {
		t := time.Time(*m.DateOfBirth)
		dob = &t
	}
	return domain.Author{
		ID:          m.ID,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Biography:   m.Biography,
		Nationality: m.Nationality,
		DateOfBirth: dob,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func dateOrNil(t *time.Time) *datatypes.Date {
	if t == nil {
		return nil
	}
	d := datatypes.Date(*t)
	return &d
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func uniqueLinkBookIDs(links []BookCategoryModel) []uint {
	ids := make([]uint, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.BookID)
	}
	return uniqueIDs(ids)
}
