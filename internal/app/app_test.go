package app

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"

	"bookstore/pkg/auth"
	"bookstore/pkg/domain"
	"bookstore/pkg/storage"
	"bookstore/pkg/store"
)

func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)"
	dataStore, err := store.NewGormStoreWithDialector(sqlite.Open(dsn))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	uploadsDir := t.TempDir()
	objects, err := storage.NewLocalStore(uploadsDir)
	if err != nil {
		t.Fatalf("open local storage: %v", err)
	}
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	a, err := New(Config{
		Store:          dataStore,
		Objects:        objects,
		Tokens:         tokens,
		MaxUploadBytes: 1024,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a, uploadsDir
}

func testBookInput(t *testing.T, a *App) domain.BookInput {
	t.Helper()
	category, err := a.CreateCategory(domain.Category{Name: "Fiction"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	return domain.BookInput{
		Title:         "Emma",
		Price:         12.5,
		StockQuantity: 3,
		PublishedDate: time.Date(1815, 12, 23, 0, 0, 0, 0, time.UTC),
		Language:      "English",
		IsActive:      true,
		CategoryIDs:   []uint{category.ID},
	}
}

func pngUpload(name string, size int) *UploadedFile {
	data := bytes.Repeat([]byte{0x42}, size)
	return &UploadedFile{Filename: name, Size: int64(size), Reader: bytes.NewReader(data)}
}

func coverDiskPath(t *testing.T, uploadsDir, coverPath string) string {
	t.Helper()
	key := strings.TrimPrefix(coverPath, "/uploads/")
	if key == coverPath {
		t.Fatalf("cover path %q lacks the uploads prefix", coverPath)
	}
	return filepath.Join(uploadsDir, filepath.FromSlash(key))
}

func TestCreateBookStoresCover(t *testing.T) {
	a, uploadsDir := newTestApp(t)
	book, err := a.CreateBook(testBookInput(t, a), pngUpload("cover.png", 64))
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	if !strings.HasPrefix(book.CoverImagePath, "/uploads/covers/") {
		t.Fatalf("cover path = %q", book.CoverImagePath)
	}
	if !strings.HasSuffix(book.CoverImagePath, ".png") {
		t.Fatalf("cover path should keep the extension, got %q", book.CoverImagePath)
	}
	if _, err := os.Stat(coverDiskPath(t, uploadsDir, book.CoverImagePath)); err != nil {
		t.Fatalf("cover file missing: %v", err)
	}
}

func TestCreateBookRejectsBadUploads(t *testing.T) {
	a, _ := newTestApp(t)
	input := testBookInput(t, a)

	if _, err := a.CreateBook(input, pngUpload("malware.exe", 64)); !errors.Is(err, ErrFileTypeNotAllowed) {
		t.Fatalf("exe upload: err = %v", err)
	}
	if _, err := a.CreateBook(input, pngUpload("huge.png", 4096)); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("oversized upload: err = %v", err)
	}
	if _, err := a.CreateBook(input, pngUpload("empty.png", 0)); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("empty upload: err = %v", err)
	}
	// A rejected cover must not create the book either.
	books, err := a.ListBooks(domain.BookFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != 0 {
		t.Fatalf("expected no books, got %d", len(books))
	}
}

func TestUpdateBookReplacesCover(t *testing.T) {
	a, uploadsDir := newTestApp(t)
	input := testBookInput(t, a)
	book, err := a.CreateBook(input, pngUpload("first.png", 64))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	oldPath := coverDiskPath(t, uploadsDir, book.CoverImagePath)

	updated, found, err := a.UpdateBook(book.ID, input, pngUpload("second.jpg", 64))
	if err != nil || !found {
		t.Fatalf("update: found=%v err=%v", found, err)
	}
	if updated.CoverImagePath == book.CoverImagePath {
		t.Fatalf("cover path should change on replacement")
	}
	if _, err := os.Stat(coverDiskPath(t, uploadsDir, updated.CoverImagePath)); err != nil {
		t.Fatalf("new cover missing: %v", err)
	}
	if _, err := os.Stat(oldPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("old cover should be removed, stat err = %v", err)
	}
}

func TestUpdateBookKeepsCoverWithoutNewUpload(t *testing.T) {
	a, _ := newTestApp(t)
	input := testBookInput(t, a)
	book, err := a.CreateBook(input, pngUpload("keep.png", 64))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	updated, found, err := a.UpdateBook(book.ID, input, nil)
	if err != nil || !found {
		t.Fatalf("update: found=%v err=%v", found, err)
	}
	if updated.CoverImagePath != book.CoverImagePath {
		t.Fatalf("cover path changed: %q -> %q", book.CoverImagePath, updated.CoverImagePath)
	}
}

func TestDeleteBookRemovesCover(t *testing.T) {
	a, uploadsDir := newTestApp(t)
	book, err := a.CreateBook(testBookInput(t, a), pngUpload("gone.png", 64))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	found, err := a.DeleteBook(book.ID)
	if err != nil || !found {
		t.Fatalf("delete: found=%v err=%v", found, err)
	}
	if _, err := os.Stat(coverDiskPath(t, uploadsDir, book.CoverImagePath)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("cover should be removed, stat err = %v", err)
	}
}

func TestCreateBookValidatesInput(t *testing.T) {
	a, _ := newTestApp(t)
	input := testBookInput(t, a)
	input.Title = "  "
	if _, err := a.CreateBook(input, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank title: err = %v", err)
	}
	input = testBookInput(t, a)
	input.Price = -1
	if _, err := a.CreateBook(input, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative price: err = %v", err)
	}
}

func TestUpdateCategoryIDMismatch(t *testing.T) {
	a, _ := newTestApp(t)
	category, err := a.CreateCategory(domain.Category{Name: "Fiction"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, _, err = a.UpdateCategory(category.ID, domain.Category{ID: category.ID + 1, Name: "Other"})
	if !errors.Is(err, ErrIDMismatch) {
		t.Fatalf("mismatched ids: err = %v", err)
	}
	// A body without an ID adopts the route ID.
	updated, found, err := a.UpdateCategory(category.ID, domain.Category{Name: "Renamed"})
	if err != nil || !found {
		t.Fatalf("update: found=%v err=%v", found, err)
	}
	if updated.Name != "Renamed" {
		t.Fatalf("name = %q", updated.Name)
	}
}

func TestUploadAndDeleteFile(t *testing.T) {
	a, uploadsDir := newTestApp(t)
	stored, err := a.UploadFile(*pngUpload("photo.png", 64))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if stored.OriginalName != "photo.png" || stored.Size != 64 {
		t.Fatalf("stored = %+v", stored)
	}
	if stored.URL != "/uploads/"+stored.FileName {
		t.Fatalf("url = %q, fileName = %q", stored.URL, stored.FileName)
	}
	if _, err := os.Stat(filepath.Join(uploadsDir, stored.FileName)); err != nil {
		t.Fatalf("file missing: %v", err)
	}

	deleted, err := a.DeleteFile(stored.FileName)
	if err != nil || !deleted {
		t.Fatalf("delete: deleted=%v err=%v", deleted, err)
	}
	deleted, err = a.DeleteFile(stored.FileName)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if deleted {
		t.Fatalf("second delete should report not found")
	}
	if _, err := a.DeleteFile("../escape.png"); !errors.Is(err, ErrValidation) {
		t.Fatalf("traversal name: err = %v", err)
	}
	if _, err := a.UploadFile(*pngUpload("doc.pdf", 64)); !errors.Is(err, ErrFileTypeNotAllowed) {
		t.Fatalf("pdf upload: err = %v", err)
	}
}

func TestUpdateUserName(t *testing.T) {
	a, _ := newTestApp(t)
	user, _, err := a.Register("reader@example.com", "secret1", "Old", "Name")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	updated, found, err := a.UpdateUserName(user.ID, "New", "Name")
	if err != nil || !found {
		t.Fatalf("update name: found=%v err=%v", found, err)
	}
	if updated.FirstName != "New" {
		t.Fatalf("firstName = %q", updated.FirstName)
	}
	if _, found, err := a.UpdateUserName("missing", "X", "Y"); err != nil || found {
		t.Fatalf("missing user: found=%v err=%v", found, err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	a, _ := newTestApp(t)
	user, token, err := a.Register("Reader@Example.com", "secret1", "Avid", "Reader")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "reader@example.com" {
		t.Fatalf("email should be normalized, got %q", user.Email)
	}
	if user.PasswordHash == "secret1" || user.PasswordHash == "" {
		t.Fatalf("password must be stored hashed")
	}
	got, ok := a.UserFromToken(token)
	if !ok || got.ID != user.ID {
		t.Fatalf("token should resolve to the registered user")
	}

	if _, _, err := a.Register("reader@example.com", "secret1", "", ""); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("duplicate email: err = %v", err)
	}
	if _, _, err := a.Login("reader@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: err = %v", err)
	}
	if _, loginToken, err := a.Login("reader@example.com", "secret1"); err != nil || loginToken == "" {
		t.Fatalf("login: token=%q err=%v", loginToken, err)
	}
}

func TestRegisterValidation(t *testing.T) {
	a, _ := newTestApp(t)
	if _, _, err := a.Register("", "secret1", "", ""); !errors.Is(err, ErrEmailAndPasswordRequired) {
		t.Fatalf("empty email: err = %v", err)
	}
	if _, _, err := a.Register("reader@example.com", "short", "", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("short password: err = %v", err)
	}
	if _, _, err := a.Register("not-an-email", "secret1", "", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad email: err = %v", err)
	}
}

func TestDeactivateUserBlocksAccess(t *testing.T) {
	a, _ := newTestApp(t)
	user, token, err := a.Register("reader@example.com", "secret1", "Avid", "Reader")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	found, err := a.DeactivateUser(user.ID)
	if err != nil || !found {
		t.Fatalf("deactivate: found=%v err=%v", found, err)
	}
	if _, _, err := a.Login("reader@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("deactivated login: err = %v", err)
	}
	if _, ok := a.UserFromToken(token); ok {
		t.Fatalf("token of a deactivated user must not resolve")
	}
	// The row survives the soft delete.
	got, found, err := a.GetUser(user.ID)
	if err != nil || !found {
		t.Fatalf("get user: found=%v err=%v", found, err)
	}
	if got.IsActive {
		t.Fatalf("user should be inactive")
	}
	// Deactivating again is a no-op.
	found, err = a.DeactivateUser(user.ID)
	if err != nil || !found {
		t.Fatalf("second deactivate: found=%v err=%v", found, err)
	}
}
