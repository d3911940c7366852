package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"bookstore/internal/app"
	"bookstore/internal/util"
	"bookstore/pkg/domain"
)

// Limiter throttles requests per client key.
type Limiter interface {
	Allow(key string) bool
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App

	// AuthLimiter throttles register and login when set.
	AuthLimiter Limiter

	// UploadsDir enables static serving of stored files under /uploads/
	// when the local storage driver is active.
	UploadsDir string
}

// Server exposes the bookstore HTTP API.
type Server struct {
	app         *app.App
	authLimiter Limiter
	mux         *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:         cfg.App,
		authLimiter: cfg.AuthLimiter,
		mux:         http.NewServeMux(),
	}
	s.routes(cfg.UploadsDir)
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes(uploadsDir string) {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.Handle("/api/auth/register", s.rateLimited(s.handleRegister))
	s.mux.Handle("/api/auth/login", s.rateLimited(s.handleLogin))
	s.mux.Handle("/api/auth/profile", s.authenticated(s.handleProfile))

	// catalog
	s.mux.HandleFunc("/api/books", s.handleBooks)
	s.mux.HandleFunc("/api/books/", s.handleBookByID)
	s.mux.HandleFunc("/api/categories", s.handleCategories)
	s.mux.HandleFunc("/api/categories/", s.handleCategoryByID)
	s.mux.HandleFunc("/api/authors", s.handleAuthors)
	s.mux.HandleFunc("/api/authors/", s.handleAuthorByID)

	// accounts
	s.mux.HandleFunc("/api/users", s.handleUsers)
	s.mux.HandleFunc("/api/users/", s.handleUserByID)

	// standalone uploads
	s.mux.HandleFunc("/api/fileupload/upload", s.handleFileUpload)
	s.mux.HandleFunc("/api/fileupload/delete/", s.handleFileDelete)

	if uploadsDir != "" {
		s.mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadsDir))))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) rateLimited(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authLimiter != nil && !s.authLimiter.Allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next(w, r)
	})
}

// auth handlers

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Register(req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// book handlers

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListBooks(w, r)
	case http.MethodPost:
		s.handleCreateBook(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	filter, err := parseBookFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	books, err := s.app.ListBooks(filter)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	setContentRange(w, "books", len(books))
	writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	input, _, cover, cleanup, err := s.readBookRequest(w, r)
	defer cleanup()
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	book, err := s.app.CreateBook(input, cover)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (s *Server) handleBookByID(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/books/")
	if raw == "" || strings.Contains(raw, "/") {
		notFound(w, "not found")
		return
	}
	id, ok := parseID(raw)
	if !ok {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		book, found, err := s.app.GetBook(id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if !found {
			notFound(w, "book not found")
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodPut:
		input, bodyID, cover, cleanup, err := s.readBookRequest(w, r)
		defer cleanup()
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if bodyID != 0 && bodyID != id {
			writeError(w, http.StatusBadRequest, app.ErrIDMismatch.Error())
			return
		}
		book, found, err := s.app.UpdateBook(id, input, cover)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if !found {
			notFound(w, "book not found")
			return
		}
		writeJSON(w, http.StatusOK, book)
	case http.MethodDelete:
		found, err := s.app.DeleteBook(id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if !found {
			notFound(w, "book not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// parseBookFilter reads the list query parameters. All present filters are
// combined with AND.
func parseBookFilter(r *http.Request) (domain.BookFilter, error) {
	filter := domain.BookFilter{}
	q := r.URL.Query()
	if v := q.Get("categoryId"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return filter, errInvalidQueryParam("categoryId")
		}
		id := uint(n)
		filter.CategoryID = &id
	}
	if v := q.Get("authorId"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return filter, errInvalidQueryParam("authorId")
		}
		id := uint(n)
		filter.AuthorID = &id
	}
	if v := q.Get("price_gte"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, errInvalidQueryParam("price_gte")
		}
		filter.PriceGTE = &f
	}
	if v := q.Get("price_lte"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return filter, errInvalidQueryParam("price_lte")
		}
		filter.PriceLTE = &f
	}
	if v := q.Get("stockQuantity_lte"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, errInvalidQueryParam("stockQuantity_lte")
		}
		filter.StockQuantityLTE = &n
	}
	filter.Query = strings.TrimSpace(q.Get("q"))
	return filter, nil
}

// category handlers

type categoryRequest struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		categories, err := s.app.ListCategories()
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		setContentRange(w, "categories", len(categories))
		writeJSON(w, http.StatusOK, categories)
	case http.MethodPost:
		var req categoryRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		category, err := s.app.CreateCategory(domain.Category{Name: req.Name, Description: req.Description})
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, category)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCategoryByID(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/categories/")
	if raw == "" || strings.Contains(raw, "/") {
		notFound(w, "not found")
		return
	}
	id, ok := parseID(raw)
	if !ok {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		category, found, err := s.app.GetCategory(id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if !found {
			notFound(w, "category not found")
			return
		}
		writeJSON(w, http.StatusOK, category)
	case http.MethodPut:
		var req categoryRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		category, found, err := s.app.UpdateCategory(id, domain.Category{ID: req.ID, Name: req.Name, Description: req.Description})
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if !found {
			notFound(w, "category not found")
			return
		}
		writeJSON(w, http.StatusOK, category)
	case http.MethodDelete:
		result, found, err := s.app.DeleteCategory(id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if !found {
			notFound(w, "category not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"deletedBookIds":  result.DeletedBookIDs,
			"detachedBookIds": result.DetachedBookIDs,
		})
	default:
		methodNotAllowed(w)
	}
}

// author handlers

type authorRequest struct {
	ID          uint   `json:"id"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Biography   string `json:"biography"`
	Nationality string `json:"nationality"`
	DateOfBirth string `json:"dateOfBirth"`
}

func (req authorRequest) toDomain() (domain.Author, error) {
	author := domain.Author{
		ID:          req.ID,
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Biography:   req.Biography,
		Nationality: strings.TrimSpace(req.Nationality),
	}
	if req.DateOfBirth != "" {
		dob, err := parseDate(req.DateOfBirth)
		if err != nil {
			return domain.Author{}, err
		}
		author.DateOfBirth = &dob
	}
	return author, nil
}

func (s *Server) handleAuthors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		authors, err := s.app.ListAuthors()
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		setContentRange(w, "authors", len(authors))
		writeJSON(w, http.StatusOK, authors)
	case http.MethodPost:
		var req authorRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		input, err := req.toDomain()
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		author, err := s.app.CreateAuthor(input)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, author)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAuthorByID(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/authors/")
	if raw == "" || strings.Contains(raw, "/") {
		notFound(w, "not found")
		return
	}
	id, ok := parseID(raw)
	if !ok {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		author, found, err := s.app.GetAuthor(id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if !found {
			notFound(w, "author not found")
			return
		}
		writeJSON(w, http.StatusOK, author)
	case http.MethodPut:
		var req authorRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		input, err := req.toDomain()
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		author, found, err := s.app.UpdateAuthor(id, input)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if !found {
			notFound(w, "author not found")
			return
		}
		writeJSON(w, http.StatusOK, author)
	case http.MethodDelete:
		found, err := s.app.DeleteAuthor(id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if !found {
			notFound(w, "author not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

// file upload handlers

func (s *Server) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if max := s.app.MaxUploadBytes(); max > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, max+(1<<20))
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	stored, err := s.app.UploadFile(app.UploadedFile{
		Filename: header.Filename,
		Size:     header.Size,
		Reader:   file,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/fileupload/delete/")
	if name == "" || strings.Contains(name, "/") {
		notFound(w, "not found")
		return
	}
	deleted, err := s.app.DeleteFile(name)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	if !deleted {
		notFound(w, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// user handlers

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.ListUsers()
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	setContentRange(w, "users", len(users))
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		user, found, err := s.app.GetUser(id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if !found {
			notFound(w, "user not found")
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodPut:
		var req struct {
			FirstName string `json:"firstName"`
			LastName  string `json:"lastName"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		user, found, err := s.app.UpdateUserName(id, req.FirstName, req.LastName)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if !found {
			notFound(w, "user not found")
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		found, err := s.app.DeactivateUser(id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		if !found {
			notFound(w, "user not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}
