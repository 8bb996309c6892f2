package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"contactbook/backend/internal/model"
	"contactbook/backend/internal/repository"
	"contactbook/backend/internal/service"
)

type contextKey string

const userContextKey contextKey = "authUser"

type Server struct {
	cfg        Config
	db         *sql.DB
	log        *slog.Logger
	tokens     *TokenManager
	tokenStore TokenStore
	users      repository.UserStore
	contacts   *service.ContactService
	stats      *service.StatsService
	limiter    *keyedLimiter
	uploads    *uploadStore
	mux        *http.ServeMux
	http       *http.Server
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type contactCreateRequest struct {
	Name         string             `json:"name"`
	Email        string             `json:"email"`
	Phone        string             `json:"phone"`
	Address      string             `json:"address"`
	Category     string             `json:"category"`
	IsFavorite   model.FavoriteFlag `json:"is_favorite"`
	Notes        string             `json:"notes"`
	ProfileImage string             `json:"profile_image"`
}

type contactUpdateRequest struct {
	Name          *string             `json:"name"`
	Email         *string             `json:"email"`
	Phone         *string             `json:"phone"`
	Address       *string             `json:"address"`
	Category      *string             `json:"category"`
	IsFavorite    *model.FavoriteFlag `json:"is_favorite"`
	Notes         *string             `json:"notes"`
	ProfileImage  *string             `json:"profile_image"`
	ExistingImage *string             `json:"existing_image"`
}

type contactFormRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Message   string `json:"message"`
}

type responseError struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func NewServer(cfg Config) (*Server, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		return nil, err
	}

	s, err := newServer(cfg, db,
		repository.NewSQLUserStore(db),
		repository.NewSQLContactStore(db),
		NewSQLTokenStore(db),
	)
	if err != nil {
		return nil, err
	}

	if cfg.AdminInitEnabled {
		if err := s.InitFirstAdmin(context.Background(), cfg.AdminInitName, cfg.AdminInitEmail, cfg.AdminInitPass); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// newServer wires the handler surface over injected stores. Tests use it with
// the in-memory store instead of MySQL.
func newServer(cfg Config, db *sql.DB, users repository.UserStore, contactStore repository.ContactStore, tokenStore TokenStore) (*Server, error) {
	uploads, err := newUploadStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		db:         db,
		log:        slog.Default(),
		tokens:     NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		tokenStore: tokenStore,
		users:      users,
		contacts:   service.NewContactService(contactStore),
		stats:      service.NewStatsService(contactStore),
		limiter:    newKeyedLimiter(cfg.LoginRatePerMinute, cfg.LoginRateBurst),
		uploads:    uploads,
		mux:        http.NewServeMux(),
	}
	s.registerRoutes()
	s.http = &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

func (s *Server) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Server) ListenAndServe() error {
	s.log.Info("backend listening", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /", s.handleRoot)

	s.mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/refresh", s.handleRefresh)
	s.mux.HandleFunc("POST /api/auth/logout", s.handleLogout)

	s.mux.Handle("GET /api/contacts", s.withAuth(http.HandlerFunc(s.handleListContacts)))
	s.mux.Handle("POST /api/contacts", s.withAuth(http.HandlerFunc(s.handleCreateContact)))
	s.mux.Handle("GET /api/contacts/{id}", s.withAuth(http.HandlerFunc(s.handleGetContact)))
	s.mux.Handle("PUT /api/contacts/{id}", s.withAuth(http.HandlerFunc(s.handleUpdateContact)))
	s.mux.Handle("DELETE /api/contacts/{id}", s.withAuth(http.HandlerFunc(s.handleDeleteContact)))
	s.mux.Handle("PATCH /api/contacts/{id}/favorite", s.withAuth(http.HandlerFunc(s.handleToggleFavorite)))

	s.mux.Handle("GET /api/dashboard", s.withAuth(http.HandlerFunc(s.handleDashboard)))

	s.mux.Handle("GET /api/admin/users", s.withAuth(s.withRole(model.RoleAdmin, http.HandlerFunc(s.handleAdminListUsers))))
	s.mux.Handle("DELETE /api/admin/users/{id}", s.withAuth(s.withRole(model.RoleAdmin, http.HandlerFunc(s.handleAdminDeleteUser))))
	s.mux.Handle("GET /api/admin/contacts", s.withAuth(s.withRole(model.RoleAdmin, http.HandlerFunc(s.handleAdminListContacts))))
	s.mux.Handle("DELETE /api/admin/contacts/{id}", s.withAuth(s.withRole(model.RoleAdmin, http.HandlerFunc(s.handleAdminDeleteContact))))

	s.mux.HandleFunc("POST /api/contact-form/contact", s.handleContactForm)

	s.mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.cfg.UploadDir))))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Service: "backend"})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("contact manager backend"))
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeErr(w, http.StatusBadRequest, "name, email, and password are required")
		return
	}
	if len(req.Password) < 6 {
		writeErr(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}
	role := model.RoleUser
	if req.Role != "" {
		parsed, ok := model.ParseRole(req.Role)
		if !ok {
			writeErr(w, http.StatusBadRequest, "invalid role")
			return
		}
		role = parsed
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	id, err := s.users.Create(r.Context(), repository.CreateUserInput{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			writeErr(w, http.StatusBadRequest, "Email already registered")
			return
		}
		s.log.Error("signup failed", "err", err)
		writeErr(w, http.StatusInternalServerError, "failed to sign up")
		return
	}

	pair, err := s.issueTokens(r.Context(), UserClaims{UserID: id, Email: req.Email, Role: string(role)})
	if err != nil {
		s.log.Error("token issue failed", "err", err)
		writeErr(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":      "User created successfully",
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"user": map[string]interface{}{
			"id":    id,
			"name":  req.Name,
			"email": req.Email,
			"role":  role,
		},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" || req.Role == "" {
		writeErr(w, http.StatusBadRequest, "email, password, and role are required")
		return
	}
	requestedRole, ok := model.ParseRole(req.Role)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid role")
		return
	}
	if !s.limiter.Allow(req.Email) {
		writeErr(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		return
	}

	user, err := s.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			writeErr(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		s.log.Error("login lookup failed", "err", err)
		writeErr(w, http.StatusInternalServerError, "failed to login")
		return
	}
	if !CheckPassword(user.PasswordHash, req.Password) {
		writeErr(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if user.Role != requestedRole {
		writeErr(w, http.StatusForbidden, "access denied: account does not have "+string(requestedRole)+" privileges")
		return
	}

	pair, err := s.issueTokens(r.Context(), UserClaims{UserID: user.ID, Email: user.Email, Role: string(user.Role)})
	if err != nil {
		s.log.Error("token issue failed", "err", err)
		writeErr(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Login successful",
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"user":         user.Public(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeErr(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	claims, err := s.tokens.ParseToken(req.RefreshToken)
	if err != nil {
		writeErr(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if claims["type"] != "refresh" {
		writeErr(w, http.StatusUnauthorized, "invalid refresh token type")
		return
	}
	active, err := s.tokenStore.IsActive(r.Context(), req.RefreshToken)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to validate refresh token")
		return
	}
	if !active {
		writeErr(w, http.StatusUnauthorized, "refresh token is revoked or expired")
		return
	}

	sub, _ := claims["sub"].(string)
	userID, err := model.ParseOwnerID(sub)
	if err != nil {
		writeErr(w, http.StatusUnauthorized, "invalid token subject")
		return
	}
	user, err := s.users.FindByID(r.Context(), userID)
	if err != nil {
		writeErr(w, http.StatusUnauthorized, "user not found")
		return
	}

	if err := s.tokenStore.Revoke(r.Context(), req.RefreshToken); err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to rotate refresh token")
		return
	}
	pair, err := s.issueTokens(r.Context(), UserClaims{UserID: user.ID, Email: user.Email, Role: string(user.Role)})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeErr(w, http.StatusBadRequest, "refreshToken is required")
		return
	}
	if _, err := s.tokens.ParseToken(req.RefreshToken); err != nil {
		writeErr(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if err := s.tokenStore.Revoke(r.Context(), req.RefreshToken); err != nil {
		writeErr(w, http.StatusInternalServerError, "failed to logout")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) issueTokens(ctx context.Context, claims UserClaims) (TokenPair, error) {
	pair, _, refreshExpiresAt, err := s.tokens.GenerateTokenPair(claims)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.tokenStore.Store(ctx, claims.UserID, pair.RefreshToken, refreshExpiresAt); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.contacts.ListMine(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		s.respondContactError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) handleCreateContact(w http.ResponseWriter, r *http.Request) {
	input, err := s.decodeContactCreate(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	contact, err := s.contacts.Create(r.Context(), actorFromContext(r.Context()), input)
	if err != nil {
		s.respondContactError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, contact)
}

func (s *Server) handleGetContact(w http.ResponseWriter, r *http.Request) {
	id, ok := parseContactID(w, r)
	if !ok {
		return
	}
	contact, err := s.contacts.Get(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		s.respondContactError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	id, ok := parseContactID(w, r)
	if !ok {
		return
	}
	patch, err := s.decodeContactPatch(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}

	contact, updated, err := s.contacts.Update(r.Context(), actorFromContext(r.Context()), id, patch)
	if err != nil {
		s.respondContactError(w, err)
		return
	}
	if !updated {
		writeErr(w, http.StatusBadRequest, "no fields to update")
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := parseContactID(w, r)
	if !ok {
		return
	}
	if err := s.contacts.Delete(r.Context(), actorFromContext(r.Context()), id); err != nil {
		s.respondContactError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Contact deleted successfully"})
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, ok := parseContactID(w, r)
	if !ok {
		return
	}
	contact, err := s.contacts.ToggleFavorite(r.Context(), actorFromContext(r.Context()), id)
	if err != nil {
		s.respondContactError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contact)
}

// handleDashboard degrades on internal failure: the dashboard promises
// availability over strict accuracy, so a store error yields zeroed counts
// instead of a 500. Malformed identities are still rejected.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	stats, err := s.stats.Stats(r.Context(), actor.ID)
	if err != nil {
		if service.IsValidation(err) {
			writeErr(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Warn("stats degraded to zero counts", "user_id", actor.ID, "err", err)
		writeJSON(w, http.StatusOK, model.ContactStats{})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.ListAll(r.Context())
	if err != nil {
		s.log.Error("list users failed", "err", err)
		writeErr(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		writeErr(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if id == actorFromContext(r.Context()).ID {
		writeErr(w, http.StatusBadRequest, "Cannot delete yourself")
		return
	}

	deleted, err := s.users.DeleteByID(r.Context(), id)
	if err != nil {
		s.log.Error("delete user failed", "user_id", id, "err", err)
		writeErr(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	if !deleted {
		writeErr(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func (s *Server) handleAdminListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.contacts.ListAll(r.Context())
	if err != nil {
		s.log.Error("list contacts failed", "err", err)
		writeErr(w, http.StatusInternalServerError, "failed to list contacts")
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

func (s *Server) handleAdminDeleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := parseContactID(w, r)
	if !ok {
		return
	}
	if err := s.contacts.Delete(r.Context(), actorFromContext(r.Context()), id); err != nil {
		s.respondContactError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Contact deleted successfully"})
}

func (s *Server) handleContactForm(w http.ResponseWriter, r *http.Request) {
	var req contactFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.log.Info("contact form submission",
		"first_name", req.FirstName,
		"last_name", req.LastName,
		"email", req.Email,
	)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Thank you for your message!",
	})
}

var errInvalidAdminInitInput = errors.New("email and password are required")

// InitFirstAdmin seeds the default admin account. It is a no-op once any
// admin exists; if the email belongs to a regular user, that user is promoted
// instead of creating a duplicate.
func (s *Server) InitFirstAdmin(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)
	if email == "" || password == "" {
		return errInvalidAdminInitInput
	}
	if name == "" {
		name = "Admin"
	}

	admins, err := s.users.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if admins > 0 {
		return nil
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err == nil {
		if existing.Role == model.RoleAdmin {
			return nil
		}
		return s.users.PromoteToAdmin(ctx, existing.ID)
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.users.Create(ctx, repository.CreateUserInput{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
	})
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil
	}
	return err
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			writeErr(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := s.tokens.ParseToken(tokenString)
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if claims["type"] != "access" {
			writeErr(w, http.StatusUnauthorized, "invalid access token type")
			return
		}

		// Claims travel as strings; re-validate the subject as a positive
		// integer before trusting it as an identity.
		sub, _ := claims["sub"].(string)
		userID, err := model.ParseOwnerID(sub)
		if err != nil {
			writeErr(w, http.StatusUnauthorized, "invalid token subject")
			return
		}
		rawRole, _ := claims["role"].(string)
		role, ok := model.ParseRole(rawRole)
		if !ok {
			writeErr(w, http.StatusUnauthorized, "invalid token role")
			return
		}
		email, _ := claims["email"].(string)

		ctx := context.WithValue(r.Context(), userContextKey, service.Actor{ID: userID, Email: email, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) withRole(required model.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actorFromContext(r.Context()).Role != required {
			writeErr(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorFromContext(ctx context.Context) service.Actor {
	value := ctx.Value(userContextKey)
	if value == nil {
		return service.Actor{}
	}
	actor, _ := value.(service.Actor)
	return actor
}

func (s *Server) respondContactError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrContactNotFound):
		writeErr(w, http.StatusNotFound, "Contact not found")
	case errors.Is(err, service.ErrForbidden):
		writeErr(w, http.StatusForbidden, "Access denied")
	case service.IsValidation(err):
		writeErr(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error("contact request failed", "err", err)
		writeErr(w, http.StatusInternalServerError, "Internal server error")
	}
}

func parseContactID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		writeErr(w, http.StatusBadRequest, "invalid contact id")
		return 0, false
	}
	return id, true
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func (s *Server) decodeContactCreate(r *http.Request) (service.CreateContactInput, error) {
	if !isMultipart(r) {
		var req contactCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return service.CreateContactInput{}, errors.New("invalid request body")
		}
		return service.CreateContactInput{
			Name:         req.Name,
			Email:        req.Email,
			Phone:        req.Phone,
			Address:      req.Address,
			Category:     req.Category,
			IsFavorite:   req.IsFavorite,
			Notes:        req.Notes,
			ProfileImage: req.ProfileImage,
		}, nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return service.CreateContactInput{}, errors.New("invalid multipart form")
	}
	favorite, err := model.ParseFavorite(r.FormValue("is_favorite"))
	if err != nil {
		return service.CreateContactInput{}, err
	}

	input := service.CreateContactInput{
		Name:       r.FormValue("name"),
		Email:      r.FormValue("email"),
		Phone:      r.FormValue("phone"),
		Address:    r.FormValue("address"),
		Category:   r.FormValue("category"),
		IsFavorite: favorite,
		Notes:      r.FormValue("notes"),
	}

	filename, err := s.saveUploadedImage(r)
	if err != nil {
		return service.CreateContactInput{}, err
	}
	if filename != "" {
		input.ProfileImage = filename
	} else if v := r.FormValue("existing_image"); v != "" {
		input.ProfileImage = v
	} else {
		input.ProfileImage = r.FormValue("profile_image")
	}
	return input, nil
}

func (s *Server) decodeContactPatch(r *http.Request) (repository.ContactPatch, error) {
	if !isMultipart(r) {
		var req contactUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return repository.ContactPatch{}, errors.New("invalid request body")
		}
		patch := repository.ContactPatch{
			Name:         req.Name,
			Email:        req.Email,
			Phone:        req.Phone,
			Address:      req.Address,
			Category:     req.Category,
			IsFavorite:   req.IsFavorite,
			Notes:        req.Notes,
			ProfileImage: req.ProfileImage,
		}
		if patch.ProfileImage == nil && req.ExistingImage != nil {
			patch.ProfileImage = req.ExistingImage
		}
		return patch, nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return repository.ContactPatch{}, errors.New("invalid multipart form")
	}

	patch := repository.ContactPatch{}
	form := r.MultipartForm.Value
	if v, ok := formField(form, "name"); ok {
		patch.Name = &v
	}
	if v, ok := formField(form, "email"); ok {
		patch.Email = &v
	}
	if v, ok := formField(form, "phone"); ok {
		patch.Phone = &v
	}
	if v, ok := formField(form, "address"); ok {
		patch.Address = &v
	}
	if v, ok := formField(form, "category"); ok {
		patch.Category = &v
	}
	if v, ok := formField(form, "notes"); ok {
		patch.Notes = &v
	}
	if v, ok := formField(form, "is_favorite"); ok {
		favorite, err := model.ParseFavorite(v)
		if err != nil {
			return repository.ContactPatch{}, err
		}
		patch.IsFavorite = &favorite
	}

	filename, err := s.saveUploadedImage(r)
	if err != nil {
		return repository.ContactPatch{}, err
	}
	if filename != "" {
		patch.ProfileImage = &filename
	} else if v, ok := formField(form, "existing_image"); ok {
		patch.ProfileImage = &v
	}
	return patch, nil
}

// saveUploadedImage stores the profile_image file part, if present. An absent
// part is not an error; the caller falls back to form fields.
func (s *Server) saveUploadedImage(r *http.Request) (string, error) {
	file, header, err := r.FormFile("profile_image")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", errors.New("invalid profile image upload")
	}
	defer file.Close()

	filename, err := s.uploads.Save(file, header)
	if err != nil {
		s.log.Error("image upload failed", "err", err)
		return "", errors.New("failed to store profile image")
	}
	return filename, nil
}

func formField(form map[string][]string, key string) (string, bool) {
	values, ok := form[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func writeErr(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, responseError{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to write json response", "err", err)
	}
}
