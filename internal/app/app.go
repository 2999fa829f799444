// Package app provides the core business logic of the items service.
// It handles user signup and login against the credential store, token
// checks, and the create/read/update/delete rules of the item collection.
// Item operations work on a collection snapshot loaded by the caller and
// persist the whole collection through the storage layer.
package app

import (
	"errors"

	"itemstore/internal/models"
	"itemstore/internal/pkg/auth"
	"itemstore/internal/pkg/logger"
	"itemstore/internal/storage"

	"go.uber.org/zap"
)

// Predefined errors for invalid requests and item rules.
var (
	// ErrMissingNameOrPassword indicates that either the username or password is not provided.
	ErrMissingNameOrPassword = errors.New("app: missing name or password")
	// ErrMissingName indicates that an item request carries no name.
	ErrMissingName = errors.New("app: missing item name")
	// ErrItemExists indicates that an item with the requested name already exists.
	ErrItemExists = errors.New("app: item already exists")
	// ErrItemNotFound indicates that no item has the requested id.
	ErrItemNotFound = errors.New("app: item not found")
	// ErrIDsExhausted indicates that the highest item id leaves no next id.
	ErrIDsExhausted = errors.New("app: item ids exhausted")
)

// App encapsulates the application logic and dependencies required to process requests.
type App struct {
	db     storage.Storage
	users  *storage.UserStore
	tokens *auth.TokenManager
	log    *logger.Logger
}

// NewApp creates and returns a new instance of App.
func NewApp(db storage.Storage, users *storage.UserStore, tokens *auth.TokenManager, log *logger.Logger) *App {
	return &App{db: db, users: users, tokens: tokens, log: log}
}

// ProcessSignup registers a new user.
func (app *App) ProcessSignup(req models.AuthRequest) error {
	if req.Name == "" || req.Pass == "" {
		return ErrMissingNameOrPassword
	}

	if err := app.users.Register(req.Name, req.Pass); err != nil {
		if !errors.Is(err, storage.ErrUserExists) {
			app.log.Error("failed to register user", zap.String("user", req.Name), zap.Error(err))
		}
		return err
	}
	app.log.Info("user signed up", zap.String("user", req.Name))
	return nil
}

// ProcessLogin verifies the credentials and returns a signed token for the user.
func (app *App) ProcessLogin(req models.AuthRequest) (string, error) {
	if req.Name == "" || req.Pass == "" {
		return "", ErrMissingNameOrPassword
	}

	if err := app.users.Verify(req.Name, req.Pass); err != nil {
		return "", err
	}

	token, err := app.tokens.GenerateToken(req.Name)
	if err != nil {
		app.log.Error("failed to sign token", zap.String("user", req.Name), zap.Error(err))
		return "", err
	}
	return token, nil
}

// Authenticate checks an Authorization header value and returns the token subject.
func (app *App) Authenticate(authHeader string) (string, error) {
	return app.tokens.Authenticate(authHeader)
}

// LockItems acquires the write lock of the collection; see storage.Storage.Lock.
func (app *App) LockItems() func() {
	return app.db.Lock()
}

// LoadItems makes sure the backing file exists and returns the parsed collection.
func (app *App) LoadItems() ([]models.Item, error) {
	if err := app.db.EnsureExists(); err != nil {
		return nil, err
	}
	return app.db.Load()
}
