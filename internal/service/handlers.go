// Package service contains the HTTP layer of the items service: the chi router,
// the middleware guarding item routes, and the handlers that parse requests,
// call the app package and map its errors to JSON responses.
package service

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"itemstore/internal/app"
	"itemstore/internal/models"
	"itemstore/internal/pkg/logger"
	"itemstore/internal/storage"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// handlers aggregates dependencies needed by HTTP handlers,
// including the application business logic and logger.
type handlers struct {
	app *app.App
	log *logger.Logger
}

// newHandlers initializes a new handlers instance with the provided app and logger dependencies.
func newHandlers(app *app.App, l *logger.Logger) *handlers {
	return &handlers{app: app, log: l}
}

// signupHandler registers a new user from a {name, pass} body.
func (handlers *handlers) signupHandler(res http.ResponseWriter, req *http.Request) {
	var authRequest models.AuthRequest
	if !decodeBody(res, req, &authRequest) {
		return
	}

	err := handlers.app.ProcessSignup(authRequest)
	switch {
	case err == nil:
		writeJSON(res, http.StatusOK, models.MessageResponse{Msg: "Successfully signed up"})
	case errors.Is(err, app.ErrMissingNameOrPassword):
		writeErrorResponse(res, "Bad request", "Missing name or password", http.StatusBadRequest)
	case errors.Is(err, storage.ErrUserExists):
		writeErrorResponse(res, "User already exists", "Please use different credentials", http.StatusConflict)
	default:
		writeInternalError(res)
	}
}

// loginHandler checks the credentials of a {name, pass} body and returns a bearer token.
func (handlers *handlers) loginHandler(res http.ResponseWriter, req *http.Request) {
	var authRequest models.AuthRequest
	if !decodeBody(res, req, &authRequest) {
		return
	}

	token, err := handlers.app.ProcessLogin(authRequest)
	switch {
	case err == nil:
		writeJSON(res, http.StatusOK, models.AuthResponse{Msg: "Successfully logged in", Token: token})
	case errors.Is(err, app.ErrMissingNameOrPassword):
		writeErrorResponse(res, "Bad request", "Missing name or password", http.StatusBadRequest)
	case errors.Is(err, storage.ErrUserNotFound):
		writeErrorResponse(res, "User not found", "The user doesn't exist", http.StatusUnauthorized)
	case errors.Is(err, storage.ErrInvalidCredentials):
		writeErrorResponse(res, "Invalid credentials", "Wrong username or password", http.StatusUnauthorized)
	default:
		writeInternalError(res)
	}
}

// listItemsHandler returns the whole collection.
func (handlers *handlers) listItemsHandler(res http.ResponseWriter, req *http.Request, ir *itemsRequest) {
	writeJSON(res, http.StatusOK, ir.items)
}

// createItemHandler adds a new item with the next free id.
func (handlers *handlers) createItemHandler(res http.ResponseWriter, req *http.Request, ir *itemsRequest) {
	var itemRequest models.ItemRequest
	if !decodeItemsBody(res, ir, &itemRequest) {
		return
	}

	item, err := handlers.app.CreateItem(ir.items, itemRequest.Name)
	switch {
	case err == nil:
		handlers.log.Info("item created", zap.Uint64("id", item.ID), zap.String("by", ir.subject))
		writeJSON(res, http.StatusCreated, item)
	case errors.Is(err, app.ErrMissingName):
		writeErrorResponse(res, "Bad request", "Missing item name", http.StatusBadRequest)
	case errors.Is(err, app.ErrItemExists):
		writeErrorResponse(res, "Conflict", "Item already exists", http.StatusConflict)
	default:
		handlers.log.Error("failed to create item", zap.Error(err))
		writeInternalError(res)
	}
}

// getItemHandler returns the item addressed by the {id} URL parameter.
func (handlers *handlers) getItemHandler(res http.ResponseWriter, req *http.Request, ir *itemsRequest) {
	id, ok := itemID(res, req)
	if !ok {
		return
	}

	item, err := handlers.app.GetItem(ir.items, id)
	if errors.Is(err, app.ErrItemNotFound) {
		writeErrorResponse(res, "Not found", "Item does not exist", http.StatusNotFound)
		return
	}
	if err != nil {
		writeInternalError(res)
		return
	}
	writeJSON(res, http.StatusOK, item)
}

// updateItemHandler renames the item addressed by the {id} URL parameter.
func (handlers *handlers) updateItemHandler(res http.ResponseWriter, req *http.Request, ir *itemsRequest) {
	id, ok := itemID(res, req)
	if !ok {
		return
	}
	var itemRequest models.ItemRequest
	if !decodeItemsBody(res, ir, &itemRequest) {
		return
	}

	item, err := handlers.app.UpdateItem(ir.items, id, itemRequest.Name)
	switch {
	case err == nil:
		writeJSON(res, http.StatusOK, item)
	case errors.Is(err, app.ErrMissingName):
		writeErrorResponse(res, "Bad request", "Missing item name", http.StatusBadRequest)
	case errors.Is(err, app.ErrItemNotFound):
		writeErrorResponse(res, "Bad request", "Item doesn't exist", http.StatusBadRequest)
	default:
		handlers.log.Error("failed to update item", zap.Uint64("id", id), zap.Error(err))
		writeInternalError(res)
	}
}

// deleteItemHandler removes the item addressed by the {id} URL parameter.
func (handlers *handlers) deleteItemHandler(res http.ResponseWriter, req *http.Request, ir *itemsRequest) {
	id, ok := itemID(res, req)
	if !ok {
		return
	}

	err := handlers.app.DeleteItem(ir.items, id)
	switch {
	case err == nil:
		handlers.log.Info("item deleted", zap.Uint64("id", id), zap.String("by", ir.subject))
		writeJSON(res, http.StatusOK, models.MessageResponse{Msg: "Item deleted successfully"})
	case errors.Is(err, app.ErrItemNotFound):
		writeErrorResponse(res, "Bad request", "Item doesn't exist", http.StatusBadRequest)
	default:
		handlers.log.Error("failed to delete item", zap.Uint64("id", id), zap.Error(err))
		writeInternalError(res)
	}
}

func (handlers *handlers) healthHandler(res http.ResponseWriter, req *http.Request) {
	writeJSON(res, http.StatusOK, models.MessageResponse{Msg: "ok"})
}

// itemID parses the {id} URL parameter, answering 400 when it is not an unsigned integer.
func itemID(res http.ResponseWriter, req *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(req, "id"), 10, 64)
	if err != nil {
		writeErrorResponse(res, "Bad request", "Invalid item id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// readBody reads at most maxBodyBytes of the request body.
func readBody(res http.ResponseWriter, req *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(res, req.Body, maxBodyBytes))
}

// decodeBody unmarshals the JSON request body into v, answering 400 on failure.
func decodeBody(res http.ResponseWriter, req *http.Request, v any) bool {
	requestBody, err := readBody(res, req)
	if err != nil {
		writeErrorResponse(res, "Bad request", "Invalid request body", http.StatusBadRequest)
		return false
	}
	return decodeJSON(res, requestBody, v)
}

// decodeItemsBody unmarshals the body withItems read ahead of the write lock.
func decodeItemsBody(res http.ResponseWriter, ir *itemsRequest, v any) bool {
	if ir.bodyErr != nil {
		writeErrorResponse(res, "Bad request", "Invalid request body", http.StatusBadRequest)
		return false
	}
	return decodeJSON(res, ir.body, v)
}

func decodeJSON(res http.ResponseWriter, requestBody []byte, v any) bool {
	if err := json.Unmarshal(requestBody, v); err != nil {
		writeErrorResponse(res, "Bad request", "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(res http.ResponseWriter, statusCode int, v any) {
	result, err := json.Marshal(v)
	if err != nil {
		writeInternalError(res)
		return
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	res.Write(result)
}

// writeInternalError answers 500 without any detail of the underlying failure.
func writeInternalError(res http.ResponseWriter) {
	writeErrorResponse(res, "Server error", "Please contact support", http.StatusInternalServerError)
}

func writeErrorResponse(res http.ResponseWriter, errorLabel, msg string, statusCode int) {
	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(statusCode)
	json.NewEncoder(res).Encode(models.ErrorResponse{Error: errorLabel, Msg: msg})
}
