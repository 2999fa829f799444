package service

import (
	"net/http"

	"itemstore/internal/models"

	"go.uber.org/zap"
)

// itemsRequest is the per-request state prepared by withItems for item handlers.
type itemsRequest struct {
	// items is the collection as loaded for this request.
	items []models.Item
	// subject is the authenticated username; empty on unauthenticated reads.
	subject string
	// body is the request body of a write, read before the write lock is taken.
	body    []byte
	bodyErr error
}

// itemsHandlerFunc is an item route handler that receives the loaded collection.
type itemsHandlerFunc func(res http.ResponseWriter, req *http.Request, ir *itemsRequest)

// withItems guards an item route. It makes sure the data file exists, loads
// and parses it, and passes the collection to next. Every method other than
// GET additionally requires a valid bearer token, and runs with the write
// lock of the data file held from the load until next returns. The body of
// a write is read in full before the lock, so a slow client never holds it.
func (handlers *handlers) withItems(next itemsHandlerFunc) http.HandlerFunc {
	return func(res http.ResponseWriter, req *http.Request) {
		safe := req.Method == http.MethodGet
		ir := &itemsRequest{}
		if !safe {
			ir.body, ir.bodyErr = readBody(res, req)
			unlock := handlers.app.LockItems()
			defer unlock()
		}

		items, err := handlers.app.LoadItems()
		if err != nil {
			handlers.log.Error("failed to load items", zap.String("uri", req.URL.Path), zap.Error(err))
			writeInternalError(res)
			return
		}

		ir.items = items
		if safe {
			next(res, req, ir)
			return
		}

		subject, err := handlers.app.Authenticate(req.Header.Get("Authorization"))
		if err != nil {
			handlers.log.Debug("rejected item request", zap.String("method", req.Method), zap.Error(err))
			writeErrorResponse(res, "Unauthorized", "Missing or invalid token", http.StatusUnauthorized)
			return
		}
		ir.subject = subject
		next(res, req, ir)
	}
}
