package app

import (
	"math"

	"itemstore/internal/models"

	"go.uber.org/zap"
)

// NextID returns one more than the highest id in items, or 1 for an empty
// collection. Entries without an id count as id 0.
func NextID(items []models.Item) (uint64, error) {
	var highest uint64
	for _, item := range items {
		if item.ID > highest {
			highest = item.ID
		}
	}
	if highest == math.MaxUint64 {
		return 0, ErrIDsExhausted
	}
	return highest + 1, nil
}

func indexByID(items []models.Item, id uint64) int {
	for i, item := range items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func containsName(items []models.Item, name string) bool {
	for _, item := range items {
		if item.Name == name {
			return true
		}
	}
	return false
}

// CreateItem appends a new item named name to items and persists the collection.
func (app *App) CreateItem(items []models.Item, name string) (models.Item, error) {
	if name == "" {
		return models.Item{}, ErrMissingName
	}
	if containsName(items, name) {
		return models.Item{}, ErrItemExists
	}

	id, err := NextID(items)
	if err != nil {
		return models.Item{}, err
	}
	item := models.Item{ID: id, Name: name}
	updated := make([]models.Item, 0, len(items)+1)
	updated = append(updated, items...)
	updated = append(updated, item)

	if err := app.db.Save(updated); err != nil {
		return models.Item{}, err
	}
	app.log.Debug("item created", zap.Uint64("id", item.ID), zap.String("name", item.Name))
	return item, nil
}

// GetItem returns the item with the given id.
func (app *App) GetItem(items []models.Item, id uint64) (models.Item, error) {
	i := indexByID(items, id)
	if i < 0 {
		return models.Item{}, ErrItemNotFound
	}
	return items[i], nil
}

// UpdateItem renames the item with the given id and persists the collection.
// Renaming an item to its current name writes nothing.
func (app *App) UpdateItem(items []models.Item, id uint64, name string) (models.Item, error) {
	if name == "" {
		return models.Item{}, ErrMissingName
	}
	i := indexByID(items, id)
	if i < 0 {
		return models.Item{}, ErrItemNotFound
	}
	if items[i].Name == name {
		return items[i], nil
	}

	updated := make([]models.Item, len(items))
	copy(updated, items)
	updated[i].Name = name

	if err := app.db.Save(updated); err != nil {
		return models.Item{}, err
	}
	app.log.Debug("item renamed", zap.Uint64("id", id), zap.String("name", name))
	return updated[i], nil
}

// DeleteItem removes the item with the given id and persists the collection.
func (app *App) DeleteItem(items []models.Item, id uint64) error {
	i := indexByID(items, id)
	if i < 0 {
		return ErrItemNotFound
	}

	updated := make([]models.Item, 0, len(items)-1)
	updated = append(updated, items[:i]...)
	updated = append(updated, items[i+1:]...)

	if err := app.db.Save(updated); err != nil {
		return err
	}
	app.log.Debug("item deleted", zap.Uint64("id", id))
	return nil
}
