package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/websitelelo/websitelelo/internal/repository"
)

// Store is what the handlers need from a content repository.
type Store[T any] interface {
	List(ctx context.Context, opts repository.ListOptions) ([]T, error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, fields map[string]json.RawMessage) (*T, error)
	Update(ctx context.Context, id string, patch map[string]json.RawMessage) (*T, error)
	Delete(ctx context.Context, id string) error
}

// ResourceHandler serves the CRUD routes of one collection.
type ResourceHandler[T any] struct {
	Store Store[T]
	// Label names the entity in messages, e.g. "Plan".
	Label string
	// PublicActiveOnly hides inactive records from the public list.
	PublicActiveOnly bool
}

// PublicList never fails: visitors get an empty list instead of an error.
func (h *ResourceHandler[T]) PublicList(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.List(r.Context(), repository.ListOptions{ActiveOnly: h.PublicActiveOnly})
	if err != nil {
		slog.Error("Public list failed", "resource", h.Label, "error", err)
		items = []T{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ResourceHandler[T]) AdminList(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.List(r.Context(), repository.ListOptions{})
	if err != nil {
		writeStoreError(w, r, h.Label, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ResourceHandler[T]) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.Store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, h.Label, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ResourceHandler[T]) Create(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := h.Store.Create(r.Context(), fields)
	if err != nil {
		writeStoreError(w, r, h.Label, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *ResourceHandler[T]) Update(w http.ResponseWriter, r *http.Request) {
	patch, err := decodeFields(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := h.Store.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeStoreError(w, r, h.Label, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ResourceHandler[T]) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, r, h.Label, err)
		return
	}
	writeMessage(w, http.StatusOK, h.Label+" removed")
}
