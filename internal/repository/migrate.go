package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

var ErrPrimaryUnavailable = errors.New("primary store is not connected")

// ImportLocal copies file-store records that the primary store does not
// have yet into it, keeping their ids. With clearFiles set, the collection file
// is emptied once every record is in the primary store. It is the explicit
// reconciliation step for writes accepted while the primary was down.
func (r *Repository[T, PT]) ImportLocal(ctx context.Context, clearFiles bool) (int, error) {
	if !r.usePrimary() {
		return 0, ErrPrimaryUnavailable
	}

	imported := 0
	err := r.files.Update(r.name, func(records []json.RawMessage) ([]json.RawMessage, error) {
		for _, raw := range records {
			doc, err := r.decode(raw)
			if err != nil {
				return nil, err
			}
			id := PT(doc).GetID()
			_, err = r.primary.FindByID(ctx, id)
			if err == nil {
				continue
			}
			if !errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("look up %s/%s: %w", r.name, id, err)
			}
			if err := r.primary.Insert(ctx, doc); err != nil {
				return nil, fmt.Errorf("insert %s/%s: %w", r.name, id, err)
			}
			imported++
		}
		if clearFiles {
			return []json.RawMessage{}, nil
		}
		return records, nil
	})
	if err != nil {
		return imported, err
	}
	slog.Info("Imported local records", "collection", r.name, "imported", imported, "cleared", clearFiles)
	return imported, nil
}
