// Package repository implements the per-collection CRUD façade that picks
// between the primary document store and the local JSON file store on
// every call.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/websitelelo/websitelelo/internal/filestore"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrValidation = errors.New("validation failed")
	ErrStorage    = errors.New("storage failure")
)

// Entity is the pointer side of a content model.
type Entity[T any] interface {
	*T
	GetID() string
	SetID(string)
	Created() time.Time
	Stamp(time.Time)
	Touch(time.Time)
	Defaults()
	Validate() error
}

// HealthChecker reports whether the primary store is reachable right now.
type HealthChecker interface {
	Connected() bool
}

type staticHealth bool

func (s staticHealth) Connected() bool { return bool(s) }

// Offline is the checker used when no database is configured.
var Offline HealthChecker = staticHealth(false)

// Query is what the primary store needs to answer a list call.
type Query struct {
	ActiveOnly bool
	Descending bool
}

// Primary is the document-store side of a collection. Lookups of an absent
// id return ErrNotFound; any other error makes the repository degrade to
// the file store.
type Primary[T any] interface {
	NewID() string
	Find(ctx context.Context, q Query) ([]T, error)
	FindByID(ctx context.Context, id string) (*T, error)
	Insert(ctx context.Context, doc *T) error
	Replace(ctx context.Context, id string, doc *T) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// FallbackRecorder counts degradations to the file store.
type FallbackRecorder interface {
	Fallback(collection, operation string)
}

type Options struct {
	Health     HealthChecker
	Files      *filestore.Store
	IDs        IDGenerator
	Descending bool
	Recorder   FallbackRecorder
	Now        func() time.Time
}

type ListOptions struct {
	ActiveOnly bool
}

type Repository[T any, PT Entity[T]] struct {
	name       string
	primary    Primary[T]
	health     HealthChecker
	files      *filestore.Store
	ids        IDGenerator
	descending bool
	recorder   FallbackRecorder
	now        func() time.Time
}

// New builds the repository of one collection. primary may be nil, in which
// case every call goes to the file store.
func New[T any, PT Entity[T]](name string, primary Primary[T], opts Options) *Repository[T, PT] {
	r := &Repository[T, PT]{
		name:       name,
		primary:    primary,
		health:     opts.Health,
		files:      opts.Files,
		ids:        opts.IDs,
		descending: opts.Descending,
		recorder:   opts.Recorder,
		now:        opts.Now,
	}
	if r.health == nil {
		r.health = Offline
	}
	if r.ids == nil {
		r.ids = DefaultIDs
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

func (r *Repository[T, PT]) Name() string { return r.name }

func (r *Repository[T, PT]) usePrimary() bool {
	return r.primary != nil && r.health.Connected()
}

// degrade records a primary failure that is absorbed by the file store.
func (r *Repository[T, PT]) degrade(op string, err error) {
	slog.Warn("Primary store failed, using local file store", "collection", r.name, "operation", op, "error", err)
	if r.recorder != nil {
		r.recorder.Fallback(r.name, op)
	}
}

// absorbable reports whether a primary error should fall through to the
// file store. Not-found and validation outcomes are answers, not outages.
func absorbable(err error) bool {
	return err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrValidation)
}

func (r *Repository[T, PT]) stamp() time.Time {
	// Mongo keeps millisecond precision; keep both backends identical.
	return r.now().UTC().Truncate(time.Millisecond)
}

func (r *Repository[T, PT]) List(ctx context.Context, opts ListOptions) ([]T, error) {
	q := Query{ActiveOnly: opts.ActiveOnly, Descending: r.descending}
	if r.usePrimary() {
		docs, err := r.primary.Find(ctx, q)
		if err == nil {
			if docs == nil {
				docs = []T{}
			}
			for i := range docs {
				settle(&docs[i])
			}
			return docs, nil
		}
		r.degrade("list", err)
	}

	docs, err := r.readLocal()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		if q.ActiveOnly && !isActive(&d) {
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := PT(&out[i]).Created(), PT(&out[j]).Created()
		if r.descending {
			return a.After(b)
		}
		return a.Before(b)
	})
	return out, nil
}

func (r *Repository[T, PT]) Get(ctx context.Context, id string) (*T, error) {
	if r.usePrimary() {
		doc, err := r.primary.FindByID(ctx, id)
		if !absorbable(err) {
			if doc != nil {
				settle(doc)
			}
			return doc, err
		}
		r.degrade("get", err)
	}

	records, err := r.files.ReadAll(r.name)
	if err != nil {
		return nil, r.storageErr(err)
	}
	for _, raw := range records {
		if recordID(raw) != id {
			continue
		}
		doc, err := r.decode(raw)
		if err != nil {
			return nil, r.storageErr(err)
		}
		return doc, nil
	}
	return nil, ErrNotFound
}

// Create validates fields over the entity defaults and stores the result
// in whichever backend is authoritative.
func (r *Repository[T, PT]) Create(ctx context.Context, fields map[string]json.RawMessage) (*T, error) {
	doc := new(T)
	PT(doc).Defaults()
	if err := apply(doc, fields); err != nil {
		return nil, err
	}
	settle(doc)
	if err := PT(doc).Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	PT(doc).Stamp(r.stamp())

	if r.usePrimary() {
		PT(doc).SetID(r.primary.NewID())
		err := r.primary.Insert(ctx, doc)
		if err == nil {
			return doc, nil
		}
		r.degrade("create", err)
	}

	PT(doc).SetID(r.ids.NextID())
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, r.storageErr(err)
	}
	err = r.files.Update(r.name, func(records []json.RawMessage) ([]json.RawMessage, error) {
		return append(records, raw), nil
	})
	if err != nil {
		return nil, r.storageErr(err)
	}
	return doc, nil
}

// Update merges patch over the stored record. A record that only exists in
// the non-authoritative backend is reported as ErrNotFound.
func (r *Repository[T, PT]) Update(ctx context.Context, id string, patch map[string]json.RawMessage) (*T, error) {
	if r.usePrimary() {
		doc, err := r.updatePrimary(ctx, id, patch)
		if !absorbable(err) {
			return doc, err
		}
		r.degrade("update", err)
	}

	var updated *T
	err := r.files.Update(r.name, func(records []json.RawMessage) ([]json.RawMessage, error) {
		for i, raw := range records {
			if recordID(raw) != id {
				continue
			}
			doc, err := r.decode(raw)
			if err != nil {
				return nil, err
			}
			if err := r.merge(doc, patch); err != nil {
				return nil, err
			}
			next, err := json.Marshal(doc)
			if err != nil {
				return nil, err
			}
			records[i] = next
			updated = doc
			return records, nil
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return nil, r.localErr(err)
	}
	return updated, nil
}

func (r *Repository[T, PT]) updatePrimary(ctx context.Context, id string, patch map[string]json.RawMessage) (*T, error) {
	doc, err := r.primary.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	settle(doc)
	if err := r.merge(doc, patch); err != nil {
		return nil, err
	}
	if err := r.primary.Replace(ctx, id, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// merge applies patch, keeps identity fields and revalidates.
func (r *Repository[T, PT]) merge(doc *T, patch map[string]json.RawMessage) error {
	id, created := PT(doc).GetID(), PT(doc).Created()
	if err := apply(doc, patch); err != nil {
		return err
	}
	settle(doc)
	PT(doc).SetID(id)
	PT(doc).Stamp(created)
	if err := PT(doc).Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	PT(doc).Touch(r.stamp())
	return nil
}

func (r *Repository[T, PT]) Delete(ctx context.Context, id string) error {
	if r.usePrimary() {
		err := r.primary.Delete(ctx, id)
		if !absorbable(err) {
			return err
		}
		r.degrade("delete", err)
	}

	err := r.files.Update(r.name, func(records []json.RawMessage) ([]json.RawMessage, error) {
		for i, raw := range records {
			if recordID(raw) == id {
				return append(records[:i], records[i+1:]...), nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return r.localErr(err)
	}
	return nil
}

func (r *Repository[T, PT]) Count(ctx context.Context) (int, error) {
	if r.usePrimary() {
		n, err := r.primary.Count(ctx)
		if err == nil {
			return n, nil
		}
		r.degrade("count", err)
	}
	records, err := r.files.ReadAll(r.name)
	if err != nil {
		return 0, r.storageErr(err)
	}
	return len(records), nil
}

// Connected reports which backend the next call will use.
func (r *Repository[T, PT]) Connected() bool { return r.usePrimary() }

func (r *Repository[T, PT]) readLocal() ([]T, error) {
	records, err := r.files.ReadAll(r.name)
	if err != nil {
		return nil, r.storageErr(err)
	}
	docs := make([]T, 0, len(records))
	for _, raw := range records {
		doc, err := r.decode(raw)
		if err != nil {
			return nil, r.storageErr(err)
		}
		docs = append(docs, *doc)
	}
	return docs, nil
}

// decode reads a file record. Create-time defaults are not applied here:
// a stored record missing a field is settled the same way the primary
// store's copy would be.
func (r *Repository[T, PT]) decode(raw json.RawMessage) (*T, error) {
	doc := new(T)
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("decode %s record: %w", r.name, err)
	}
	settle(doc)
	return doc, nil
}

// settler is implemented by models whose stored records may predate a
// field.
type settler interface {
	Settle()
}

func settle[T any](doc *T) {
	if s, ok := any(doc).(settler); ok {
		s.Settle()
	}
}

func (r *Repository[T, PT]) storageErr(err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, r.name, err)
}

func (r *Repository[T, PT]) localErr(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		return err
	}
	return r.storageErr(err)
}

type activatable interface {
	Active() bool
}

func isActive(doc any) bool {
	if a, ok := doc.(activatable); ok {
		return a.Active()
	}
	return true
}

func recordID(raw json.RawMessage) string {
	var rec struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return ""
	}
	return rec.ID
}
