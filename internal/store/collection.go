package store

import (
	"context"
	"encoding/json"
	"fmt"
)

type Keys struct {
	ID      string
	Owner   string
	Symbol  string
	Version int64
}

// Record is implemented by the pointer types kept in a Collection.
type Record interface {
	DocKeys() Keys
	SetDocKeys(id string, version int64)
}

// Collection is a typed view over one Kind of documents.
type Collection[T any, P interface {
	*T
	Record
}] struct {
	store Store
	kind  Kind
}

func NewCollection[T any, P interface {
	*T
	Record
}](s Store, kind Kind) *Collection[T, P] {
	return &Collection[T, P]{store: s, kind: kind}
}

func (c *Collection[T, P]) Insert(ctx context.Context, v P) error {
	doc, err := encode(v)
	if err != nil {
		return err
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	id, err := c.store.Insert(ctx, c.kind, doc)
	if err != nil {
		return err
	}
	v.SetDocKeys(id, doc.Version)
	return nil
}

func (c *Collection[T, P]) FindOne(ctx context.Context, f Filter) (T, error) {
	var out T
	doc, err := c.store.FindOne(ctx, c.kind, f)
	if err != nil {
		return out, err
	}
	return decode[T, P](doc)
}

func (c *Collection[T, P]) Find(ctx context.Context, f Filter) ([]T, error) {
	docs, err := c.store.Find(ctx, c.kind, f)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := decode[T, P](d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Update writes v over the stored document with the same id and owner and
// bumps its version. With checkVersion the write only happens if the stored
// version still equals v's version.
func (c *Collection[T, P]) Update(ctx context.Context, v P, checkVersion bool) (bool, error) {
	keys := v.DocKeys()
	f := Filter{ID: keys.ID, Owner: keys.Owner}
	if checkVersion {
		f.Version = keys.Version
	}
	doc, err := encode(v)
	if err != nil {
		return false, err
	}
	doc.Version = keys.Version + 1
	ok, err := c.store.UpdateOne(ctx, c.kind, f, doc)
	if err != nil || !ok {
		return ok, err
	}
	v.SetDocKeys(keys.ID, doc.Version)
	return true, nil
}

func (c *Collection[T, P]) Delete(ctx context.Context, f Filter) (bool, error) {
	return c.store.DeleteOne(ctx, c.kind, f)
}

func encode[P Record](v P) (Document, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return Document{}, fmt.Errorf("encode document: %w", err)
	}
	keys := v.DocKeys()
	return Document{ID: keys.ID, Owner: keys.Owner, Symbol: keys.Symbol, Version: keys.Version, Body: body}, nil
}

func decode[T any, P interface {
	*T
	Record
}](d Document) (T, error) {
	var out T
	if err := json.Unmarshal(d.Body, &out); err != nil {
		return out, fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	P(&out).SetDocKeys(d.ID, d.Version)
	return out, nil
}
