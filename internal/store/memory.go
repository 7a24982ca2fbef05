package store

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type Memory struct {
	mu   sync.RWMutex
	seq  int64
	docs map[Kind]map[string]memDoc
}

type memDoc struct {
	Document
	seq int64
}

func NewMemory() *Memory {
	return &Memory{docs: make(map[Kind]map[string]memDoc)}
}

func (m *Memory) Insert(ctx context.Context, kind Kind, doc Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	byID := m.docs[kind]
	if byID == nil {
		byID = make(map[string]memDoc)
		m.docs[kind] = byID
	}
	if _, ok := byID[doc.ID]; ok {
		return "", ErrDuplicate
	}
	if m.conflictsLocked(kind, doc, "") {
		return "", ErrDuplicate
	}
	m.seq++
	doc.Body = bytes.Clone(doc.Body)
	byID[doc.ID] = memDoc{Document: doc, seq: m.seq}
	return doc.ID, nil
}

func (m *Memory) FindOne(ctx context.Context, kind Kind, f Filter) (Document, error) {
	docs := m.find(kind, f)
	if len(docs) == 0 {
		return Document{}, ErrNotFound
	}
	return docs[0], nil
}

func (m *Memory) Find(ctx context.Context, kind Kind, f Filter) ([]Document, error) {
	return m.find(kind, f), nil
}

func (m *Memory) find(kind Kind, f Filter) []Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]memDoc, 0)
	for _, d := range m.docs[kind] {
		if f.matches(d.Document) {
			matched = append(matched, d)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	out := make([]Document, len(matched))
	for i, d := range matched {
		out[i] = d.Document
		out[i].Body = bytes.Clone(d.Body)
	}
	return out
}

func (m *Memory) UpdateOne(ctx context.Context, kind Kind, f Filter, doc Document) (bool, error) {
	if f.ID == "" {
		return false, errMissingID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.docs[kind][f.ID]
	if !ok || !f.matches(cur.Document) {
		return false, nil
	}
	doc.ID = cur.ID
	if m.conflictsLocked(kind, doc, cur.ID) {
		return false, ErrDuplicate
	}
	doc.Body = bytes.Clone(doc.Body)
	m.docs[kind][cur.ID] = memDoc{Document: doc, seq: cur.seq}
	return true, nil
}

func (m *Memory) DeleteOne(ctx context.Context, kind Kind, f Filter) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		victim memDoc
		found  bool
	)
	for _, d := range m.docs[kind] {
		if f.matches(d.Document) && (!found || d.seq < victim.seq) {
			victim, found = d, true
		}
	}
	if !found {
		return false, nil
	}
	delete(m.docs[kind], victim.ID)
	return true, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) Close() {}

func (m *Memory) conflictsLocked(kind Kind, doc Document, skipID string) bool {
	key, ok := uniqueKey(kind, doc)
	if !ok {
		return false
	}
	for id, d := range m.docs[kind] {
		if id == skipID {
			continue
		}
		if other, _ := uniqueKey(kind, d.Document); other == key {
			return true
		}
	}
	return false
}
