// Package memory provides an in-process DocumentStore for tests and local runs.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/kakitori/kakitori-api/internal/core/domain"
	"github.com/kakitori/kakitori-api/internal/core/ports"
)

// Store keeps records as BSON documents so that encoding matches the Mongo store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]bson.Raw
	unique      map[string][][]string
}

// NewStore returns an empty store with the same unique constraints as the
// Mongo indexes.
func NewStore() *Store {
	s := &Store{
		collections: make(map[string]map[string]bson.Raw),
		unique:      make(map[string][][]string),
	}
	s.UniqueIndex(ports.CollectionUsers, "email")
	s.UniqueIndex(ports.CollectionPredictions, "userId", "category", "character")
	return s
}

// UniqueIndex rejects two records in collection that share all fields.
// Records missing any of the fields are not covered.
func (s *Store) UniqueIndex(collection string, fields ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unique[collection] = append(s.unique[collection], fields)
}

func (s *Store) Put(_ context.Context, collection, id string, record any) error {
	doc, err := bson.Marshal(record)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts(collection, id, doc) {
		return domain.ErrDuplicate
	}
	s.coll(collection)[id] = doc
	return nil
}

func (s *Store) Insert(_ context.Context, collection, id string, record any) error {
	doc, err := bson.Marshal(record)
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.coll(collection)[id]; ok {
		return domain.ErrDuplicate
	}
	if s.conflicts(collection, id, doc) {
		return domain.ErrDuplicate
	}
	s.coll(collection)[id] = doc
	return nil
}

func (s *Store) Get(_ context.Context, collection, id string, out any) error {
	s.mu.RLock()
	doc, ok := s.collections[collection][id]
	s.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound
	}
	return bson.Unmarshal(doc, out)
}

func (s *Store) Query(_ context.Context, collection string, filters ports.Filters, out any) error {
	slice := reflect.ValueOf(out)
	if slice.Kind() != reflect.Pointer || slice.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("query %s: out must be a pointer to a slice, got %T", collection, out)
	}

	want := make(map[string]bson.RawValue, len(filters))
	for k, v := range filters {
		t, data, err := bson.MarshalValue(v)
		if err != nil {
			return fmt.Errorf("query %s: filter %q: %w", collection, k, err)
		}
		want[k] = bson.RawValue{Type: t, Value: data}
	}

	type hit struct {
		id      string
		created time.Time
		doc     bson.Raw
	}

	s.mu.RLock()
	var hits []hit
	for id, doc := range s.collections[collection] {
		if matches(doc, want) {
			created, _ := doc.Lookup("createdAt").TimeOK()
			hits = append(hits, hit{id: id, created: created, doc: doc})
		}
	}
	s.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].created.Equal(hits[j].created) {
			return hits[i].created.After(hits[j].created)
		}
		return hits[i].id < hits[j].id
	})

	elem := slice.Elem().Type().Elem()
	result := reflect.MakeSlice(slice.Elem().Type(), 0, len(hits))
	for _, h := range hits {
		var item reflect.Value
		if elem.Kind() == reflect.Pointer {
			item = reflect.New(elem.Elem())
			if err := bson.Unmarshal(h.doc, item.Interface()); err != nil {
				return fmt.Errorf("query %s: decode %s: %w", collection, h.id, err)
			}
		} else {
			ptr := reflect.New(elem)
			if err := bson.Unmarshal(h.doc, ptr.Interface()); err != nil {
				return fmt.Errorf("query %s: decode %s: %w", collection, h.id, err)
			}
			item = ptr.Elem()
		}
		result = reflect.Append(result, item)
	}
	slice.Elem().Set(result)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

// coll must be called with mu held for writing.
func (s *Store) coll(name string) map[string]bson.Raw {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]bson.Raw)
		s.collections[name] = c
	}
	return c
}

// conflicts must be called with mu held.
func (s *Store) conflicts(collection, id string, doc bson.Raw) bool {
	for _, fields := range s.unique[collection] {
		key, ok := indexKey(doc, fields)
		if !ok {
			continue
		}
		for otherID, other := range s.collections[collection] {
			if otherID == id {
				continue
			}
			if otherKey, ok := indexKey(other, fields); ok && otherKey == key {
				return true
			}
		}
	}
	return false
}

func indexKey(doc bson.Raw, fields []string) (string, bool) {
	var buf bytes.Buffer
	for _, f := range fields {
		v, err := doc.LookupErr(f)
		if err != nil {
			return "", false
		}
		buf.WriteByte(byte(v.Type))
		buf.Write(v.Value)
	}
	return buf.String(), true
}

func matches(doc bson.Raw, want map[string]bson.RawValue) bool {
	for k, w := range want {
		v, err := doc.LookupErr(k)
		if err != nil || v.Type != w.Type || !bytes.Equal(v.Value, w.Value) {
			return false
		}
	}
	return true
}
