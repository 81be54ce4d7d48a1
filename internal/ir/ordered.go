package ir

import (
	"bytes"
	"encoding/json"
	"reflect"

	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// OrderedMap is a string-keyed map that iterates in insertion order.
// Setting an existing key replaces its value but keeps its position.
// The zero value is an empty map ready to use.
type OrderedMap[V any] struct {
	m *linkedhashmap.Map
}

// NewOrderedMap returns an empty map.
func NewOrderedMap[V any]() *OrderedMap[V] {
	return &OrderedMap[V]{m: linkedhashmap.New()}
}

// Set inserts or replaces the value stored under key.
func (o *OrderedMap[V]) Set(key string, value V) {
	if o.m == nil {
		o.m = linkedhashmap.New()
	}
	o.m.Put(key, value)
}

// Get returns the value stored under key.
func (o *OrderedMap[V]) Get(key string) (V, bool) {
	var zero V
	if o == nil || o.m == nil {
		return zero, false
	}
	value, found := o.m.Get(key)
	if !found {
		return zero, false
	}
	return value.(V), true
}

// Len returns the number of entries.
func (o *OrderedMap[V]) Len() int {
	if o == nil || o.m == nil {
		return 0
	}
	return o.m.Size()
}

// Keys returns the keys in insertion order.
func (o *OrderedMap[V]) Keys() []string {
	keys := make([]string, 0, o.Len())
	o.Each(func(key string, _ V) {
		keys = append(keys, key)
	})
	return keys
}

// Each calls fn for every entry in insertion order.
func (o *OrderedMap[V]) Each(fn func(key string, value V)) {
	if o == nil || o.m == nil {
		return
	}
	it := o.m.Iterator()
	for it.Next() {
		fn(it.Key().(string), it.Value().(V))
	}
}

// Equal reports whether both maps hold equal values under the same keys in the same order.
func (o *OrderedMap[V]) Equal(other *OrderedMap[V]) bool {
	if o.Len() != other.Len() {
		return false
	}
	keys, otherKeys := o.Keys(), other.Keys()
	for i, key := range keys {
		if otherKeys[i] != key {
			return false
		}
		a, _ := o.Get(key)
		b, _ := other.Get(key)
		if !reflect.DeepEqual(a, b) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (o *OrderedMap[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	var err error
	first := true
	o.Each(func(key string, value V) {
		if err != nil {
			return
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		var k, v []byte
		if k, err = json.Marshal(key); err != nil {
			return
		}
		if v, err = json.Marshal(value); err != nil {
			return
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
