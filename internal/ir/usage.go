package ir

import (
	"encoding/json"

	"graphql-ir/internal/metadata"
)

// UsageCounts records how often each model, command and relationship was used
// by one lowering pass. It is written during lowering and never read by it.
type UsageCounts struct {
	models        OrderedMap[int]
	commands      OrderedMap[int]
	relationships OrderedMap[int]
}

// NewUsageCounts returns an empty accumulator.
func NewUsageCounts() *UsageCounts {
	return &UsageCounts{}
}

// RecordModel counts one use of a model.
func (u *UsageCounts) RecordModel(name metadata.QualifiedName) {
	increment(&u.models, qualified(name))
}

// RecordCommand counts one use of a command.
func (u *UsageCounts) RecordCommand(name metadata.QualifiedName) {
	increment(&u.commands, qualified(name))
}

// RecordRelationship counts one use of a relationship of sourceType.
func (u *UsageCounts) RecordRelationship(sourceType metadata.QualifiedName, relationship string) {
	increment(&u.relationships, qualified(sourceType)+"."+relationship)
}

// Models returns the model use counts in first-use order.
func (u *UsageCounts) Models() *OrderedMap[int] { return &u.models }

// Commands returns the command use counts in first-use order.
func (u *UsageCounts) Commands() *OrderedMap[int] { return &u.commands }

// Relationships returns the relationship use counts, keyed "<source type>.<relationship>".
func (u *UsageCounts) Relationships() *OrderedMap[int] { return &u.relationships }

// Total returns the number of recorded uses.
func (u *UsageCounts) Total() int {
	total := 0
	for _, m := range []*OrderedMap[int]{&u.models, &u.commands, &u.relationships} {
		m.Each(func(_ string, n int) { total += n })
	}
	return total
}

func (u *UsageCounts) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Models        *OrderedMap[int] `json:"models"`
		Commands      *OrderedMap[int] `json:"commands"`
		Relationships *OrderedMap[int] `json:"relationships"`
	}{&u.models, &u.commands, &u.relationships})
}

func increment(m *OrderedMap[int], key string) {
	n, _ := m.Get(key)
	m.Set(key, n+1)
}

func qualified(name metadata.QualifiedName) string {
	text, _ := name.MarshalText()
	return string(text)
}
