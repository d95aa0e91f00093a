package tracking

import "github.com/dubeme/eagerload/metadata"

// Entry is the tracking bookkeeping for one instance. Relationship snapshots
// record the as-loaded value of a relationship so later user mutation can be
// diffed against it; snapshot writes also attach the value to the instance,
// which is why fixup in tracked mode never goes through the descriptor
// accessors.
type Entry struct {
	entityType   *metadata.EntityType
	instance     metadata.Record
	refSnapshots map[string]any
	colSnapshots map[string][]any
}

// Type returns the entity type of the tracked instance
func (e *Entry) Type() *metadata.EntityType {
	return e.entityType
}

// Instance returns the tracked instance
func (e *Entry) Instance() metadata.Record {
	return e.instance
}

// SetRelationSnapshot records the as-loaded value of a single-valued
// relationship and attaches it to the instance
func (e *Entry) SetRelationSnapshot(rel *metadata.Relationship, value any) {
	e.refSnapshots[rel.Name] = value
	e.instance[rel.Name] = value
}

// AddToRelationSnapshot appends an item to the as-loaded collection of a
// collection-valued relationship. Items already present, compared by the
// target type's key, are not appended again.
func (e *Entry) AddToRelationSnapshot(rel *metadata.Relationship, item any) {
	if e.collectionContains(rel, item) {
		return
	}

	e.colSnapshots[rel.Name] = append(e.colSnapshots[rel.Name], item)

	arr, _ := e.instance[rel.Name].([]any)
	e.instance[rel.Name] = append(arr, item)
}

// RelationSnapshot returns the snapshot value of a single-valued relationship
func (e *Entry) RelationSnapshot(rel *metadata.Relationship) (any, bool) {
	value, exists := e.refSnapshots[rel.Name]
	return value, exists
}

// CollectionSnapshot returns the snapshot items of a collection relationship
func (e *Entry) CollectionSnapshot(rel *metadata.Relationship) []any {
	return e.colSnapshots[rel.Name]
}

func (e *Entry) collectionContains(rel *metadata.Relationship, item any) bool {
	key, ok := itemKey(rel, item)
	if !ok {
		return false
	}

	for _, existing := range e.colSnapshots[rel.Name] {
		if existingKey, ok := itemKey(rel, existing); ok && existingKey == key {
			return true
		}
	}
	return false
}

func itemKey(rel *metadata.Relationship, item any) (any, bool) {
	rec, ok := item.(metadata.Record)
	if !ok || rel.Target == nil {
		return nil, false
	}
	return rel.Target.Key(rec)
}
