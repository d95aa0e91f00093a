package metadata

import (
	"fmt"

	"github.com/dubeme/eagerload/utils"
)

// Record is the in-memory representation of an entity instance. Related
// objects are attached under the relationship name, single-valued ones as a
// nested Record and collections as []any.
type Record = map[string]any

// EntityType describes one entity participating in the object graph
type EntityType struct {
	Name     string
	Table    string
	KeyField string

	relationships []*Relationship
	byName        map[string]*Relationship
}

// NewEntity creates a new entity type with default table and key naming
func NewEntity(name string) *EntityType {
	return &EntityType{
		Name:     name,
		Table:    ModelNameToTableName(name),
		KeyField: "id",
		byName:   make(map[string]*Relationship),
	}
}

// ModelNameToTableName converts a model name to the default table name (pluralized, snake_case)
func ModelNameToTableName(modelName string) string {
	return utils.Pluralize(utils.ToSnakeCase(modelName))
}

// WithTable overrides the table name
func (t *EntityType) WithTable(name string) *EntityType {
	t.Table = name
	return t
}

// WithKeyField overrides the key field name
func (t *EntityType) WithKeyField(name string) *EntityType {
	t.KeyField = name
	return t
}

// Key returns the identity value of an instance of this type
func (t *EntityType) Key(instance Record) (any, bool) {
	key, ok := instance[t.KeyField]
	return key, ok
}

// Relationship returns a relationship by name
func (t *EntityType) Relationship(name string) (*Relationship, error) {
	rel, exists := t.byName[name]
	if !exists {
		return nil, fmt.Errorf("relation %s not found on model %s", name, t.Name)
	}
	return rel, nil
}

// HasRelationship checks if a relationship exists
func (t *EntityType) HasRelationship(name string) bool {
	_, exists := t.byName[name]
	return exists
}

// Relationships returns all relationships in declaration order
func (t *EntityType) Relationships() []*Relationship {
	return t.relationships
}

func (t *EntityType) add(rel *Relationship) *Relationship {
	if _, exists := t.byName[rel.Name]; exists {
		// Re-declaring a relationship replaces it
		for i, existing := range t.relationships {
			if existing.Name == rel.Name {
				t.relationships[i] = rel
				break
			}
		}
	} else {
		t.relationships = append(t.relationships, rel)
	}
	t.byName[rel.Name] = rel
	return rel
}

// AddReference declares a single-valued relationship to target. The foreign
// key lives on this type and points at the target's key field.
func (t *EntityType) AddReference(name string, target *EntityType, foreignKey string) *Relationship {
	rel := &Relationship{
		Name:       name,
		Kind:       KindReference,
		Source:     t,
		Target:     target,
		ForeignKey: foreignKey,
	}
	if target != nil {
		rel.References = target.KeyField
	}
	rel.Get = defaultGetter(name)
	rel.Set = defaultSetter(name)
	return t.add(rel)
}

// AddCollection declares a collection-valued relationship to target. The
// foreign key lives on the target and points back at this type's key field.
func (t *EntityType) AddCollection(name string, target *EntityType, foreignKey string) *Relationship {
	rel := &Relationship{
		Name:       name,
		Kind:       KindCollection,
		Source:     t,
		Target:     target,
		ForeignKey: foreignKey,
		References: t.KeyField,
	}
	rel.Get = defaultGetter(name)
	rel.Add = defaultAdder(name)
	return t.add(rel)
}

// Validate checks the entity type and all its relationships
func (t *EntityType) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("entity name cannot be empty")
	}
	if t.Table == "" {
		return fmt.Errorf("table name cannot be empty")
	}
	if t.KeyField == "" {
		return fmt.Errorf("key field cannot be empty")
	}

	for _, rel := range t.relationships {
		if err := rel.validate(); err != nil {
			return fmt.Errorf("invalid relationship %s.%s: %w", t.Name, rel.Name, err)
		}
	}

	return nil
}
