package metadata

import "fmt"

// Kind distinguishes single-valued from collection-valued relationships
type Kind string

const (
	KindReference  Kind = "reference"
	KindCollection Kind = "collection"
)

// Getter reads the current value of a relationship field on an instance
type Getter func(owner Record) any

// Setter writes a single-valued relationship field on an instance
type Setter func(owner Record, value any)

// Adder appends an item to a collection relationship field on an instance
type Adder func(owner Record, item any)

// Relationship describes one navigable relationship from a source type to a
// target type. Accessors are resolved once when the metadata is built and are
// never re-resolved per row.
type Relationship struct {
	Name   string
	Kind   Kind
	Source *EntityType
	Target *EntityType

	// ForeignKey is the field holding the link: on Source for references,
	// on Target for collections. References is the key field it points at.
	ForeignKey string
	References string

	// Inverse is the paired relationship on Target pointing back at Source,
	// if one exists.
	Inverse *Relationship

	Get Getter
	Set Setter // single-valued only
	Add Adder  // collection-valued only
}

// IsCollection reports whether the relationship is collection-valued
func (r *Relationship) IsCollection() bool {
	return r.Kind == KindCollection
}

// Pair links two relationships as inverses of each other
func Pair(a, b *Relationship) {
	a.Inverse = b
	b.Inverse = a
}

func (r *Relationship) validate() error {
	if r.Target == nil {
		return fmt.Errorf("related model not found")
	}
	if r.ForeignKey == "" {
		return fmt.Errorf("foreign key cannot be empty")
	}

	switch r.Kind {
	case KindReference:
		if r.Set == nil {
			return fmt.Errorf("reference relationship has no setter")
		}
	case KindCollection:
		if r.Add == nil {
			return fmt.Errorf("collection relationship has no adder")
		}
	default:
		return fmt.Errorf("unknown relationship kind: %s", r.Kind)
	}

	if r.Inverse != nil {
		if r.Inverse.Source != r.Target || r.Inverse.Target != r.Source {
			return fmt.Errorf("inverse relationship %s does not point back from %s to %s",
				r.Inverse.Name, r.Target.Name, r.Source.Name)
		}
		if r.Inverse.Inverse != r {
			return fmt.Errorf("inverse relationship %s is not paired back", r.Inverse.Name)
		}
	}

	return nil
}

// Default accessors operate on map records keyed by relationship name.

func defaultGetter(name string) Getter {
	return func(owner Record) any {
		return owner[name]
	}
}

func defaultSetter(name string) Setter {
	return func(owner Record, value any) {
		owner[name] = value
	}
}

func defaultAdder(name string) Adder {
	return func(owner Record, item any) {
		arr, _ := owner[name].([]any)
		owner[name] = append(arr, item)
	}
}
