package entity

import (
	"fmt"
	"sort"

	"github.com/kailas-cloud/scopedex/internal/domain"
)

// Catalog is the validated, immutable set of entity descriptors.
type Catalog struct {
	byName map[string]*Descriptor
	names  []string
}

// NewCatalog validates every descriptor and indexes them by name.
func NewCatalog(descs ...Descriptor) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Descriptor, len(descs))}
	indexes := make(map[string]string, len(descs))
	for i := range descs {
		d := descs[i]
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate entity %q", d.Name)
		}
		if other, dup := indexes[d.Index]; dup {
			return nil, fmt.Errorf("entities %q and %q share index %q", other, d.Name, d.Index)
		}
		indexes[d.Index] = d.Name
		c.byName[d.Name] = &d
		c.names = append(c.names, d.Name)
	}
	sort.Strings(c.names)
	return c, nil
}

// Get returns the descriptor for an entity type.
func (c *Catalog) Get(name string) (*Descriptor, error) {
	d, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEntity, name)
	}
	return d, nil
}

// Names lists entity types in lexical order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}
