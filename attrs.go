// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package opbind

// Attr is a single named attribute.
type Attr struct {
	Name  string
	Value any
}

// Attrs is the immutable named attribute set of a call frame. Attributes keep
// their construction order and duplicate names are a caller defect. Lookup is
// order-independent, by name.
type Attrs struct {
	entries []Attr
	index   map[string]int
}

// NewAttrs builds an attribute set. Panics on a duplicate or empty name.
func NewAttrs(attrs ...Attr) Attrs {
	index := make(map[string]int, len(attrs))
	for i, a := range attrs {
		if a.Name == "" {
			panic("opbind: attribute with empty name")
		}
		if _, dup := index[a.Name]; dup {
			panic("opbind: duplicate attribute " + a.Name)
		}
		index[a.Name] = i
	}
	return Attrs{entries: attrs, index: index}
}

// Len returns the number of attributes.
func (a Attrs) Len() int {
	return len(a.entries)
}

// At returns the i-th attribute in construction order.
func (a Attrs) At(i int) Attr {
	return a.entries[i]
}

// Get returns the value of the named attribute.
func (a Attrs) Get(name string) (any, bool) {
	i, ok := a.index[name]
	if !ok {
		return nil, false
	}
	return a.entries[i].Value, true
}

// GetAttr returns the named attribute as T. False if absent or of another type.
func GetAttr[T any](a Attrs, name string) (T, bool) {
	v, ok := a.Get(name)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
