package pipeline

import (
	"fmt"
	"sort"
)

// NameKey is the reserved context entry every producer stamps on an item.
// The pipeline reads it to attribute stage errors to the item that
// triggered them.
const NameKey = "key"

// Context is the named-value bag carried through one pipeline execution for
// one item. Entries a stage does not name in its signature pass through
// untouched. A Context belongs to a single run and is not safe for
// concurrent use.
type Context struct {
	values map[string]interface{}
}

// NewContext creates an empty item context.
func NewContext() *Context {
	return &Context{values: make(map[string]interface{})}
}

// Set stores a named value and returns the context for chaining.
func (c *Context) Set(name string, value interface{}) *Context {
	c.values[name] = value
	return c
}

// Value returns the named entry and whether it exists.
func (c *Context) Value(name string) (interface{}, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Has reports whether the named entry exists.
func (c *Context) Has(name string) bool {
	_, ok := c.values[name]
	return ok
}

// String returns the named entry as a string, or "" when absent or of
// another type.
func (c *Context) String(name string) string {
	if v, ok := c.values[name].(string); ok {
		return v
	}
	return ""
}

// Float returns the named entry as a float64, or 0 when absent or of
// another type.
func (c *Context) Float(name string) float64 {
	if v, ok := c.values[name].(float64); ok {
		return v
	}
	return 0
}

// Int returns the named entry as an int, or 0 when absent or of another
// type.
func (c *Context) Int(name string) int {
	if v, ok := c.values[name].(int); ok {
		return v
	}
	return 0
}

// Strings returns the named entry as a string slice, or nil when absent or
// of another type.
func (c *Context) Strings(name string) []string {
	if v, ok := c.values[name].([]string); ok {
		return v
	}
	return nil
}

// Names returns every entry name in sorted order.
func (c *Context) Names() []string {
	names := make([]string, 0, len(c.values))
	for name := range c.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of entries.
func (c *Context) Len() int {
	return len(c.values)
}

// Clone returns a shallow copy: entry values are shared, the map is not.
func (c *Context) Clone() *Context {
	clone := NewContext()
	for name, value := range c.values {
		clone.values[name] = value
	}
	return clone
}

// Key renders the item's identity for logs and error records: the reserved
// "key" entry when present, stringified.
func (c *Context) Key() string {
	v, ok := c.values[NameKey]
	if !ok {
		return ""
	}
	switch k := v.(type) {
	case string:
		return k
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprint(k)
	}
}
