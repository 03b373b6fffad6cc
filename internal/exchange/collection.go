// Package exchange tracks which exchanges the rate graph may quote from.
package exchange

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrNotInCollection = errors.New("exchange not in collection")

// NotInCollectionError is returned for an exchange identifier nobody registered.
type NotInCollectionError struct {
	Exchange string
}

func (e *NotInCollectionError) Error() string {
	return fmt.Sprintf("%s is either an invalid exchange or has a broken API.", e.Exchange)
}

func (e *NotInCollectionError) Unwrap() error { return ErrNotInCollection }

// Collection is a case-insensitive set of exchange names. An empty collection accepts any name.
type Collection struct {
	names map[string]struct{}
}

func NewCollection(names ...string) *Collection {
	c := &Collection{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			c.names[strings.ToLower(n)] = struct{}{}
		}
	}
	return c
}

func (c *Collection) Len() int { return len(c.names) }

func (c *Collection) Contains(name string) bool {
	if len(c.names) == 0 {
		return true
	}
	_, ok := c.names[strings.ToLower(name)]
	return ok
}

func (c *Collection) Lookup(name string) error {
	if !c.Contains(name) {
		return &NotInCollectionError{Exchange: name}
	}
	return nil
}

// Check looks up every non-empty name and joins the failures.
func (c *Collection) Check(names ...string) error {
	var errs []error
	seen := map[string]struct{}{}
	for _, n := range names {
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		if err := c.Lookup(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Names returns the registered names in lexical order.
func (c *Collection) Names() []string {
	out := make([]string, 0, len(c.names))
	for n := range c.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
