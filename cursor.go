package soundbank

import (
	"fmt"
	"sort"
	"sync"
)

// Cursor is a next/previous selection over the bank's sorted names. When the
// selected name disappears, the cursor moves to the name now at its previous
// position, clamped to the end of the list.
type Cursor struct {
	bank *Bank

	mu    sync.Mutex
	name  string
	index int
}

func NewCursor(bank *Bank) *Cursor {
	return &Cursor{bank: bank}
}

// Current returns the selected name, or false when the bank is empty.
func (c *Cursor) Current() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := c.bank.Names()
	if !c.resolve(names) {
		return "", false
	}
	return c.name, true
}

// Next selects the following name, wrapping around.
func (c *Cursor) Next() (string, bool) {
	return c.step(1)
}

// Prev selects the preceding name, wrapping around.
func (c *Cursor) Prev() (string, bool) {
	return c.step(-1)
}

// Select moves the cursor to name.
func (c *Cursor) Select(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := c.bank.Names()
	i := sort.SearchStrings(names, name)
	if i == len(names) || names[i] != name {
		return fmt.Errorf("select %s: %w", name, ErrNotFound)
	}
	c.name, c.index = name, i
	return nil
}

func (c *Cursor) step(delta int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := c.bank.Names()
	if !c.resolve(names) {
		return "", false
	}
	c.index = (c.index + delta + len(names)) % len(names)
	c.name = names[c.index]
	return c.name, true
}

// resolve re-anchors the cursor on names. It reports false when names is empty.
func (c *Cursor) resolve(names []string) bool {
	if len(names) == 0 {
		c.name, c.index = "", 0
		return false
	}
	if c.name != "" {
		if i := sort.SearchStrings(names, c.name); i < len(names) && names[i] == c.name {
			c.index = i
			return true
		}
	}
	c.index = min(max(c.index, 0), len(names)-1)
	c.name = names[c.index]
	return true
}
