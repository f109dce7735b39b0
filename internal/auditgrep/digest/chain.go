package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/vaibhaw-/auditgrep/internal/auditgrep/filter"
)

// Chain is a SHA-256 hash chain over the results of one run:
//
//	head = SHA256(previous_head + "|" + Canonicalize(result))
//
// starting from a zero hash. Identical result sequences give identical heads,
// and changing, dropping or reordering any result changes the head.
type Chain struct {
	head  string
	count int
}

// NewChain returns an empty chain whose head is the zero hash.
func NewChain() *Chain {
	return &Chain{head: ZeroHash()}
}

// Add folds r into the chain and returns the new head.
func (c *Chain) Add(r filter.Result) (string, error) {
	canon, err := Canonicalize(r)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	h := sha256.Sum256([]byte(c.head + "|" + canon))
	c.head = hex.EncodeToString(h[:])
	c.count++
	return c.head, nil
}

// Head returns the current chain head.
func (c *Chain) Head() string { return c.head }

// Count returns the number of results added.
func (c *Chain) Count() int { return c.count }

// ZeroHash is the head of an empty chain.
func ZeroHash() string {
	return strings.Repeat("0", 64)
}
