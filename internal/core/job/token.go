package job

import (
	"context"
	"sync"
)

// Token marks the point at which a prior unit of work has finished and its
// effects are visible. The zero Token is already satisfied.
//
// A Token is either a leaf created by New, or a combination of leaves built by
// Combine. Combined tokens are flat: they never nest other combinations.
type Token struct {
	leaves []*leaf
}

type leaf struct {
	done chan struct{}
	once sync.Once
}

func (l *leaf) complete() {
	l.once.Do(func() { close(l.done) })
}

func (l *leaf) isDone() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// New returns an unsatisfied token and the function that satisfies it.
// Calling complete more than once is harmless.
func New() (Token, func()) {
	l := &leaf{done: make(chan struct{})}
	return Token{leaves: []*leaf{l}}, l.complete
}

// Completed returns a token that is already satisfied.
func Completed() Token {
	return Token{}
}

// Combine joins tokens into one that is satisfied only when all inputs are.
// Inputs that are already satisfied are dropped, duplicates collapse.
func Combine(tokens ...Token) Token {
	var n int
	for _, t := range tokens {
		n += len(t.leaves)
	}
	if n == 0 {
		return Token{}
	}
	out := make([]*leaf, 0, n)
	seen := make(map[*leaf]struct{}, n)
	for _, t := range tokens {
		for _, l := range t.leaves {
			if _, ok := seen[l]; ok {
				continue
			}
			seen[l] = struct{}{}
			if l.isDone() {
				continue
			}
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return Token{}
	}
	return Token{leaves: out}
}

// IsDone reports whether every input of the token has completed.
func (t Token) IsDone() bool {
	for _, l := range t.leaves {
		if !l.isDone() {
			return false
		}
	}
	return true
}

// Wait blocks until the token is satisfied or ctx is done.
func (t Token) Wait(ctx context.Context) error {
	for _, l := range t.leaves {
		select {
		case <-l.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// DependsOn reports whether t cannot be satisfied before u is. A satisfied u
// is trivially depended on.
func (t Token) DependsOn(u Token) bool {
	if u.IsDone() {
		return true
	}
	own := make(map[*leaf]struct{}, len(t.leaves))
	for _, l := range t.leaves {
		own[l] = struct{}{}
	}
	for _, l := range u.leaves {
		if l.isDone() {
			continue
		}
		if _, ok := own[l]; !ok {
			return false
		}
	}
	return true
}

// Pending returns the number of unfinished inputs.
func (t Token) Pending() int {
	var n int
	for _, l := range t.leaves {
		if !l.isDone() {
			n++
		}
	}
	return n
}
