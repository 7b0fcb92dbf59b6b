package scraper

import (
	"errors"
	"fmt"

	"wind-speed-service/internal/browser"
)

// ErrNoMatch is returned when no strategy in a chain succeeds.
var ErrNoMatch = errors.New("no locator strategy matched")

// errNothingFound is what a strategy returns when it ran cleanly but the
// page had nothing for it.
var errNothingFound = errors.New("nothing found")

// Strategy is one heuristic for finding or acting on something in a page
// whose structure this service does not control.
type Strategy[T any] struct {
	Name string
	Try  func(p browser.Page) (T, error)
}

// Chain is an ordered list of strategies.
type Chain[T any] []Strategy[T]

// First runs the strategies in order and returns the result of the first
// one that succeeds, along with its name.
func (c Chain[T]) First(p browser.Page) (T, string, error) {
	errs := []error{ErrNoMatch}
	for _, s := range c {
		v, err := s.Try(p)
		if err == nil {
			return v, s.Name, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	var zero T
	return zero, "", errors.Join(errs...)
}

// Each runs every strategy regardless of earlier outcomes and returns the
// names of those that succeeded.
func (c Chain[T]) Each(p browser.Page) []string {
	var ok []string
	for _, s := range c {
		if _, err := s.Try(p); err == nil {
			ok = append(ok, s.Name)
		}
	}
	return ok
}

// evalString runs script and expects a non-empty string back.
func evalString(p browser.Page, script string, arg any) (string, error) {
	v, err := p.Evaluate(script, arg)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	if s == "" {
		return "", errNothingFound
	}
	return s, nil
}

// evalCount runs script and expects a positive count back.
func evalCount(p browser.Page, script string, arg any) (int, error) {
	v, err := p.Evaluate(script, arg)
	if err != nil {
		return 0, err
	}
	var n int
	switch c := v.(type) {
	case int:
		n = c
	case int64:
		n = int(c)
	case float64:
		n = int(c)
	}
	if n <= 0 {
		return 0, errNothingFound
	}
	return n, nil
}

// evalTrue runs script and expects boolean true back.
func evalTrue(p browser.Page, script string, arg any) (bool, error) {
	v, err := p.Evaluate(script, arg)
	if err != nil {
		return false, err
	}
	if b, _ := v.(bool); !b {
		return false, errNothingFound
	}
	return true, nil
}
