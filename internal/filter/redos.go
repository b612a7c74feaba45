package filter

import (
	"regexp"
	"strings"
	"time"
)

const (
	compileBudget = 10 * time.Millisecond
	evalBudget    = 10 * time.Millisecond
	stressLen     = 1000
)

// stressInput is a deterministic, fixed 1000-character string used to probe a candidate regex for
// catastrophic-looking evaluation cost before it is ever stored. It mixes repeated characters (the classic
// backtracking trigger) with word-like tokens so both literal and lookaround-style patterns get exercised.
var stressInput = strings.Repeat("aaaaaaaaab ", stressLen/11+1)[:stressLen]

// CompileGuarded compiles pattern and runs it against a fixed stress input, rejecting it if either step
// exceeds its time budget. Go's regexp package already compiles to RE2 (linear-time, no backtracking), so
// this is belt-and-suspenders rather than the primary defense: it exists to catch degenerate cases cheaply
// and to give a uniform rejection path regardless of the underlying engine's guarantees.
func CompileGuarded(pattern string) (*regexp.Regexp, error) {
	if len(pattern) > MaxPatternChars {
		return nil, ErrPatternTooLong
	}

	re, err := compileWithBudget(pattern)
	if err != nil {
		return nil, err
	}

	if err := evalWithBudget(re, stressInput); err != nil {
		return nil, err
	}

	return re, nil
}

func compileWithBudget(pattern string) (*regexp.Regexp, error) {
	type result struct {
		re  *regexp.Regexp
		err error
	}
	done := make(chan result, 1)

	go func() {
		re, err := regexp.Compile(pattern)
		done <- result{re, err}
	}()

	select {
	case r := <-done:
		return r.re, r.err
	case <-time.After(compileBudget):
		return nil, ErrPatternTooSlow
	}
}

func evalWithBudget(re *regexp.Regexp, input string) error {
	done := make(chan struct{}, 1)

	go func() {
		re.MatchString(input)
		done <- struct{}{}
	}()

	select {
	case <-done:
		return nil
	case <-time.After(evalBudget):
		return ErrPatternTooSlow
	}
}
