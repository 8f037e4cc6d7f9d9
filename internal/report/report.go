// Package report partitions search hits by a whitelist and turns the
// accepted hits into a pass/fail verdict.
package report

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	pserrors "github.com/Aman-CERP/psearch/internal/errors"
	"github.com/Aman-CERP/psearch/internal/output"
)

// FailCondition maps the accepted hits of a search to a verdict.
type FailCondition string

const (
	// FailNever always passes.
	FailNever FailCondition = "never"
	// FailOnHit fails when at least one hit was accepted.
	FailOnHit FailCondition = "hit"
	// FailOnMiss fails when no hit was accepted.
	FailOnMiss FailCondition = "miss"
)

// ParseFailCondition parses never, hit or miss. The empty string is never.
func ParseFailCondition(s string) (FailCondition, error) {
	switch c := FailCondition(s); c {
	case "":
		return FailNever, nil
	case FailNever, FailOnHit, FailOnMiss:
		return c, nil
	}
	return "", pserrors.New(pserrors.ErrCodeConfigInvalid,
		fmt.Sprintf("invalid fail condition %q", s), nil).
		WithSuggestion("use one of: never, hit, miss")
}

// Fails reports whether accepted hits violate the condition.
func (c FailCondition) Fails(accepted int) bool {
	switch c {
	case FailOnHit:
		return accepted > 0
	case FailOnMiss:
		return accepted == 0
	}
	return false
}

// VerdictError signals that a search surfaced unwanted results. It is an
// expected outcome, not a malfunction.
type VerdictError struct {
	Condition FailCondition
	Accepted  int
}

func (e *VerdictError) Error() string {
	return "Unwanted search results."
}

// IsVerdict reports whether err carries a VerdictError.
func IsVerdict(err error) bool {
	var v *VerdictError
	return errors.As(err, &v)
}

// Whitelist ignores hits that any of its patterns matches.
type Whitelist []*regexp.Regexp

// CompileWhitelist compiles a comma-separated list of regular expressions.
// Empty entries are dropped, so "" yields an empty whitelist.
func CompileWhitelist(csv string) (Whitelist, error) {
	var wl Whitelist
	for _, expr := range strings.Split(csv, ",") {
		if expr == "" {
			continue
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, pserrors.InvalidPatternError(expr, err)
		}
		wl = append(wl, re)
	}
	return wl, nil
}

// Matches reports whether some pattern matches anywhere in s.
func (wl Whitelist) Matches(s string) bool {
	for _, re := range wl {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// Report is the outcome of one search, partitioned by a whitelist.
type Report struct {
	// Accepted hits, sorted.
	Accepted []string
	// Ignored hits, sorted.
	Ignored []string
}

// Partition splits hits into accepted and ignored.
func Partition(hits []string, wl Whitelist) *Report {
	r := &Report{Accepted: []string{}, Ignored: []string{}}
	for _, h := range hits {
		if wl.Matches(h) {
			r.Ignored = append(r.Ignored, h)
		} else {
			r.Accepted = append(r.Accepted, h)
		}
	}
	sort.Strings(r.Accepted)
	sort.Strings(r.Ignored)
	return r
}

// Verdict returns a *VerdictError when the accepted hits violate c.
func (r *Report) Verdict(c FailCondition) error {
	if c.Fails(len(r.Accepted)) {
		return &VerdictError{Condition: c, Accepted: len(r.Accepted)}
	}
	return nil
}

// Print writes the accepted hits and, when present, the ignored ones.
func (r *Report) Print(w *output.Writer) {
	if len(r.Accepted) == 0 {
		w.Line("Nothing found.")
	} else {
		w.Heading("Found:")
		for _, h := range r.Accepted {
			w.Item(h)
		}
	}
	if len(r.Ignored) > 0 {
		w.Newline()
		w.Heading("The following results were ignored:")
		for _, h := range r.Ignored {
			w.Item(h)
		}
	}
}
