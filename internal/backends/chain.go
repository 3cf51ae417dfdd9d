// Package backends is the backend registry: it turns a requested provider
// into a ready client by walking an explicit, ordered fallback chain.
package backends

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/askd/internal/faults"
)

// Tier is one candidate of a fallback chain.
type Tier[T any] struct {
	// Name identifies the tier in logs, metrics and status output.
	Name string
	// Validate is an optional cheap check run before Build, such as a
	// reachability probe.
	Validate func(ctx context.Context) error
	// Build constructs the client.
	Build func(ctx context.Context) (T, error)
	// Final, if set, reports whether a failure ends the chain instead of
	// demoting to the next tier.
	Final func(err error) bool
}

// Fallback describes a demotion from one tier to the next.
type Fallback struct {
	Chain string
	From  string
	To    string
	Err   error
}

// Resolve evaluates tiers in order and returns the first client that
// validates and builds, together with the name of the tier that produced it.
// onFallback, if set, is called for every demotion. A tier whose Final
// accepts its error stops the walk with that error. When every tier fails
// the error joins each tier's failure.
func Resolve[T any](ctx context.Context, chain string, tiers []Tier[T], onFallback func(Fallback)) (T, string, error) {
	var (
		zero T
		errs []error
	)
	if len(tiers) == 0 {
		return zero, "", faults.Configuration("%s chain has no tiers", chain)
	}

	for i, tier := range tiers {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		v, err := try(ctx, tier)
		if err == nil {
			return v, tier.Name, nil
		}
		if tier.Final != nil && tier.Final(err) {
			return zero, "", fmt.Errorf("%s: %w", tier.Name, err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", tier.Name, err))
		if onFallback != nil && i+1 < len(tiers) {
			onFallback(Fallback{Chain: chain, From: tier.Name, To: tiers[i+1].Name, Err: err})
		}
	}
	return zero, "", faults.BackendUnavailable("no %s backend available: %w", chain, errors.Join(errs...))
}

func try[T any](ctx context.Context, tier Tier[T]) (T, error) {
	var zero T
	if tier.Validate != nil {
		if err := tier.Validate(ctx); err != nil {
			return zero, err
		}
	}
	return tier.Build(ctx)
}
