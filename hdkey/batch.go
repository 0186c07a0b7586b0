package hdkey

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/sync/errgroup"
)

// DeriveChildren derives the children of parent at each of indices, running
// at most workers derivations at once. A non-positive workers value removes
// the limit. Result i belongs to indices[i]; a failed derivation only fails
// its own slot. If ctx is cancelled, slots that were not yet derived hold
// ctx.Err().
func DeriveChildren(ctx context.Context, parent *ExtendedPrivateKey,
	indices []uint32, workers int) []fn.Result[*ExtendedPrivateKey] {

	results := make([]fn.Result[*ExtendedPrivateKey], len(indices))

	// The parent's public key is needed by every normal child, so compute
	// it once before fanning out.
	if _, err := parent.publicPoint(); err != nil {
		for i := range results {
			results[i] = fn.Err[*ExtendedPrivateKey](err)
		}

		return results
	}

	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, idx := range indices {
		if err := ctx.Err(); err != nil {
			results[i] = fn.Err[*ExtendedPrivateKey](err)
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = fn.Err[*ExtendedPrivateKey](err)
				return nil
			}

			child, err := parent.Child(idx)
			if err != nil {
				results[i] = fn.Err[*ExtendedPrivateKey](err)
				return nil
			}
			results[i] = fn.Ok(child)

			return nil
		})
	}

	// Every goroutine reports through its slot, so Wait never fails.
	_ = g.Wait()

	log.Debugf("Derived %d children of key %v with %d workers",
		len(indices), fingerprintString(parent.Fingerprint()), workers)

	return results
}
