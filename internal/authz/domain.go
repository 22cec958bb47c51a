// Package authz implements the authorization decision engine: single and
// batched permission checks with scope inheritance and bypass rules.
package authz

import (
	"errors"

	"github.com/flowhub-io/flowhub-authz/internal/catalog"
)

// MaxBatchSize caps a batch check request. The cap bounds worst-case latency
// and the size of the disjunctive assignment query.
const MaxBatchSize = 100

// ErrBatchTooLarge is returned before any storage access when a batch
// exceeds MaxBatchSize.
var ErrBatchTooLarge = errors.New("authz: batch exceeds size cap")

// Check is one (permission, scope) question about a user.
type Check struct {
	Permission string
	Scope      catalog.Scope
}
