package projects

import "errors"

// ErrEmptySelection indicates Delete was called without ids, without a
// name filter, and without the explicit All flag. Deleting everything
// must be asked for, never the default.
var ErrEmptySelection = errors.New("empty selection: set All to delete every project")
