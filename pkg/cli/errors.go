package cli

import (
	"errors"
	"fmt"
)

// errReported marks failures whose details are already on the terminal;
// Main only turns them into a non-zero exit status.
var errReported = errors.New("reported")

// Common CLI errors
var (
	ErrChainsFailed  = fmt.Errorf("one or more chains did not pass: %w", errReported)
	ErrInvalidChains = fmt.Errorf("one or more chain files are invalid: %w", errReported)
)
