package registry

import (
	"fmt"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/inferloop/mlregistry/pkg/errors"
)

// Artifact ids are built from their coordinates plus a timestamp and a
// process-wide sequence number:
//
//	<kind>_<category>_<dataset>_<version>_<YYYYMMDD_HHMMSS>_<seq>
//
// The sequence number makes ids minted within the same second distinct, so a
// burst of registrations never collides.

var componentPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// Generator mints unique artifact ids.
type Generator struct {
	sequence uint64
	now      func() time.Time
}

// NewGenerator creates an id generator using wall-clock time.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// NewGeneratorWithClock creates an id generator with an injected clock.
func NewGeneratorWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Mint returns a new unique id for the given coordinates.
func (g *Generator) Mint(kind, category, dataset, version string) (string, error) {
	for _, c := range []struct {
		value    string
		sentinel error
	}{
		{kind, errors.ErrInvalidKind},
		{category, errors.ErrInvalidCategory},
		{dataset, errors.ErrInvalidDataset},
		{version, errors.ErrInvalidVersion},
	} {
		if err := validateComponent(c.value, c.sentinel); err != nil {
			return "", err
		}
	}

	seq := atomic.AddUint64(&g.sequence, 1)
	stamp := g.now().UTC().Format("20060102_150405")

	return fmt.Sprintf("%s_%s_%s_%s_%s_%d", kind, category, dataset, version, stamp, seq), nil
}

func validateComponent(value string, sentinel error) error {
	if !componentPattern.MatchString(value) {
		return errors.WrapError(sentinel, errors.ErrorTypeValidation,
			errors.CodeInvalidFormat,
			fmt.Sprintf("Id component %q must be lowercase alphanumeric with . _ -", value))
	}
	return nil
}
