package transcript

import (
	"fmt"
	"regexp"

	"github.com/hfzizz/nao-llm/internal/domain"
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]{0,127}$`)

// ValidateHandle rejects handles that cannot safely name a file or key.
func ValidateHandle(handle string) error {
	if !handlePattern.MatchString(handle) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidHandle, handle)
	}
	return nil
}
