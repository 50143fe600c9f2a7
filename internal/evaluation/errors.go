package evaluation

import "fmt"

// ProviderError classifies an external assessor failure so the API layer can
// tell callers whether retrying End is worthwhile.
type ProviderError struct {
	Transient bool
	Err       error
}

func (e *ProviderError) Error() string {
	kind := "fatal"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("evaluation provider %s failure: %v", kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
