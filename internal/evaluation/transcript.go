package evaluation

import (
	"fmt"
	"strings"

	"github.com/antoniostano/vera/internal/interview"
)

// SerializeTranscript renders a finalized turn sequence as the block format
// shared by the prompt builder and the evaluation record:
//
//	Q1 (Standalone): ...
//	A: ...
func SerializeTranscript(turns []interview.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		kind := "Standalone"
		if t.Kind == interview.KindFollowup {
			kind = "Follow-up"
		}
		fmt.Fprintf(&b, "Q%d (%s): %s\n", t.Index, kind, t.Question)
		answer := strings.TrimSpace(t.Answer)
		if answer == "" {
			answer = "(no answer)"
		}
		fmt.Fprintf(&b, "A: %s\n\n", answer)
	}
	return strings.TrimSpace(b.String())
}
