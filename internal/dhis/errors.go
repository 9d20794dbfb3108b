package dhis

import "fmt"

// Conflict is one object-level rejection from an import summary, e.g. a
// value that is not in the data element's option set.
type Conflict struct {
	Object string `json:"object"`
	Value  string `json:"value"`
}

// ImportError reports a rejected event submission. It carries the payload
// as posted plus the server's reason so the failure store has enough to
// debug and replay.
type ImportError struct {
	Status    int
	Reason    string
	Conflicts []Conflict
	Payload   []byte
}

func (e *ImportError) Error() string {
	if len(e.Conflicts) > 0 {
		return fmt.Sprintf("import rejected (status %d): %s; conflicts: %v", e.Status, e.Reason, e.Conflicts)
	}
	return fmt.Sprintf("import rejected (status %d): %s", e.Status, e.Reason)
}
