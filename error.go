package starschema

// Error is a string error type so sentinel errors can be constants.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrTableNotFound is the cause of any error reading a table which has
	// not been completely written.
	ErrTableNotFound = Error("table not found")

	// ErrMissingField is returned by the record parsers when a field the
	// record cannot do without is absent or null.
	ErrMissingField = Error("missing required field")
)
