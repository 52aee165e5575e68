package model

import "fmt"

// DateParseError reports a loss date that matched none of the configured
// layouts. It is fatal: a triangle built without the record would misstate
// every total, so the whole build aborts.
type DateParseError struct {
	Source string // file path or URL the record came from
	Row    int    // 1-based data row within the source
	Value  string // raw date text as found
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("%s row %d: unparseable loss date %q", e.Source, e.Row, e.Value)
}

// MissingColumnError reports a required column absent from a source.
// Row 0 means the header itself lacks the column; a positive Row means the
// record carries no value for it.
type MissingColumnError struct {
	Source string
	Row    int
	Column string
}

func (e *MissingColumnError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("%s: header has no %q column", e.Source, e.Column)
	}
	return fmt.Sprintf("%s row %d: no value in column %q", e.Source, e.Row, e.Column)
}
