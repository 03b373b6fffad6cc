package valuation

import (
	"errors"
	"fmt"
)

var (
	ErrMissingEdge      = errors.New("missing edge")
	ErrMissingAttribute = errors.New("missing attribute")
	ErrPrecondition     = errors.New("precondition violated")
)

// EdgeError reports a path hop that is not an edge of the graph.
type EdgeError struct {
	From, To string
}

func (e *EdgeError) Error() string {
	return fmt.Sprintf("%s -> %s: %v", e.From, e.To, ErrMissingEdge)
}

func (e *EdgeError) Unwrap() error { return ErrMissingEdge }

// AttributeError reports an edge or path lacking a value the requested mode needs.
// From and To are empty when the attribute belongs to the path itself.
type AttributeError struct {
	From, To  string
	Attribute string
}

func (e *AttributeError) Error() string {
	if e.From == "" && e.To == "" {
		return fmt.Sprintf("path: %v %q", ErrMissingAttribute, e.Attribute)
	}
	return fmt.Sprintf("%s -> %s: %v %q", e.From, e.To, ErrMissingAttribute, e.Attribute)
}

func (e *AttributeError) Unwrap() error { return ErrMissingAttribute }
