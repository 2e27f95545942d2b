//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"errors"
	"fmt"
)

// Sentinel errors returned while rendering a SELECT statement.
// All of them describe caller misuse; none of them is worth retrying.
var (
	// ErrMissingSection is returned when a statement has no FROM or no SELECT item.
	ErrMissingSection = errors.New("missing required SQL section")

	// ErrUnresolvedPlaceholder is returned when a template references an unbound label.
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")

	// ErrLabelCollision is returned when a referenced label is bound both as identifier and as value.
	ErrLabelCollision = errors.New("label bound as both identifier and value")

	// ErrMalformedTemplate is returned for an unclosed '{', an empty '{}' or a stray '}'.
	ErrMalformedTemplate = errors.New("malformed template")

	// ErrNestingTooDeep is returned when subqueries nest beyond MaxNestingDepth.
	ErrNestingTooDeep = errors.New("subquery nesting too deep")

	// ErrDisallowedCharacters is returned in strict mode when sanitizing would alter a binding.
	ErrDisallowedCharacters = errors.New("binding contains disallowed characters")

	// ErrNilSubquery is returned when a subquery value wraps a nil renderer.
	ErrNilSubquery = errors.New("subquery cannot be nil")
)

// MaxNestingDepth bounds subquery recursion, which also catches self-referencing builders.
const MaxNestingDepth = 32

// MissingSectionError names the required section ("from" or "select") that is empty.
type MissingSectionError struct {
	Section string
}

func (e *MissingSectionError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingSection, e.Section)
}

// Unwrap allows errors.Is(err, ErrMissingSection).
func (e *MissingSectionError) Unwrap() error {
	return ErrMissingSection
}

// UnresolvedPlaceholderError names a template label that has no binding.
type UnresolvedPlaceholderError struct {
	Label string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("%s: {%s}", ErrUnresolvedPlaceholder, e.Label)
}

// Unwrap allows errors.Is(err, ErrUnresolvedPlaceholder).
func (e *UnresolvedPlaceholderError) Unwrap() error {
	return ErrUnresolvedPlaceholder
}

// LabelCollisionError names a label present in both the identifier and value namespaces.
type LabelCollisionError struct {
	Label string
}

func (e *LabelCollisionError) Error() string {
	return fmt.Sprintf("%s: {%s}", ErrLabelCollision, e.Label)
}

// Unwrap allows errors.Is(err, ErrLabelCollision).
func (e *LabelCollisionError) Unwrap() error {
	return ErrLabelCollision
}

// DisallowedCharactersError names the binding rejected in strict mode.
// The raw input is deliberately not part of the message.
type DisallowedCharactersError struct {
	Label string
}

func (e *DisallowedCharactersError) Error() string {
	return fmt.Sprintf("%s: {%s}", ErrDisallowedCharacters, e.Label)
}

// Unwrap allows errors.Is(err, ErrDisallowedCharacters).
func (e *DisallowedCharactersError) Unwrap() error {
	return ErrDisallowedCharacters
}
