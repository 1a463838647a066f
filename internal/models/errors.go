package models

import "errors"

// Common errors
var (
	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists is returned when a resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInsufficientCredits is returned when a hold is refused because the
	// user's balance is below the requested amount. This is a normal negative
	// outcome, not a processing failure.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrNoPlacementMethod is returned when neither the content-API strategy
	// nor script injection is viable for a target site. Callers skip the
	// opportunity rather than failing it.
	ErrNoPlacementMethod = errors.New("no placement method available")

	// ErrInvalidOpportunity is returned when constructing an opportunity
	// with missing required fields
	ErrInvalidOpportunity = errors.New("invalid opportunity")

	// ErrOpportunityNotPlaceable is returned when an opportunity is not in a
	// state that allows a placement attempt (already placed or failed)
	ErrOpportunityNotPlaceable = errors.New("opportunity is not placeable")
)
