package domain

import (
	"errors"
	"fmt"
)

// InvalidNameError indicates a project or file name outside the allowed
// token pattern.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid name %q: only word characters, dot and hyphen are allowed", e.Name)
}

// ProjectExistsError indicates an insert hit the uniqueness constraint on
// the project name. Callers treat this as a branch, not a failure.
type ProjectExistsError struct {
	Name string
}

func (e *ProjectExistsError) Error() string {
	return fmt.Sprintf("project %q already exists", e.Name)
}

// ProjectNotFoundError indicates no project row exists for the name.
type ProjectNotFoundError struct {
	Name string
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("project %q not found", e.Name)
}

// IsInvalidName reports whether err is an InvalidNameError.
func IsInvalidName(err error) bool {
	var target *InvalidNameError
	return errors.As(err, &target)
}

// IsProjectExists reports whether err is a ProjectExistsError.
func IsProjectExists(err error) bool {
	var target *ProjectExistsError
	return errors.As(err, &target)
}

// IsProjectNotFound reports whether err is a ProjectNotFoundError.
func IsProjectNotFound(err error) bool {
	var target *ProjectNotFoundError
	return errors.As(err, &target)
}
