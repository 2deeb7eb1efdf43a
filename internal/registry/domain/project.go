// Package domain defines the registry's core entities: projects and the
// packages uploaded for them.
package domain

import (
	"regexp"
	"time"
)

// namePattern is the token pattern shared by project names and artifact
// filenames: word characters, dot and hyphen only.
var namePattern = regexp.MustCompile(`^[\w.-]+$`)

// Project is a named unit of software owning one git repository and zero
// or more uploaded packages. Name is the natural key, unique across the
// registry.
type Project struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// ValidateName checks a project or artifact file name against the token
// pattern. Returns InvalidNameError for anything else, including the empty
// string.
func ValidateName(name string) error {
	if name == "" || !namePattern.MatchString(name) {
		return &InvalidNameError{Name: name}
	}
	return nil
}
