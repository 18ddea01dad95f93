package model

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// MinEntities is the smallest number of entities a comparison accepts.
const MinEntities = 2

var allowedExtensions = []string{".pdf", ".txt", ".md", ".csv", ".tsv", ".xlsx"}

// AllowedExtensions returns the file extensions accepted for upload.
func AllowedExtensions() []string {
	out := make([]string, len(allowedExtensions))
	copy(out, allowedExtensions)
	return out
}

// AllowedFile reports whether name has an accepted extension.
func AllowedFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range allowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// Upload is one user-supplied document.
type Upload struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// ValidationError lists every problem found in a submission.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// ValidateSubmission checks entity names and file names before any work is
// done. It returns a *ValidationError or nil.
func ValidateSubmission(entities, filenames []string) error {
	var problems []string
	if len(entities) < MinEntities {
		problems = append(problems, "At least two entities must be specified")
	}
	for i, e := range entities {
		switch {
		case strings.TrimSpace(e) == "":
			problems = append(problems, fmt.Sprintf("Entity %d name is required", i+1))
		case EntityKey(e) == ConclusionKey:
			// The key is taken by the category conclusion on the wire.
			problems = append(problems, fmt.Sprintf("Entity %d name %q is reserved", i+1, strings.TrimSpace(e)))
		}
	}
	if len(filenames) == 0 {
		problems = append(problems, "No files uploaded")
	}
	for _, f := range filenames {
		if !AllowedFile(f) {
			problems = append(problems, fmt.Sprintf("Unsupported file type: %s", f))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ReadyToSubmit mirrors the submit button state: every entity is named, there
// are at least two, and at least one file is chosen.
func ReadyToSubmit(entities []string, fileCount int) bool {
	if len(entities) < MinEntities || fileCount == 0 {
		return false
	}
	for _, e := range entities {
		if strings.TrimSpace(e) == "" {
			return false
		}
	}
	return true
}

// CleanEntities trims entity names and drops blanks, keeping order.
func CleanEntities(entities []string) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}
