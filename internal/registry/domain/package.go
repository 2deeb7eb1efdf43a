package domain

import "time"

// Package is one uploaded distribution artifact: a file in the artifact
// store plus the metadata declared on upload. Rows are immutable once
// created; re-uploading the same filename/version adds another row.
type Package struct {
	ID        int64
	GUID      string
	ProjectID int64

	Filename       string
	Author         string
	AuthorEmail    string
	Classifiers    []string
	HomePage       string
	Keywords       []string
	License        string
	ProjectURLs    map[string]string
	RequiresDist   []string
	RequiresPython string
	SHA256Digest   string
	Summary        string
	Version        string

	UploadedAt time.Time
}
