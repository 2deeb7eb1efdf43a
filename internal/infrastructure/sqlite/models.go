package sqlite

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/grove-sh/grove/internal/registry/domain"
)

// stringList stores a []string as a JSON TEXT column.
type stringList []string

func (s stringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (s *stringList) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	data, err := columnBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, (*[]string)(s))
}

// stringMap stores a map[string]string as a JSON TEXT column.
type stringMap map[string]string

func (m stringMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (m *stringMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	data, err := columnBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, (*map[string]string)(m))
}

func columnBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New(fmt.Sprint("unsupported column type for JSON value:", value))
	}
}

// ProjectModel represents a row of the projects table.
type ProjectModel struct {
	ID        int64
	Name      string
	CreatedAt int64 // Unix timestamp
}

func (m *ProjectModel) toDomain() *domain.Project {
	return &domain.Project{
		ID:        m.ID,
		Name:      m.Name,
		CreatedAt: time.Unix(m.CreatedAt, 0),
	}
}

// PackageModel represents a row of the packages table.
// Collection columns are JSON encoded.
type PackageModel struct {
	ID             int64
	GUID           string
	ProjectID      int64
	Filename       string
	Author         string
	AuthorEmail    string
	Classifiers    stringList
	HomePage       string
	Keywords       stringList
	License        string
	ProjectURLs    stringMap
	RequiresDist   stringList
	RequiresPython string
	SHA256Digest   string
	Summary        string
	Version        string
	UploadedAt     int64 // Unix timestamp
}

func toPackageModel(p *domain.Package) *PackageModel {
	return &PackageModel{
		ID:             p.ID,
		GUID:           p.GUID,
		ProjectID:      p.ProjectID,
		Filename:       p.Filename,
		Author:         p.Author,
		AuthorEmail:    p.AuthorEmail,
		Classifiers:    stringList(p.Classifiers),
		HomePage:       p.HomePage,
		Keywords:       stringList(p.Keywords),
		License:        p.License,
		ProjectURLs:    stringMap(p.ProjectURLs),
		RequiresDist:   stringList(p.RequiresDist),
		RequiresPython: p.RequiresPython,
		SHA256Digest:   p.SHA256Digest,
		Summary:        p.Summary,
		Version:        p.Version,
		UploadedAt:     p.UploadedAt.Unix(),
	}
}

func (m *PackageModel) toDomain() *domain.Package {
	return &domain.Package{
		ID:             m.ID,
		GUID:           m.GUID,
		ProjectID:      m.ProjectID,
		Filename:       m.Filename,
		Author:         m.Author,
		AuthorEmail:    m.AuthorEmail,
		Classifiers:    []string(m.Classifiers),
		HomePage:       m.HomePage,
		Keywords:       []string(m.Keywords),
		License:        m.License,
		ProjectURLs:    map[string]string(m.ProjectURLs),
		RequiresDist:   []string(m.RequiresDist),
		RequiresPython: m.RequiresPython,
		SHA256Digest:   m.SHA256Digest,
		Summary:        m.Summary,
		Version:        m.Version,
		UploadedAt:     time.Unix(m.UploadedAt, 0),
	}
}
