package store

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the seed content loaded into a fresh database.
type Catalog struct {
	Modules    []CatalogModule    `yaml:"modules"`
	Challenges []CatalogChallenge `yaml:"challenges"`
	Quests     []CatalogQuest     `yaml:"quests"`
	Members    []CatalogMember    `yaml:"members"`
}

// CatalogModule is a module with its lessons.
type CatalogModule struct {
	ID          string          `yaml:"id"`
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Lessons     []CatalogLesson `yaml:"lessons"`
}

// CatalogLesson is a lesson entry inside a module.
type CatalogLesson struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// CatalogChallenge is a challenge running for DurationDays from import time.
type CatalogChallenge struct {
	ID           string `yaml:"id"`
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	Target       int    `yaml:"target"`
	Reward       string `yaml:"reward"`
	DurationDays int    `yaml:"duration_days"`
}

// CatalogQuest is a quest definition.
type CatalogQuest struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Target      int    `yaml:"target"`
	XP          *int   `yaml:"xp"`
}

// CatalogMember is a demo member with pre-recorded activity.
type CatalogMember struct {
	UserID           string         `yaml:"user_id"`
	FullName         string         `yaml:"full_name"`
	Email            string         `yaml:"email"`
	Role             string         `yaml:"role"`
	CompletedLessons []string       `yaml:"completed_lessons"`
	Challenges       map[string]int `yaml:"challenges"`
	Quests           map[string]int `yaml:"quests"`
}

// DefaultCatalog returns the embedded academy catalog.
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(bytes.NewReader(defaultCatalog))
}

// LoadCatalogFile reads the catalog at path, or the embedded one when path is empty.
func LoadCatalogFile(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadCatalog(f)
}

// LoadCatalog decodes a YAML catalog from r.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks identifiers and targets.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool)
	for _, m := range c.Modules {
		if m.ID == "" || m.Title == "" {
			return fmt.Errorf("catalog module requires id and title")
		}
		for _, l := range m.Lessons {
			if l.ID == "" {
				return fmt.Errorf("catalog lesson in module %s has no id", m.ID)
			}
			if seen[l.ID] {
				return fmt.Errorf("catalog lesson id %s is duplicated", l.ID)
			}
			seen[l.ID] = true
		}
	}
	for _, ch := range c.Challenges {
		if ch.ID == "" || ch.Target <= 0 {
			return fmt.Errorf("catalog challenge %q requires id and positive target", ch.ID)
		}
	}
	for _, q := range c.Quests {
		if q.ID == "" || q.Target <= 0 {
			return fmt.Errorf("catalog quest %q requires id and positive target", q.ID)
		}
	}
	return nil
}
