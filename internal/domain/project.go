package domain

import (
	"errors"
	"time"
)

// Asset is a deliverable component tracked across projects.
type Asset struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Kind implements Entity.
func (Asset) Kind() Kind { return KindAsset }

// Validate implements Entity.
func (a Asset) Validate() error {
	if a.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// Artifact is a versioned build of one or more assets.
type Artifact struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	AssetIDs []string `json:"assetIds"`
}

// Kind implements Entity.
func (Artifact) Kind() Kind { return KindArtifact }

// Validate implements Entity.
func (a Artifact) Validate() error {
	if a.Name == "" || a.Version == "" {
		return errors.New("name and version are required")
	}
	return nil
}

// Project groups the assets that ship together.
type Project struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	AssetIDs []string `json:"assetIds"`
}

// Kind implements Entity.
func (Project) Kind() Kind { return KindProject }

// Validate implements Entity.
func (p Project) Validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// Release schedules a set of projects for a date.
type Release struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Date       string   `json:"date"`
	ProjectIDs []string `json:"projectIds"`
}

// Kind implements Entity.
func (Release) Kind() Kind { return KindRelease }

// Validate implements Entity.
func (r Release) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if _, err := time.Parse(time.RFC3339, r.Date); err != nil {
		return errors.New("date must be an RFC3339 timestamp")
	}
	return nil
}

// Criterion is a condition that approvers sign off before a gate opens.
type Criterion struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ApproverIDs []string `json:"approverIds"`
}

// Kind implements Entity.
func (Criterion) Kind() Kind { return KindCriterion }

// Validate implements Entity.
func (c Criterion) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// Gate bundles criteria a release must satisfy.
type Gate struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	CriterionIDs []string `json:"criterionIds"`
}

// Kind implements Entity.
func (Gate) Kind() Kind { return KindGate }

// Validate implements Entity.
func (g Gate) Validate() error {
	if g.Name == "" {
		return errors.New("name is required")
	}
	return nil
}
