package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrRoleNotFound is returned when a role id cannot be resolved.
var ErrRoleNotFound = errors.New("role not found")

// Role describes a position a candidate can interview for. Immutable once
// loaded; the core never mutates it.
type Role struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Department   string   `json:"department"`
	Location     string   `json:"location"`
	Description  string   `json:"description"`
	Requirements []string `json:"requirements"`
}

func (r Role) clone() Role {
	out := r
	out.Requirements = append([]string(nil), r.Requirements...)
	return out
}

// Catalog resolves role identifiers to role metadata. Read-only.
type Catalog interface {
	Resolve(id string) (Role, error)
	List() []Role
}

// Static is an immutable in-memory catalog.
type Static struct {
	roles []Role
	byID  map[string]Role
}

// New validates the role set and builds a catalog from it.
func New(roles []Role) (*Static, error) {
	if len(roles) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	byID := make(map[string]Role, len(roles))
	kept := make([]Role, 0, len(roles))
	for i, r := range roles {
		if strings.TrimSpace(r.ID) == "" {
			return nil, fmt.Errorf("role at index %d has no id", i)
		}
		if strings.TrimSpace(r.Title) == "" {
			return nil, fmt.Errorf("role %q has no title", r.ID)
		}
		if _, dup := byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate role id %q", r.ID)
		}
		c := r.clone()
		byID[c.ID] = c
		kept = append(kept, c)
	}
	return &Static{roles: kept, byID: byID}, nil
}

// LoadFile reads a JSON array of roles.
func LoadFile(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var roles []Role
	if err := json.Unmarshal(raw, &roles); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	c, err := New(roles)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Builtin returns the compiled-in sample catalog, used when no catalog file
// is configured so the service runs out of the box.
func Builtin() *Static {
	c, err := New([]Role{
		{
			ID:          "job_1",
			Title:       "Software Engineer",
			Department:  "Engineering",
			Location:    "Remote",
			Description: "Build and operate backend services for the hiring platform.",
			Requirements: []string{
				"Go or a comparable systems language",
				"Designing and operating HTTP APIs",
				"Relational databases",
				"Production debugging and observability",
			},
		},
		{
			ID:          "job_2",
			Title:       "Product Manager",
			Department:  "Product",
			Location:    "New York",
			Description: "Own the candidate-experience roadmap end to end.",
			Requirements: []string{
				"Shipping B2B software products",
				"Quantitative experiment design",
				"Stakeholder communication",
			},
		},
		{
			ID:          "job_3",
			Title:       "Data Analyst",
			Department:  "Data",
			Location:    "London",
			Description: "Turn interview funnel data into decisions.",
			Requirements: []string{
				"SQL",
				"Statistical analysis",
				"Dashboarding and reporting",
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Resolve returns the role for id or ErrRoleNotFound.
func (c *Static) Resolve(id string) (Role, error) {
	r, ok := c.byID[id]
	if !ok {
		return Role{}, fmt.Errorf("%w: %s", ErrRoleNotFound, id)
	}
	return r.clone(), nil
}

// List returns all roles in load order.
func (c *Static) List() []Role {
	out := make([]Role, 0, len(c.roles))
	for _, r := range c.roles {
		out = append(out, r.clone())
	}
	return out
}
