// Package definition parses declarative process graph documents into
// validated, immutable process specifications.
package definition

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"

	"github.com/regenera-io/regenera/pkg/models"
)

type nodeDocument struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Name       string         `json:"name"`
	TaskName   string         `json:"task_name"`
	Timeout    string         `json:"timeout"`
	Duration   string         `json:"duration"`
	AttachedTo string         `json:"attached_to"`
	Config     map[string]any `json:"config"`
}

type processDocument struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Version     string         `json:"version"`
	Nodes       []nodeDocument `json:"nodes"`
	Edges       []*models.Edge `json:"edges"`
}

// Loader turns raw definition documents into process specs. Definitions
// are loaded once at startup and immutable thereafter.
type Loader struct {
	validate *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Load parses and validates one definition document. It returns a
// *ParseError listing every structural issue found.
func (l *Loader) Load(data []byte) (*models.ProcessSpec, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Issues: []string{"document is not valid JSON: " + err.Error()}}
	}

	schemaResult, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(documentSchema),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run schema validation: %w", err)
	}

	if !schemaResult.Valid() {
		issues := make([]string, 0, len(schemaResult.Errors()))
		for _, desc := range schemaResult.Errors() {
			issues = append(issues, desc.String())
		}

		return nil, &ParseError{Issues: issues}
	}

	var doc processDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Issues: []string{err.Error()}}
	}

	spec, err := l.buildSpec(doc)
	if err != nil {
		return nil, err
	}

	if err := l.validate.Struct(spec); err != nil {
		return nil, &ParseError{Process: spec.Name, Issues: []string{err.Error()}}
	}

	spec.Index()

	if issues := validateStructure(spec); len(issues) > 0 {
		return nil, &ParseError{Process: spec.Name, Issues: issues}
	}

	return spec, nil
}

func (l *Loader) buildSpec(doc processDocument) (*models.ProcessSpec, error) {
	spec := &models.ProcessSpec{
		Name:        doc.Name,
		Description: doc.Description,
		Version:     doc.Version,
		Edges:       doc.Edges,
		Nodes:       make([]*models.Node, 0, len(doc.Nodes)),
	}

	var issues []string

	for _, nd := range doc.Nodes {
		node := &models.Node{
			ID:         nd.ID,
			Kind:       models.NodeKind(nd.Kind),
			Name:       nd.Name,
			TaskName:   nd.TaskName,
			AttachedTo: nd.AttachedTo,
			Config:     nd.Config,
		}

		if nd.Timeout != "" {
			timeout, err := time.ParseDuration(nd.Timeout)
			if err != nil {
				issues = append(issues, fmt.Sprintf("node %s: invalid timeout %q", nd.ID, nd.Timeout))
			} else {
				node.Timeout = timeout
			}
		}

		if nd.Duration != "" {
			duration, err := time.ParseDuration(nd.Duration)
			if err != nil {
				issues = append(issues, fmt.Sprintf("node %s: invalid duration %q", nd.ID, nd.Duration))
			} else {
				node.Duration = duration
			}
		}

		spec.Nodes = append(spec.Nodes, node)
	}

	if len(issues) > 0 {
		return nil, &ParseError{Process: doc.Name, Issues: issues}
	}

	return spec, nil
}
