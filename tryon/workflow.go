package tryon

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
	"gopkg.in/yaml.v3"
)

// Default upload names for workflow images. LoadImage nodes in the graph
// reference these names.
const (
	DefaultSubjectImageName = "person.png"
	DefaultGarmentImageName = "cloth.png"
)

// Workflow is a parsed workflow graph plus the names under which the subject
// and garment images are uploaded with it.
type Workflow struct {
	graph       map[string]interface{}
	source      string
	subjectName string
	garmentName string
}

// LoadWorkflow reads a JSON or YAML workflow graph from path.
func LoadWorkflow(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, invalidWorkflow(path, "file not found")
		}
		return nil, invalidWorkflow(path, err.Error())
	}

	wf, err := ParseWorkflow(data)
	if err != nil {
		var cfgErr *core.ConfigError
		if errors.As(err, &cfgErr) {
			cfgErr.Message = fmt.Sprintf("%s (%s)", cfgErr.Message, path)
		}
		return nil, err
	}
	wf.source = path
	return wf, nil
}

// ParseWorkflow parses a workflow graph. JSON is accepted since it is valid YAML.
// The top level must be a non-empty mapping of node ids to nodes.
func ParseWorkflow(data []byte) (*Workflow, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, invalidWorkflow("", "workflow is empty")
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, invalidWorkflow("", err.Error())
	}

	graph, ok := normalizeYAML(raw).(map[string]interface{})
	if !ok {
		return nil, invalidWorkflow("", "top level must be a mapping of node ids")
	}
	if len(graph) == 0 {
		return nil, invalidWorkflow("", "workflow has no nodes")
	}

	return &Workflow{
		graph:       graph,
		subjectName: DefaultSubjectImageName,
		garmentName: DefaultGarmentImageName,
	}, nil
}

// WithImageNames returns a copy that uploads the images under the given names.
// Empty names keep the current ones.
func (w *Workflow) WithImageNames(subject, garment string) *Workflow {
	cp := *w
	if subject != "" {
		cp.subjectName = subject
	}
	if garment != "" {
		cp.garmentName = garment
	}
	return &cp
}

// Graph returns the parsed graph. It must not be modified.
func (w *Workflow) Graph() map[string]interface{} { return w.graph }

// NodeCount returns the number of top-level nodes.
func (w *Workflow) NodeCount() int { return len(w.graph) }

// Source returns the file the workflow was loaded from, if any.
func (w *Workflow) Source() string { return w.source }

// SubjectName returns the upload name of the subject image.
func (w *Workflow) SubjectName() string { return w.subjectName }

// GarmentName returns the upload name of the garment image.
func (w *Workflow) GarmentName() string { return w.garmentName }

// normalizeYAML converts map[interface{}]interface{} (produced for non-string
// keys such as bare integer node ids) into map[string]interface{} so the
// graph can be JSON encoded.
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []interface{}:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}

func invalidWorkflow(path, reason string) *core.ConfigError {
	msg := "Invalid workflow template: " + reason
	if path != "" {
		msg = fmt.Sprintf("Invalid workflow template %s: %s", path, reason)
	}
	return &core.ConfigError{
		Code:    core.ErrCodeInvalidWorkflow,
		Message: msg,
		Action:  "Export the workflow in API format as JSON or YAML",
	}
}
