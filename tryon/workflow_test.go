package tryon

import (
	"encoding/json"
	"testing"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/core"
)

const sampleWorkflowJSON = `{
  "3": {"class_type": "LoadImage", "inputs": {"image": "person.png"}},
  "4": {"class_type": "LoadImage", "inputs": {"image": "cloth.png"}},
  "9": {"class_type": "SaveImage", "inputs": {"images": ["8", 0]}}
}`

const sampleWorkflowYAML = `
3:
  class_type: LoadImage
  inputs:
    image: person.png
9:
  class_type: SaveImage
  inputs:
    images: ["8", 0]
`

func TestParseWorkflow(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		nodes int
	}{
		{"json", sampleWorkflowJSON, 3},
		{"yaml with integer keys", sampleWorkflowYAML, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf, err := ParseWorkflow([]byte(tt.data))
			if err != nil {
				t.Fatalf("ParseWorkflow() error = %v", err)
			}
			if wf.NodeCount() != tt.nodes {
				t.Errorf("NodeCount() = %d, want %d", wf.NodeCount(), tt.nodes)
			}
			if _, ok := wf.Graph()["3"]; !ok {
				t.Error(`node "3" missing`)
			}
			if wf.SubjectName() != DefaultSubjectImageName || wf.GarmentName() != DefaultGarmentImageName {
				t.Errorf("image names = %q/%q", wf.SubjectName(), wf.GarmentName())
			}
			if _, err := json.Marshal(wf.Graph()); err != nil {
				t.Errorf("graph is not JSON encodable: %v", err)
			}
		})
	}
}

func TestParseWorkflow_Invalid(t *testing.T) {
	for name, data := range map[string]string{
		"empty":     "   ",
		"list":      "[1, 2, 3]",
		"scalar":    "hello",
		"no nodes":  "{}",
		"malformed": "{\"3\": [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseWorkflow([]byte(data))
			if code := core.GetErrorCode(err); code != core.ErrCodeInvalidWorkflow {
				t.Errorf("error code = %q, want %q (err: %v)", code, core.ErrCodeInvalidWorkflow, err)
			}
		})
	}
}

func TestLoadWorkflow(t *testing.T) {
	path := writeFile(t, "workflow.json", []byte(sampleWorkflowJSON))
	wf, err := LoadWorkflow(path)
	if err != nil {
		t.Fatalf("LoadWorkflow() error = %v", err)
	}
	if wf.Source() != path {
		t.Errorf("Source() = %q, want %q", wf.Source(), path)
	}

	if _, err := LoadWorkflow(path + ".missing"); core.GetErrorCode(err) != core.ErrCodeInvalidWorkflow {
		t.Errorf("missing file error = %v", err)
	}
}

func TestWorkflow_WithImageNames(t *testing.T) {
	wf, err := ParseWorkflow([]byte(sampleWorkflowJSON))
	if err != nil {
		t.Fatal(err)
	}
	renamed := wf.WithImageNames("subject.jpg", "")
	if renamed.SubjectName() != "subject.jpg" || renamed.GarmentName() != DefaultGarmentImageName {
		t.Errorf("renamed = %q/%q", renamed.SubjectName(), renamed.GarmentName())
	}
	if wf.SubjectName() != DefaultSubjectImageName {
		t.Error("WithImageNames modified the original")
	}
}
