package tryon

import (
	"time"

	"github.com/omeshapasan2/CatVTON-Runpod-Serverless/payload"
)

// JobRequest is a validated, immutable job description.
// Build one with Builder.Build.
type JobRequest struct {
	subject     payload.ImagePayload
	garment     payload.ImagePayload
	subjectText string
	garmentText string
	category    Category
	steps       int
	guidance    float64
	seed        int64
	timeout     time.Duration
	workflow    *Workflow
	mode        Mode
}

// Subject returns the resolved subject (person) image.
func (r *JobRequest) Subject() payload.ImagePayload { return r.subject }

// Garment returns the resolved garment image.
func (r *JobRequest) Garment() payload.ImagePayload { return r.garment }

// Category returns the garment category.
func (r *JobRequest) Category() Category { return r.category }

// Steps returns the number of inference steps.
func (r *JobRequest) Steps() int { return r.steps }

// Guidance returns the guidance scale.
func (r *JobRequest) Guidance() float64 { return r.guidance }

// Seed returns the random seed.
func (r *JobRequest) Seed() int64 { return r.seed }

// Timeout returns the overall job deadline.
func (r *JobRequest) Timeout() time.Duration { return r.timeout }

// Workflow returns the workflow template, or nil.
func (r *JobRequest) Workflow() *Workflow { return r.workflow }

// Mode returns the resolved submission mode (never ModeAuto).
func (r *JobRequest) Mode() Mode { return r.mode }

// RequestBody is the JSON body for run and runsync calls.
type RequestBody struct {
	Input interface{} `json:"input"`
}

// TryOnInput is the flat input accepted by the try-on handler.
type TryOnInput struct {
	PersonImage       string  `json:"person_image"`
	ClothImage        string  `json:"cloth_image"`
	ClothType         string  `json:"cloth_type"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	Seed              int64   `json:"seed"`
}

// WorkflowInput is the input accepted by workflow-graph workers.
type WorkflowInput struct {
	Workflow map[string]interface{} `json:"workflow"`
	Images   []WorkflowImage        `json:"images"`
}

// WorkflowImage is one named image uploaded alongside a workflow.
type WorkflowImage struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Body returns the wire body. The workflow graph is shared, not copied;
// callers must not modify it.
func (r *JobRequest) Body() RequestBody {
	if r.workflow != nil {
		return RequestBody{Input: WorkflowInput{
			Workflow: r.workflow.Graph(),
			Images: []WorkflowImage{
				{Name: r.workflow.SubjectName(), Image: r.subjectText},
				{Name: r.workflow.GarmentName(), Image: r.garmentText},
			},
		}}
	}

	return RequestBody{Input: TryOnInput{
		PersonImage:       r.subjectText,
		ClothImage:        r.garmentText,
		ClothType:         string(r.category),
		NumInferenceSteps: r.steps,
		GuidanceScale:     r.guidance,
		Seed:              r.seed,
	}}
}
