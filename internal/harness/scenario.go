package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one scripted dispatcher run.
type Scenario struct {
	// Name identifies the scenario; golden files are keyed on it.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Session is the fixed session token stamped on the trace. Empty
	// means "test-session-default", keeping golden files stable.
	Session string `yaml:"session,omitempty"`

	// Steps execute in order on the driver goroutine.
	Steps []Step `yaml:"steps"`

	// Expect validates the run after the final step.
	Expect Expect `yaml:"expect,omitempty"`
}

// Step is a tagged union; exactly one field may be set.
type Step struct {
	Queue  *QueueStep  `yaml:"queue,omitempty"`
	Submit *SubmitStep `yaml:"submit,omitempty"`
	Update *UpdateStep `yaml:"update,omitempty"`
	Cancel *CancelStep `yaml:"cancel,omitempty"`
}

// QueueStep stages one labelled command on the driver's queue.
type QueueStep struct {
	// Label names the command in the trace.
	Label string `yaml:"label"`

	// Block dispatches the command immediately and waits for it instead
	// of staging it for the next submit.
	Block bool `yaml:"block,omitempty"`
}

// SubmitStep flushes the driver's staged queue and waits for playback.
// A non-blocking submit would make the trace racy, so there is no
// fire-and-forget variant here.
type SubmitStep struct{}

// UpdateStep advances the frame boundary.
type UpdateStep struct{}

// CancelStep drops the driver's staged, unsubmitted commands.
type CancelStep struct{}

// Expect validates the completed run.
type Expect struct {
	// Executed is the exact ordered list of labels that must have run.
	Executed []string `yaml:"executed,omitempty"`

	// Dropped is the total number of commands cancelled across the run.
	Dropped int `yaml:"dropped,omitempty"`

	// Frame is the expected frame counter after the final step.
	Frame uint64 `yaml:"frame,omitempty"`
}

// Validate rejects malformed scenarios before execution.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario missing name")
	}
	for i, step := range s.Steps {
		set := 0
		if step.Queue != nil {
			set++
			if step.Queue.Label == "" {
				return fmt.Errorf("step %d: queue step missing label", i)
			}
		}
		if step.Submit != nil {
			set++
		}
		if step.Update != nil {
			set++
		}
		if step.Cancel != nil {
			set++
		}
		if set != 1 {
			return fmt.Errorf("step %d: exactly one of queue/submit/update/cancel required", i)
		}
	}
	return nil
}

// LoadScenario reads and validates a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &s, nil
}
