// Package planfile loads and validates YAML plan files: the tasks to
// run, their success criteria, and the concrete actions fulfilling
// each task.
package planfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hollis-day/autopilot/internal/errs"
	"github.com/hollis-day/autopilot/internal/task"
)

// TaskSpec is one task entry in a plan file.
type TaskSpec struct {
	ID              string           `yaml:"id"`
	Title           string           `yaml:"title"`
	Priority        int              `yaml:"priority,omitempty"`
	SuccessCriteria []task.Criterion `yaml:"success_criteria,omitempty"`
	Actions         []task.Action    `yaml:"actions"`
}

// File is a parsed plan file.
type File struct {
	Session string     `yaml:"session,omitempty"`
	Tasks   []TaskSpec `yaml:"tasks"`
}

// Load reads and validates a plan file from disk.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates plan file content.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrPlanInvalid, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks structural requirements: at least one task, unique
// non-empty task ids, and well-formed actions and criteria.
func (f *File) Validate() error {
	if len(f.Tasks) == 0 {
		return fmt.Errorf("%w: no tasks defined", errs.ErrPlanInvalid)
	}

	seen := make(map[string]bool)
	for i, spec := range f.Tasks {
		if spec.ID == "" {
			return fmt.Errorf("%w: task %d has no id", errs.ErrPlanInvalid, i)
		}
		if seen[spec.ID] {
			return fmt.Errorf("%w: duplicate task id %q", errs.ErrPlanInvalid, spec.ID)
		}
		seen[spec.ID] = true

		for j, action := range spec.Actions {
			if err := validateAction(action); err != nil {
				return fmt.Errorf("%w: task %q action %d: %v", errs.ErrPlanInvalid, spec.ID, j, err)
			}
		}
		for j, c := range spec.SuccessCriteria {
			if err := validateCriterion(c); err != nil {
				return fmt.Errorf("%w: task %q criterion %d: %v", errs.ErrPlanInvalid, spec.ID, j, err)
			}
		}
	}
	return nil
}

func validateAction(a task.Action) error {
	switch a.Kind {
	case task.ActionFileWrite:
		if a.Target == "" {
			return fmt.Errorf("file_write requires a target")
		}
	case task.ActionFileDelete:
		if a.Target == "" {
			return fmt.Errorf("file_delete requires a target")
		}
	case task.ActionCommand:
		if a.Program == "" {
			return fmt.Errorf("command requires a program")
		}
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}

func validateCriterion(c task.Criterion) error {
	switch c.Kind {
	case task.CriterionFileExists:
		if c.Path == "" {
			return fmt.Errorf("file_exists requires a path")
		}
	case task.CriterionFileContains:
		if c.Path == "" || c.Substring == "" {
			return fmt.Errorf("file_contains requires a path and a substring")
		}
	case task.CriterionCommandRuns:
		if c.Program == "" {
			return fmt.Errorf("command_runs requires a program")
		}
	default:
		return fmt.Errorf("unknown criterion kind %q", c.Kind)
	}
	return nil
}

// BuildTasks converts the specs into runnable tasks, in file order.
func (f *File) BuildTasks() []*task.Task {
	tasks := make([]*task.Task, 0, len(f.Tasks))
	for _, spec := range f.Tasks {
		tasks = append(tasks, &task.Task{
			ID:              spec.ID,
			Title:           spec.Title,
			Status:          task.StatusPending,
			Priority:        spec.Priority,
			SuccessCriteria: spec.SuccessCriteria,
		})
	}
	return tasks
}

// BuildPlans returns each task's execution plan keyed by task id.
// Tasks without actions map to an empty plan.
func (f *File) BuildPlans() map[string]task.Plan {
	plans := make(map[string]task.Plan, len(f.Tasks))
	for _, spec := range f.Tasks {
		plans[spec.ID] = task.Plan{TaskID: spec.ID, Actions: spec.Actions}
	}
	return plans
}
