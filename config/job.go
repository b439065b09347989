package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	processor "github.com/goliatone/go-processor"
	"gopkg.in/yaml.v3"
)

// ProcessConfig selects the processor a job runs. In a job file it is either
// a bare type name or a mapping with settings for that type.
type ProcessConfig struct {
	Type     string     `yaml:"type" json:"type"`
	Package  string     `yaml:"package,omitempty" json:"package,omitempty"`
	Version  string     `yaml:"version,omitempty" json:"version,omitempty"`
	Settings *yaml.Node `yaml:"settings,omitempty" json:"-"`
}

type processConfigFields ProcessConfig

func (p *ProcessConfig) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*p = ProcessConfig{Type: strings.TrimSpace(value.Value)}
		return nil
	case yaml.MappingNode:
		var fields processConfigFields
		if err := value.Decode(&fields); err != nil {
			return err
		}
		fields.Type = strings.TrimSpace(fields.Type)
		*p = ProcessConfig(fields)
		return nil
	default:
		return fmt.Errorf("line %d: process must be a type name or a mapping", value.Line)
	}
}

func (p ProcessConfig) MarshalYAML() (any, error) {
	if p.Package == "" && p.Version == "" && p.Settings == nil {
		return p.Type, nil
	}
	return processConfigFields(p), nil
}

// Job is a parsed job file.
type Job struct {
	Process   ProcessConfig             `yaml:"process" json:"process"`
	Execution processor.ExecutionConfig `yaml:"execution" json:"execution"`

	// Path is the file the job was loaded from, if any.
	Path string `yaml:"-" json:"-"`
}

// Parse decodes a YAML or JSON job. Execution fields missing from data keep
// their defaults.
func Parse(data []byte) (Job, error) {
	job := Job{Execution: processor.DefaultExecutionConfig()}
	if err := yaml.Unmarshal(data, &job); err != nil {
		return job, processor.CloneError(ErrInvalidJob, fmt.Sprintf("parse job: %v", err), err, nil)
	}
	return job, job.Validate()
}

// Load reads and parses the job file at path.
func Load(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, processor.CloneError(ErrInvalidJob, fmt.Sprintf("read job file: %v", err), err,
			map[string]any{"path": path})
	}
	job, err := Parse(data)
	job.Path = path
	return job, err
}

func (j Job) Validate() error {
	if j.Process.Type == "" {
		return processor.CloneError(ErrInvalidJob, "process type is required", nil,
			map[string]any{"field": "process"})
	}
	return j.Execution.Validate()
}

// Write encodes job as YAML.
func Write(w io.Writer, job Job) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(job); err != nil {
		return err
	}
	return enc.Close()
}

// Marshal is Write into a byte slice.
func Marshal(job Job) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, job); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
