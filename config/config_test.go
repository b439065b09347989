package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	processor "github.com/goliatone/go-processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type importSettings struct {
	Source    string        `yaml:"source"`
	BatchSize int           `yaml:"batch_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

func (s importSettings) Validate() error {
	if s.BatchSize <= 0 {
		return processor.CloneError(processor.ErrInvalidConfig, "batch_size must be positive", nil, nil)
	}
	return nil
}

func defaultImportSettings() importSettings {
	return importSettings{Source: "inbox", BatchSize: 10}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, RegisterType(r, "import", "imports things", defaultImportSettings))
	return r
}

func TestParse_MappingProcess(t *testing.T) {
	data := []byte(`
process:
  type: Import
  version: "2"
  settings:
    batch_size: 25
    timeout: 3s
execution:
  parallel_task_count: 4
  item_failure_retry_count: 2
  retry_delay: 100ms
`)

	job, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "Import", job.Process.Type)
	assert.Equal(t, "2", job.Process.Version)
	assert.Equal(t, 4, job.Execution.ParallelTaskCount)
	assert.Equal(t, 2, job.Execution.ItemFailureRetryCount)
	assert.Equal(t, 100*time.Millisecond, job.Execution.RetryDelay)

	// unspecified fields keep their defaults
	assert.Equal(t, 1, job.Execution.ItemFailureCountToStopProcess)
	assert.True(t, job.Execution.HandleExceptions)

	settings, err := newTestRegistry(t).Decode(job.Process)
	require.NoError(t, err)
	assert.Equal(t, importSettings{Source: "inbox", BatchSize: 25, Timeout: 3 * time.Second}, settings)
}

func TestParse_ScalarProcessAndJSON(t *testing.T) {
	job, err := Parse([]byte(`{"process": "import", "execution": {"handle_exceptions": false}}`))
	require.NoError(t, err)
	assert.Equal(t, "import", job.Process.Type)
	assert.Nil(t, job.Process.Settings)
	assert.False(t, job.Execution.HandleExceptions)

	settings, err := newTestRegistry(t).Decode(job.Process)
	require.NoError(t, err)
	assert.Equal(t, defaultImportSettings(), settings)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte(`execution: {}`))
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidJob, processor.ErrorCode(err))

	_, err = Parse([]byte("process: import\nexecution:\n  parallel_task_count: -2\n"))
	require.Error(t, err)
	assert.Equal(t, processor.ErrCodeInvalidConfig, processor.ErrorCode(err))

	_, err = Parse([]byte("process: [a, b]"))
	require.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := newTestRegistry(t)

	err := RegisterType(r, " IMPORT ", "again", defaultImportSettings)
	require.Error(t, err)
	assert.Equal(t, ErrCodeDuplicateType, processor.ErrorCode(err))

	err = RegisterType(r, "", "empty", defaultImportSettings)
	require.Error(t, err)

	_, err = r.Decode(ProcessConfig{Type: "export"})
	require.Error(t, err)
	assert.Equal(t, ErrCodeUnknownType, processor.ErrorCode(err))

	require.NoError(t, RegisterType(r, "cleanup", "cleans up", func() struct{} { return struct{}{} }))
	types := r.Types()
	require.Len(t, types, 2)
	assert.Equal(t, "cleanup", types[0].Type)
	assert.Equal(t, "import", types[1].Type)
}

func TestRegistry_DecodeValidatesSettings(t *testing.T) {
	job, err := Parse([]byte("process:\n  type: import\n  settings:\n    batch_size: 0\n"))
	require.NoError(t, err)

	_, err = newTestRegistry(t).Decode(job.Process)
	require.Error(t, err)
	assert.Equal(t, processor.ErrCodeInvalidConfig, processor.ErrorCode(err))
}

func TestDefaultJob_RoundTripsThroughFile(t *testing.T) {
	r := newTestRegistry(t)
	job, err := r.DefaultJob("import")
	require.NoError(t, err)
	require.NotNil(t, job.Process.Settings)

	path := filepath.Join(t.TempDir(), "job.yaml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, Write(f, job))
	require.NoError(t, f.Close())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, loaded.Path)
	assert.Equal(t, "import", loaded.Process.Type)
	assert.Equal(t, processor.DefaultExecutionConfig(), loaded.Execution)

	settings, err := r.Decode(loaded.Process)
	require.NoError(t, err)
	assert.Equal(t, defaultImportSettings(), settings)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidJob, processor.ErrorCode(err))
}
