// Package dataset loads benchmark task files. Two formats are supported: a
// CSV file with an id,input,target header and a JSON array of task objects
// validated against an embedded schema.
package dataset

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/zetareason/reasonbench/internal/models"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

const taskSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "minItems": 1,
  "items": {
    "type": "object",
    "required": ["id", "input", "target"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "input": {"type": "string", "minLength": 1},
      "target": {"type": "string"}
    },
    "additionalProperties": false
  }
}`

var taskSchema *jsonschema.Schema

func init() {
	taskSchema = mustCompileSchema(taskSchemaJSON, "tasks.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidationError describes why a dataset file was rejected.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid dataset %s: %s", e.Path, strings.Join(e.Problems, "; "))
}

// Load reads tasks from a dataset file, dispatching on the extension.
func Load(path string) ([]models.Task, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadCSV(path)
	case ".json":
		return LoadJSON(path)
	default:
		return nil, &ValidationError{Path: path, Problems: []string{"unsupported extension, want .csv or .json"}}
	}
}

// LoadCSV reads a CSV dataset. The first row must be the id,input,target
// header; every following row is one task.
func LoadCSV(path string) ([]models.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 3

	header, err := reader.Read()
	if err != nil {
		return nil, &ValidationError{Path: path, Problems: []string{"missing header row"}}
	}
	if !headerMatches(header) {
		return nil, &ValidationError{
			Path:     path,
			Problems: []string{fmt.Sprintf("header must be id,input,target, got %s", strings.Join(header, ","))},
		}
	}

	var tasks []models.Task
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ValidationError{Path: path, Problems: []string{fmt.Sprintf("line %d: %v", line, err)}}
		}
		tasks = append(tasks, models.Task{
			ID:     strings.TrimSpace(record[0]),
			Input:  record[1],
			Target: record[2],
		})
	}

	if err := checkTasks(path, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func headerMatches(header []string) bool {
	if len(header) != 3 {
		return false
	}
	want := []string{"id", "input", "target"}
	for i, col := range header {
		if !strings.EqualFold(strings.TrimSpace(col), want[i]) {
			return false
		}
	}
	return true
}

// LoadJSON reads a JSON dataset and validates it against the task schema
// before decoding.
func LoadJSON(path string) ([]models.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Path: path, Problems: []string{fmt.Sprintf("JSON parse error: %v", err)}}
	}

	if problems := validateAgainstSchema(taskSchema, doc); len(problems) > 0 {
		return nil, &ValidationError{Path: path, Problems: problems}
	}

	var tasks []models.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, &ValidationError{Path: path, Problems: []string{err.Error()}}
	}

	if err := checkTasks(path, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// checkTasks enforces the structural rules the schema cannot: a non-empty
// set and unique, non-blank task IDs.
func checkTasks(path string, tasks []models.Task) error {
	var problems []string
	if len(tasks) == 0 {
		problems = append(problems, "dataset contains no tasks")
	}

	seen := make(map[string]bool, len(tasks))
	for i, task := range tasks {
		if task.ID == "" {
			problems = append(problems, fmt.Sprintf("task %d: empty id", i+1))
			continue
		}
		if seen[task.ID] {
			problems = append(problems, fmt.Sprintf("duplicate task id %q", task.ID))
		}
		seen[task.ID] = true
		if strings.TrimSpace(task.Input) == "" {
			problems = append(problems, fmt.Sprintf("task %q: empty input", task.ID))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Path: path, Problems: problems}
	}
	return nil
}

// SelectRange narrows a task list using a 1-based range expression: "n"
// keeps the first n tasks, "a-b" keeps tasks a through b inclusive. An empty
// expression keeps everything.
func SelectRange(tasks []models.Task, expr string) ([]models.Task, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return tasks, nil
	}

	start, end := 1, 0
	if lo, hi, found := strings.Cut(expr, "-"); found {
		a, errA := strconv.Atoi(strings.TrimSpace(lo))
		b, errB := strconv.Atoi(strings.TrimSpace(hi))
		if errA != nil || errB != nil {
			return nil, fmt.Errorf("invalid range %q, want \"a-b\"", expr)
		}
		start, end = a, b
	} else {
		n, err := strconv.Atoi(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid range %q, want \"n\" or \"a-b\"", expr)
		}
		end = n
	}

	if start < 1 || end < start {
		return nil, fmt.Errorf("invalid range %q: start must be >= 1 and end >= start", expr)
	}
	if start > len(tasks) {
		return nil, fmt.Errorf("range %q starts past the end of the dataset (%d tasks)", expr, len(tasks))
	}
	if end > len(tasks) {
		end = len(tasks)
	}
	return tasks[start-1 : end], nil
}
