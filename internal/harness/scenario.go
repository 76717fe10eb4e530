// Package harness runs declarative verification scenarios against scripted
// fixtures.
//
// A scenario file describes an operation's status script, canned
// observations, and the contract clauses to verify, all in YAML. The
// harness validates the file against an embedded CUE schema, compiles the
// predicate vocabulary into the predicate engine's types, and wires
// scripted fixtures so the whole engine can be exercised without any live
// service.
package harness

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Scenario is a parsed scenario file.
type Scenario struct {
	Name             string                          `yaml:"name"`
	Title            string                          `yaml:"title"`
	Policy           string                          `yaml:"policy"`
	OperationTimeout string                          `yaml:"operation_timeout"`
	PollInterval     string                          `yaml:"poll_interval"`
	Operation        OperationScript                 `yaml:"operation"`
	Observers        map[string][]ObservationFixture `yaml:"observers"`
	Clauses          []ClauseSpec                    `yaml:"clauses"`
}

// OperationScript is the sequence of statuses the fixture operation steps
// through, one per refresh.
type OperationScript struct {
	Initial string       `yaml:"initial"`
	Script  []StatusStep `yaml:"script"`
}

// StatusStep is one scripted status update.
type StatusStep struct {
	State  string `yaml:"state"`
	Detail any    `yaml:"detail"`
	Error  string `yaml:"error"`
}

// ObservationFixture is one canned observation snapshot.
type ObservationFixture struct {
	Objects []any                     `yaml:"objects"`
	Errors  []ObservationErrorFixture `yaml:"errors"`
}

// ObservationErrorFixture is one canned collection error.
type ObservationErrorFixture struct {
	Message string `yaml:"message"`
	Fatal   bool   `yaml:"fatal"`
}

// ClauseSpec is the declarative form of one contract clause.
type ClauseSpec struct {
	Title        string         `yaml:"title"`
	Observer     string         `yaml:"observer"`
	RetryWindow  string         `yaml:"retry_window"`
	PollInterval string         `yaml:"poll_interval"`
	Optional     bool           `yaml:"optional"`
	Match        string         `yaml:"match"`
	Predicate    *PredicateSpec `yaml:"predicate"`
}

// LoadFile reads, validates and parses a scenario file.
func LoadFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ScenarioError{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("reading scenario: %v", err),
		}
	}
	return Load(data)
}

// Load validates and parses scenario YAML.
//
// Validation runs in two passes: structural validation against the embedded
// CUE schema, then strict decoding (unknown fields rejected) into the Go
// types. Semantic checks (observer references, predicate compilation,
// durations) happen when the scenario is compiled into a plan.
func Load(data []byte) (*Scenario, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	scenario := &Scenario{}
	if err := dec.Decode(scenario); err != nil {
		return nil, &ScenarioError{
			Code:    ErrCodeParseFailed,
			Message: fmt.Sprintf("decoding scenario: %v", err),
		}
	}
	return scenario, nil
}

// validateSchema unifies the raw document with the #Scenario schema.
func validateSchema(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return &ScenarioError{
			Code:    ErrCodeParseFailed,
			Message: fmt.Sprintf("parsing scenario YAML: %v", err),
		}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#Scenario"))
	if err := schema.Err(); err != nil {
		return &ScenarioError{
			Code:    ErrCodeSchemaBroken,
			Message: fmt.Sprintf("compiling scenario schema: %v", err),
		}
	}

	unified := schema.Unify(ctx.Encode(raw))
	if err := unified.Validate(cue.Final()); err != nil {
		return &ScenarioError{
			Code:    ErrCodeSchemaViolation,
			Message: fmt.Sprintf("scenario does not match schema: %v", err),
		}
	}
	return nil
}

// parseDuration parses an optional duration field. Empty means zero.
func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, &ScenarioError{
			Code:    ErrCodeBadDuration,
			Message: fmt.Sprintf("%s: invalid duration %q", field, value),
		}
	}
	return d, nil
}
