// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"fmt"
	"math"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/choria-io/fisk"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/goccy/go-yaml"
	"github.com/kballard/go-shellquote"
)

const (
	// ExecTypeName is the type name for exec steps
	ExecTypeName = "exec"
)

// RedirectorProperties describes where the standard streams of a process are connected
type RedirectorProperties struct {
	Input          string  `json:"input,omitempty" yaml:"input,omitempty"`
	InputString    *string `json:"input_string,omitempty" yaml:"input_string,omitempty"`
	Output         string  `json:"output,omitempty" yaml:"output,omitempty"`
	Error          string  `json:"error,omitempty" yaml:"error,omitempty"`
	Append         *bool   `json:"append,omitempty" yaml:"append,omitempty"`
	OutputProperty string  `json:"output_property,omitempty" yaml:"output_property,omitempty"`
	ErrorProperty  string  `json:"error_property,omitempty" yaml:"error_property,omitempty"`
	LogOutput      *bool   `json:"log_output,omitempty" yaml:"log_output,omitempty"`
	LogError       *bool   `json:"log_error,omitempty" yaml:"log_error,omitempty"`
	OutputEncoding string  `json:"output_encoding,omitempty" yaml:"output_encoding,omitempty"`
}

// ShouldAppend reports if output and error files are appended to rather than truncated
func (r *RedirectorProperties) ShouldAppend() bool {
	return r.Append != nil && *r.Append
}

// ShouldLogOutput reports if stdout lines are logged
func (r *RedirectorProperties) ShouldLogOutput() bool {
	return r.LogOutput != nil && *r.LogOutput
}

// ShouldLogError reports if stderr lines are logged
func (r *RedirectorProperties) ShouldLogError() bool {
	return r.LogError != nil && *r.LogError
}

// SetInput sets the file the process reads stdin from
func (r *RedirectorProperties) SetInput(path string) error {
	if r.InputString != nil {
		return ErrInputConflict
	}

	r.Input = path

	return nil
}

// SetInputString sets a literal string the process reads on stdin
func (r *RedirectorProperties) SetInputString(input string) error {
	if r.Input != "" {
		return ErrInputConflict
	}

	r.InputString = &input

	return nil
}

// Overlay returns a copy of r with every field set in o taking precedence
func (r RedirectorProperties) Overlay(o *RedirectorProperties) RedirectorProperties {
	if o == nil {
		return r
	}

	if o.Input != "" {
		r.Input = o.Input
	}
	if o.InputString != nil {
		r.InputString = o.InputString
	}
	if o.Output != "" {
		r.Output = o.Output
	}
	if o.Error != "" {
		r.Error = o.Error
	}
	if o.OutputProperty != "" {
		r.OutputProperty = o.OutputProperty
	}
	if o.ErrorProperty != "" {
		r.ErrorProperty = o.ErrorProperty
	}
	if o.OutputEncoding != "" {
		r.OutputEncoding = o.OutputEncoding
	}

	if o.Append != nil {
		r.Append = o.Append
	}
	if o.LogOutput != nil {
		r.LogOutput = o.LogOutput
	}
	if o.LogError != nil {
		r.LogError = o.LogError
	}

	return r
}

func (r *RedirectorProperties) validate() error {
	if r.Input != "" && r.InputString != nil {
		return ErrInputConflict
	}

	return nil
}

// ExecProperties is a fully populated request to launch a process
type ExecProperties struct {
	Name                 string                `json:"name,omitempty" yaml:"name,omitempty"`
	Executable           string                `json:"executable,omitempty" yaml:"executable,omitempty"`
	Args                 []string              `json:"args,omitempty" yaml:"args,omitempty"`
	Command              string                `json:"command,omitempty" yaml:"command,omitempty"`
	Dir                  string                `json:"dir,omitempty" yaml:"dir,omitempty"`
	OS                   string                `json:"os,omitempty" yaml:"os,omitempty"`
	Environment          []string              `json:"environment,omitempty" yaml:"environment,omitempty"`
	NewEnvironment       bool                  `json:"new_environment,omitempty" yaml:"new_environment,omitempty"`
	ResolveExecutable    bool                  `json:"resolve_executable,omitempty" yaml:"resolve_executable,omitempty"`
	SearchPath           bool                  `json:"search_path,omitempty" yaml:"search_path,omitempty"`
	Shell                bool                  `json:"shell,omitempty" yaml:"shell,omitempty"`
	Timeout              string                `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	Spawn                bool                  `json:"spawn,omitempty" yaml:"spawn,omitempty"`
	FailOnError          bool                  `json:"fail_on_error,omitempty" yaml:"fail_on_error,omitempty"`
	FailIfExecutionFails *bool                 `json:"fail_if_execution_fails,omitempty" yaml:"fail_if_execution_fails,omitempty"`
	ResultProperty       string                `json:"result_property,omitempty" yaml:"result_property,omitempty"`
	Returns              []int                 `json:"returns,omitempty" yaml:"returns,omitempty"`
	SuccessWhen          string                `json:"success_when,omitempty" yaml:"success_when,omitempty"`
	KillTree             bool                  `json:"kill_tree,omitempty" yaml:"kill_tree,omitempty"`
	Redirector           *RedirectorProperties `json:"redirector,omitempty" yaml:"redirector,omitempty"`

	RedirectorProperties `yaml:",inline"`

	ParsedTimeout time.Duration `json:"-" yaml:"-"`

	success *vm.Program
}

// AddRedirector attaches a nested redirector, only one may be attached
func (p *ExecProperties) AddRedirector(r *RedirectorProperties) error {
	if p.Redirector != nil {
		return ErrMultipleRedirectors
	}

	p.Redirector = r

	return nil
}

// EffectiveRedirector is the attribute level redirection with the nested redirector applied on top
func (p *ExecProperties) EffectiveRedirector() RedirectorProperties {
	return p.RedirectorProperties.Overlay(p.Redirector)
}

// ShouldFailIfExecutionFails reports if a process that cannot be started is fatal, defaults to true
func (p *ExecProperties) ShouldFailIfExecutionFails() bool {
	if p.FailIfExecutionFails == nil {
		return true
	}

	return *p.FailIfExecutionFails
}

// Location is a description of the step used when reporting errors
func (p *ExecProperties) Location() string {
	switch {
	case p.Name != "":
		return fmt.Sprintf("%s#%s", ExecTypeName, p.Name)
	case p.Executable != "":
		return fmt.Sprintf("%s#%s", ExecTypeName, p.Executable)
	default:
		return ExecTypeName
	}
}

// Tokens is the executable followed by its arguments
func (p *ExecProperties) Tokens() ([]string, error) {
	if p.Command == "" {
		if p.Executable == "" {
			return nil, nil
		}

		return append([]string{p.Executable}, p.Args...), nil
	}

	words, err := shellquote.Split(p.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	return words, nil
}

// SpawnIncompatibilities lists the configured attributes that cannot be combined with spawn
func (p *ExecProperties) SpawnIncompatibilities() []string {
	var found []string

	add := func(set bool, name string) {
		if set {
			found = append(found, name)
		}
	}

	add(p.Timeout != "", "timeout")
	add(p.Input != "", "input")
	add(p.InputString != nil, "input_string")
	add(p.Output != "", "output")
	add(p.Error != "", "error")
	add(p.ShouldAppend(), "append")
	add(p.OutputProperty != "", "output_property")
	add(p.ErrorProperty != "", "error_property")
	add(p.ShouldLogOutput(), "log_output")
	add(p.ShouldLogError(), "log_error")
	add(p.OutputEncoding != "", "output_encoding")
	add(p.ResultProperty != "", "result_property")
	add(p.FailOnError, "fail_on_error")
	add(p.FailIfExecutionFails != nil, "fail_if_execution_fails")
	add(p.Redirector != nil, "redirector")

	return found
}

// IsSuccess determines if an exit code is considered successful, by default only 0 is successful
func (p *ExecProperties) IsSuccess(code int) (bool, error) {
	if p.SuccessWhen == "" {
		returns := []int{0}
		if len(p.Returns) > 0 {
			returns = p.Returns
		}

		return slices.Contains(returns, code), nil
	}

	if p.success == nil {
		err := p.compileSuccess()
		if err != nil {
			return false, err
		}
	}

	res, err := expr.Run(p.success, successEnv(code))
	if err != nil {
		return false, err
	}

	ok, _ := res.(bool)

	return ok, nil
}

func successEnv(code int) map[string]any {
	return map[string]any{
		"code": code,
		"os":   runtime.GOOS,
	}
}

func (p *ExecProperties) compileSuccess() error {
	prog, err := expr.Compile(p.SuccessWhen, expr.Env(successEnv(0)), expr.AsBool())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSuccessExpression, err)
	}

	p.success = prog

	return nil
}

// Validate checks the request for configuration errors that do not need the filesystem
func (p *ExecProperties) Validate() error {
	if p.Command != "" && (p.Executable != "" || len(p.Args) > 0) {
		return ErrCommandConflict
	}

	_, err := p.Tokens()
	if err != nil {
		return err
	}

	p.ParsedTimeout, err = ParseTimeout(p.Timeout)
	if err != nil {
		return err
	}

	for _, env := range p.Environment {
		name, _, ok := strings.Cut(env, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: %q", ErrInvalidEnvironment, env)
		}
	}

	err = p.RedirectorProperties.validate()
	if err != nil {
		return err
	}

	if p.Redirector != nil {
		err = p.Redirector.validate()
		if err != nil {
			return err
		}
	}

	effective := p.EffectiveRedirector()
	err = effective.validate()
	if err != nil {
		return err
	}

	if p.SuccessWhen != "" {
		err = p.compileSuccess()
		if err != nil {
			return err
		}
	}

	if p.Spawn {
		incompatible := p.SpawnIncompatibilities()
		if len(incompatible) > 0 {
			return fmt.Errorf("%w: %s", ErrSpawnIncompatible, strings.Join(incompatible, ", "))
		}
	}

	return nil
}

// ParseTimeout parses a timeout, bare integers are milliseconds while other values are durations like 10s or 1h
func ParseTimeout(timeout string) (time.Duration, error) {
	timeout = strings.TrimSpace(timeout)
	if timeout == "" {
		return 0, nil
	}

	var (
		d   time.Duration
		err error
	)

	ms, convErr := strconv.ParseInt(timeout, 10, 64)
	if convErr == nil {
		if ms > math.MaxInt64/int64(time.Millisecond) {
			return 0, fmt.Errorf("%w: %q is too large", ErrInvalidTimeout, timeout)
		}

		d = time.Duration(ms) * time.Millisecond
	} else {
		d, err = fisk.ParseDuration(timeout)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidTimeout, err)
		}
	}

	if d <= 0 {
		return 0, fmt.Errorf("%w: %q must be positive", ErrInvalidTimeout, timeout)
	}

	return d, nil
}

// ToYamlManifest returns the exec properties as a yaml document
func (p *ExecProperties) ToYamlManifest() (yaml.RawMessage, error) {
	return yaml.Marshal(p)
}

// NewExecPropertiesFromYaml creates a new exec properties object from a yaml document, does not validate
func NewExecPropertiesFromYaml(raw yaml.RawMessage) (*ExecProperties, error) {
	prop := &ExecProperties{}
	err := yaml.Unmarshal(raw, prop)
	if err != nil {
		return nil, err
	}

	return prop, nil
}
