// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestModel(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Model")
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

var _ = Describe("ExecProperties", func() {
	Describe("Validate", func() {
		DescribeTable("validation tests",
			func(prop *ExecProperties, expected error) {
				err := prop.Validate()
				if expected == nil {
					Expect(err).ToNot(HaveOccurred())
				} else {
					Expect(err).To(MatchError(expected))
					Expect(err).To(MatchError(ErrConfiguration))
				}
			},

			Entry("executable only", &ExecProperties{Executable: "/bin/true"}, nil),
			Entry("command only", &ExecProperties{Command: "/bin/echo 'hello world'"}, nil),
			Entry("command with executable", &ExecProperties{Command: "/bin/true", Executable: "/bin/true"}, ErrCommandConflict),
			Entry("command with args", &ExecProperties{Command: "/bin/true", Args: []string{"x"}}, ErrCommandConflict),
			Entry("unterminated command", &ExecProperties{Command: "/bin/echo 'hello"}, ErrInvalidCommand),
			Entry("invalid timeout", &ExecProperties{Executable: "x", Timeout: "soon"}, ErrInvalidTimeout),
			Entry("zero timeout", &ExecProperties{Executable: "x", Timeout: "0"}, ErrInvalidTimeout),
			Entry("environment without equals", &ExecProperties{Executable: "x", Environment: []string{"FOO"}}, ErrInvalidEnvironment),
			Entry("environment without name", &ExecProperties{Executable: "x", Environment: []string{"=bar"}}, ErrInvalidEnvironment),
			Entry("empty environment value", &ExecProperties{Executable: "x", Environment: []string{"FOO="}}, nil),
			Entry("input and input string", &ExecProperties{Executable: "x", RedirectorProperties: RedirectorProperties{Input: "f", InputString: strPtr("s")}}, ErrInputConflict),
			Entry("input and nested input string", &ExecProperties{Executable: "x", RedirectorProperties: RedirectorProperties{Input: "f"}, Redirector: &RedirectorProperties{InputString: strPtr("s")}}, ErrInputConflict),
			Entry("invalid success expression", &ExecProperties{Executable: "x", SuccessWhen: "code +"}, ErrInvalidSuccessExpression),
			Entry("non boolean success expression", &ExecProperties{Executable: "x", SuccessWhen: "code + 1"}, ErrInvalidSuccessExpression),
			Entry("spawn alone", &ExecProperties{Executable: "x", Spawn: true}, nil),
			Entry("spawn with timeout", &ExecProperties{Executable: "x", Spawn: true, Timeout: "1s"}, ErrSpawnIncompatible),
			Entry("spawn with fail on error", &ExecProperties{Executable: "x", Spawn: true, FailOnError: true}, ErrSpawnIncompatible),
			Entry("spawn with redirector", &ExecProperties{Executable: "x", Spawn: true, Redirector: &RedirectorProperties{}}, ErrSpawnIncompatible),
		)

		It("Should not require an executable", func() {
			Expect((&ExecProperties{}).Validate()).To(Succeed())
		})

		It("Should parse the timeout on every call", func() {
			prop := &ExecProperties{Executable: "x", Timeout: "100"}
			Expect(prop.Validate()).To(Succeed())
			Expect(prop.ParsedTimeout).To(Equal(100 * time.Millisecond))

			prop.Timeout = "2s"
			Expect(prop.Validate()).To(Succeed())
			Expect(prop.ParsedTimeout).To(Equal(2 * time.Second))
		})

		It("Should parse the timeout", func() {
			prop := &ExecProperties{Executable: "x", Timeout: "1m"}
			Expect(prop.Validate()).To(Succeed())
			Expect(prop.ParsedTimeout).To(Equal(time.Minute))
		})

		It("Should list every spawn incompatible attribute", func() {
			f := false
			prop := &ExecProperties{Executable: "x", Spawn: true, Timeout: "1s", ResultProperty: "rc", FailIfExecutionFails: &f}
			err := prop.Validate()
			Expect(err).To(MatchError(ErrSpawnIncompatible))
			Expect(err.Error()).To(HaveSuffix("timeout, result_property, fail_if_execution_fails"))
		})
	})

	Describe("SpawnIncompatibilities", func() {
		It("Should only consider fail on error when true", func() {
			Expect((&ExecProperties{FailOnError: false}).SpawnIncompatibilities()).To(BeEmpty())
			Expect((&ExecProperties{FailOnError: true}).SpawnIncompatibilities()).To(Equal([]string{"fail_on_error"}))
		})

		It("Should consider fail if execution fails whenever configured", func() {
			t := true
			Expect((&ExecProperties{FailIfExecutionFails: &t}).SpawnIncompatibilities()).To(Equal([]string{"fail_if_execution_fails"}))
		})

		It("Should only consider append and logging when true", func() {
			p := &ExecProperties{RedirectorProperties: RedirectorProperties{Append: boolPtr(false), LogOutput: boolPtr(false), LogError: boolPtr(false)}}
			Expect(p.SpawnIncompatibilities()).To(BeEmpty())

			p = &ExecProperties{RedirectorProperties: RedirectorProperties{Append: boolPtr(true), LogOutput: boolPtr(true), LogError: boolPtr(true)}}
			Expect(p.SpawnIncompatibilities()).To(Equal([]string{"append", "log_output", "log_error"}))
		})

		It("Should consider an empty input string configured", func() {
			Expect((&ExecProperties{RedirectorProperties: RedirectorProperties{InputString: strPtr("")}}).SpawnIncompatibilities()).To(Equal([]string{"input_string"}))
		})
	})

	DescribeTable("ParseTimeout",
		func(input string, expected time.Duration, fails bool) {
			d, err := ParseTimeout(input)
			if fails {
				Expect(err).To(MatchError(ErrInvalidTimeout))
				return
			}

			Expect(err).ToNot(HaveOccurred())
			Expect(d).To(Equal(expected))
		},
		Entry("empty", "", time.Duration(0), false),
		Entry("milliseconds", "1500", 1500*time.Millisecond, false),
		Entry("padded milliseconds", " 10 ", 10*time.Millisecond, false),
		Entry("seconds", "30s", 30*time.Second, false),
		Entry("hours", "1h", time.Hour, false),
		Entry("days", "1d", 24*time.Hour, false),
		Entry("negative", "-5", time.Duration(0), true),
		Entry("garbage", "later", time.Duration(0), true),
		Entry("largest milliseconds", "9223372036854", 9223372036854*time.Millisecond, false),
		Entry("milliseconds that wrap negative", "18446744073709", time.Duration(0), true),
		Entry("milliseconds that wrap positive", "9999999999999999", time.Duration(0), true),
		Entry("milliseconds beyond int64", "99999999999999999999", time.Duration(0), true),
	)

	It("Should report overflowing timeouts as too large", func() {
		_, err := ParseTimeout("18446744073709")
		Expect(err).To(MatchError(ContainSubstring("is too large")))

		_, err = ParseTimeout("9999999999999999")
		Expect(err).To(MatchError(ContainSubstring("is too large")))
	})

	Describe("Tokens", func() {
		It("Should combine the executable and arguments", func() {
			t, err := (&ExecProperties{Executable: "ls", Args: []string{"-l", "a b"}}).Tokens()
			Expect(err).ToNot(HaveOccurred())
			Expect(t).To(Equal([]string{"ls", "-l", "a b"}))
		})

		It("Should split commands using shell rules", func() {
			t, err := (&ExecProperties{Command: `sh -c "echo 'hi there'"`}).Tokens()
			Expect(err).ToNot(HaveOccurred())
			Expect(t).To(Equal([]string{"sh", "-c", "echo 'hi there'"}))
		})

		It("Should return nothing without an executable", func() {
			t, err := (&ExecProperties{Args: []string{"x"}}).Tokens()
			Expect(err).ToNot(HaveOccurred())
			Expect(t).To(BeEmpty())
		})
	})

	Describe("IsSuccess", func() {
		It("Should default to zero", func() {
			p := &ExecProperties{}
			Expect(p.IsSuccess(0)).To(BeTrue())
			Expect(p.IsSuccess(1)).To(BeFalse())
		})

		It("Should use configured codes", func() {
			p := &ExecProperties{Returns: []int{1, 2}}
			Expect(p.IsSuccess(0)).To(BeFalse())
			Expect(p.IsSuccess(2)).To(BeTrue())
		})

		It("Should evaluate expressions without prior validation", func() {
			p := &ExecProperties{SuccessWhen: "code == 0 || code == 3", Returns: []int{7}}
			Expect(p.IsSuccess(3)).To(BeTrue())
			Expect(p.IsSuccess(7)).To(BeFalse())
		})

		It("Should fail for invalid expressions", func() {
			_, err := (&ExecProperties{SuccessWhen: "code +"}).IsSuccess(0)
			Expect(err).To(MatchError(ErrInvalidSuccessExpression))
		})
	})

	Describe("Redirectors", func() {
		It("Should allow only one nested redirector", func() {
			p := &ExecProperties{}
			Expect(p.AddRedirector(&RedirectorProperties{})).To(Succeed())
			Expect(p.AddRedirector(&RedirectorProperties{})).To(MatchError(ErrMultipleRedirectors))
		})

		It("Should enforce input exclusivity in setters", func() {
			r := &RedirectorProperties{}
			Expect(r.SetInput("file")).To(Succeed())
			Expect(r.SetInputString("x")).To(MatchError(ErrInputConflict))

			r = &RedirectorProperties{}
			Expect(r.SetInputString("")).To(Succeed())
			Expect(r.SetInput("file")).To(MatchError(ErrInputConflict))
		})

		It("Should overlay the nested redirector", func() {
			p := &ExecProperties{
				RedirectorProperties: RedirectorProperties{Output: "out.txt", Error: "err.txt", OutputProperty: "o"},
			}
			Expect(p.AddRedirector(&RedirectorProperties{Output: "other.txt", Append: boolPtr(true), LogError: boolPtr(true)})).To(Succeed())

			eff := p.EffectiveRedirector()
			Expect(eff.Output).To(Equal("other.txt"))
			Expect(eff.Error).To(Equal("err.txt"))
			Expect(eff.OutputProperty).To(Equal("o"))
			Expect(eff.ShouldAppend()).To(BeTrue())
			Expect(eff.ShouldLogError()).To(BeTrue())
			Expect(p.Output).To(Equal("out.txt"))
		})

		It("Should let the nested redirector turn off attribute level flags", func() {
			p := &ExecProperties{
				RedirectorProperties: RedirectorProperties{Output: "out.txt", Append: boolPtr(true), LogOutput: boolPtr(true), LogError: boolPtr(true)},
			}
			Expect(p.AddRedirector(&RedirectorProperties{Append: boolPtr(false), LogOutput: boolPtr(false)})).To(Succeed())

			eff := p.EffectiveRedirector()
			Expect(eff.ShouldAppend()).To(BeFalse())
			Expect(eff.ShouldLogOutput()).To(BeFalse())
			Expect(eff.ShouldLogError()).To(BeTrue())
			Expect(p.ShouldAppend()).To(BeTrue())
		})
	})

	Describe("ShouldFailIfExecutionFails", func() {
		It("Should default to true", func() {
			Expect((&ExecProperties{}).ShouldFailIfExecutionFails()).To(BeTrue())

			f := false
			Expect((&ExecProperties{FailIfExecutionFails: &f}).ShouldFailIfExecutionFails()).To(BeFalse())
		})
	})

	Describe("Location", func() {
		It("Should prefer the name", func() {
			Expect((&ExecProperties{Name: "build", Executable: "make"}).Location()).To(Equal("exec#build"))
			Expect((&ExecProperties{Executable: "make"}).Location()).To(Equal("exec#make"))
			Expect((&ExecProperties{}).Location()).To(Equal("exec"))
		})
	})

	Describe("NewExecPropertiesFromYaml", func() {
		It("Should parse attributes and the nested redirector", func() {
			p, err := NewExecPropertiesFromYaml([]byte(`
name: build
executable: make
args: [all]
timeout: 500
output: build.log
input_string: ""
fail_if_execution_fails: false
redirector:
  error_property: errors
  log_output: true
`))
			Expect(err).ToNot(HaveOccurred())
			Expect(p.Name).To(Equal("build"))
			Expect(p.Args).To(Equal([]string{"all"}))
			Expect(p.Timeout).To(Equal("500"))
			Expect(p.Output).To(Equal("build.log"))
			Expect(p.InputString).To(HaveValue(Equal("")))
			Expect(p.ShouldFailIfExecutionFails()).To(BeFalse())
			Expect(p.Redirector.ErrorProperty).To(Equal("errors"))
			Expect(p.Redirector.ShouldLogOutput()).To(BeTrue())
		})

		It("Should fail for invalid YAML", func() {
			_, err := NewExecPropertiesFromYaml([]byte("args: [unterminated"))
			Expect(err).To(HaveOccurred())
		})

		It("Should produce YAML that parses back to the same request", func() {
			p := &ExecProperties{Name: "x", Command: "ls -l", RedirectorProperties: RedirectorProperties{Output: "o"}}
			y, err := p.ToYamlManifest()
			Expect(err).ToNot(HaveOccurred())

			parsed, err := NewExecPropertiesFromYaml(y)
			Expect(err).ToNot(HaveOccurred())
			Expect(parsed.Command).To(Equal("ls -l"))
			Expect(parsed.Output).To(Equal("o"))
		})
	})

	Describe("BuildError", func() {
		It("Should render the location and unwrap to the cause", func() {
			err := NewBuildError("exec#x", ErrNonZeroExit, "exec returned: %d", 2)
			Expect(err.Error()).To(Equal("exec#x: exec returned: 2"))
			Expect(errors.Is(err, ErrNonZeroExit)).To(BeTrue())

			err = NewBuildError("", ErrTimeoutKilled, "Timeout")
			Expect(err.Error()).To(Equal("Timeout"))
		})
	})

	Describe("LaunchResult", func() {
		DescribeTable("Outcome",
			func(r *LaunchResult, o Outcome) { Expect(r.Outcome()).To(Equal(o)) },
			Entry("exited", &LaunchResult{ExitCode: 1}, OutcomeExited),
			Entry("killed", &LaunchResult{Killed: true}, OutcomeKilled),
			Entry("failed", &LaunchResult{FailedToStart: true}, OutcomeFailedToStart),
			Entry("spawned", &LaunchResult{Spawned: true}, OutcomeSpawned),
		)
	})
})
