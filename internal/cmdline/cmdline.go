// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package cmdline

import (
	"fmt"
	"slices"
	"strings"

	"github.com/kballard/go-shellquote"
)

// CommandLine is an executable and its arguments, it is never modified once created
type CommandLine struct {
	executable string
	args       []string
}

// New creates a command line from an executable and its arguments
func New(executable string, args ...string) *CommandLine {
	return &CommandLine{
		executable: executable,
		args:       slices.Clone(args),
	}
}

// FromTokens creates a command line where the first token is the executable
func FromTokens(tokens []string) *CommandLine {
	if len(tokens) == 0 {
		return New("")
	}

	return New(tokens[0], tokens[1:]...)
}

// Parse splits a command line string using shell word splitting rules
func Parse(line string) (*CommandLine, error) {
	words, err := shellquote.Split(line)
	if err != nil {
		return nil, err
	}

	return FromTokens(words), nil
}

// Executable is the program to run
func (c *CommandLine) Executable() string {
	return c.executable
}

// HasExecutable reports if a non blank executable is set
func (c *CommandLine) HasExecutable() bool {
	return strings.TrimSpace(c.executable) != ""
}

// Arguments returns a copy of the arguments
func (c *CommandLine) Arguments() []string {
	return slices.Clone(c.args)
}

// WithExecutable returns a copy of the command line using a different executable
func (c *CommandLine) WithExecutable(executable string) *CommandLine {
	return New(executable, c.args...)
}

// Tokens is the full command line, executable first
func (c *CommandLine) Tokens() []string {
	return append([]string{c.executable}, c.args...)
}

// ViaShell wraps the command line so it is interpreted by the platform shell
func (c *CommandLine) ViaShell() *CommandLine {
	shell, flag := shellCommand()
	return New(shell, flag, c.String())
}

// String is the command line quoted such that token boundaries are preserved
func (c *CommandLine) String() string {
	return quote(c.Tokens())
}

// Describe is a multi line description of the command used for diagnostics
func (c *CommandLine) Describe() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Executing %s", quote([]string{c.executable}))
	if len(c.args) == 0 {
		return b.String()
	}

	b.WriteString(" with arguments:")
	for _, arg := range c.args {
		fmt.Fprintf(&b, "\n%s", quote([]string{arg}))
	}

	return b.String()
}
