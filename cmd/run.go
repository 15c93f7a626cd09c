// Copyright (c) 2025-2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/choria-io/execstep/model"
	"github.com/choria-io/execstep/properties"
	"github.com/choria-io/fisk"
)

type runCommand struct {
	props           model.ExecProperties
	redirector      model.RedirectorProperties
	inputString     string
	inputStringSet  bool
	appendOutput    bool
	logOutput       bool
	logError        bool
	failIfExecFails bool
	failIfExecSet   bool
	baseDir         string
	jsonFormat      bool
	yamlFormat      bool
	query           string
	showProperties  bool
	exitCode        bool
}

func registerRunCommand(app *fisk.Application) {
	cmd := &runCommand{}

	run := app.Command("run", "Runs a single process").Action(cmd.runAction)
	run.Arg("executable", "The executable to run").StringVar(&cmd.props.Executable)
	run.Arg("args", "Arguments to pass to the executable").StringsVar(&cmd.props.Args)
	run.Flag("name", "Name of the step used in logs and errors").StringVar(&cmd.props.Name)
	run.Flag("command", "A complete command line, split using shell rules").PlaceHolder("COMMAND").StringVar(&cmd.props.Command)
	run.Flag("base-dir", "Directory relative paths are resolved against").PlaceHolder("DIR").ExistingDirVar(&cmd.baseDir)
	run.Flag("dir", "Working directory of the process").PlaceHolder("DIR").StringVar(&cmd.props.Dir)
	run.Flag("os", "Only run on these operating systems").PlaceHolder("LIST").StringVar(&cmd.props.OS)
	run.Flag("env", "Sets an environment variable for the process").Short('E').PlaceHolder("K=V").StringsVar(&cmd.props.Environment)
	run.Flag("new-env", "Do not inherit the current environment").UnNegatableBoolVar(&cmd.props.NewEnvironment)
	run.Flag("resolve", "Resolve the executable against the base and working directories").UnNegatableBoolVar(&cmd.props.ResolveExecutable)
	run.Flag("search-path", "Also search PATH when resolving the executable").UnNegatableBoolVar(&cmd.props.SearchPath)
	run.Flag("shell", "Run the command through the system shell").UnNegatableBoolVar(&cmd.props.Shell)
	run.Flag("timeout", "Kill the process after this long, bare numbers are milliseconds").PlaceHolder("DURATION").StringVar(&cmd.props.Timeout)
	run.Flag("kill-tree", "Also kill child processes on timeout").UnNegatableBoolVar(&cmd.props.KillTree)
	run.Flag("spawn", "Start the process in the background and do not wait for it").UnNegatableBoolVar(&cmd.props.Spawn)
	run.Flag("fail-on-error", "Fail when the process returns a failure exit code").UnNegatableBoolVar(&cmd.props.FailOnError)
	run.Flag("fail-if-execution-fails", "Fail when the process cannot be started").Default("true").Action(cmd.setFailIfExec).BoolVar(&cmd.failIfExecFails)
	run.Flag("result-property", "Property to store the exit code in").PlaceHolder("NAME").StringVar(&cmd.props.ResultProperty)
	run.Flag("returns", "Exit codes considered successful").PlaceHolder("CODE").IntsVar(&cmd.props.Returns)
	run.Flag("success-when", "Expression deciding success from code").PlaceHolder("EXPR").StringVar(&cmd.props.SuccessWhen)
	run.Flag("input", "File to read standard input from").PlaceHolder("FILE").StringVar(&cmd.redirector.Input)
	run.Flag("input-string", "String to use as standard input").PlaceHolder("STRING").Action(cmd.setInputString).StringVar(&cmd.inputString)
	run.Flag("output", "File to write standard output to").PlaceHolder("FILE").StringVar(&cmd.redirector.Output)
	run.Flag("error", "File to write standard error to").PlaceHolder("FILE").StringVar(&cmd.redirector.Error)
	run.Flag("append", "Append to output and error files").UnNegatableBoolVar(&cmd.appendOutput)
	run.Flag("output-property", "Property to store standard output in").PlaceHolder("NAME").StringVar(&cmd.redirector.OutputProperty)
	run.Flag("error-property", "Property to store standard error in").PlaceHolder("NAME").StringVar(&cmd.redirector.ErrorProperty)
	run.Flag("log-output", "Log standard output lines").UnNegatableBoolVar(&cmd.logOutput)
	run.Flag("log-error", "Log standard error lines").UnNegatableBoolVar(&cmd.logError)
	run.Flag("output-encoding", "Character set of captured output").PlaceHolder("CHARSET").StringVar(&cmd.redirector.OutputEncoding)
	run.Flag("json", "Show the launch result as JSON").UnNegatableBoolVar(&cmd.jsonFormat)
	run.Flag("yaml", "Show the launch result as YAML").UnNegatableBoolVar(&cmd.yamlFormat)
	run.Flag("query", "Performs a gjson query on the launch result").StringVar(&cmd.query)
	run.Flag("properties", "Show exported properties after the run").UnNegatableBoolVar(&cmd.showProperties)
	run.Flag("exit-code", "Exit with the exit code of the process").UnNegatableBoolVar(&cmd.exitCode)
}

func (c *runCommand) setFailIfExec(_ *fisk.ParseContext) error {
	c.failIfExecSet = true
	return nil
}

func (c *runCommand) setInputString(_ *fisk.ParseContext) error {
	c.inputStringSet = true
	return nil
}

func (c *runCommand) runAction(_ *fisk.ParseContext) error {
	if c.failIfExecSet {
		c.props.FailIfExecutionFails = &c.failIfExecFails
	}

	if c.inputStringSet {
		err := c.redirector.SetInputString(c.inputString)
		if err != nil {
			return err
		}
	}

	if c.appendOutput {
		c.redirector.Append = &c.appendOutput
	}
	if c.logOutput {
		c.redirector.LogOutput = &c.logOutput
	}
	if c.logError {
		c.redirector.LogError = &c.logError
	}

	c.props.RedirectorProperties = c.redirector

	mgr, err := newManager(c.baseDir)
	if err != nil {
		return err
	}

	res, err := mgr.Execute(ctx, &c.props)
	if err != nil {
		return err
	}

	if res == nil {
		mgr.UserLogger().Info("Step does not apply to this operating system", "os", c.props.OS)
		return nil
	}

	switch {
	case c.jsonFormat || c.yamlFormat || c.query != "":
		err = renderData(res, c.query, c.yamlFormat)
	default:
		c.showSummary(res)
	}
	if err != nil {
		return err
	}

	if c.showProperties {
		if store, ok := mgr.Properties().(*properties.MemoryStore); ok {
			fmt.Println()
			err = store.WriteYAML(os.Stdout)
			if err != nil {
				return err
			}
		}
	}

	if c.exitCode && !res.Spawned {
		os.Exit(res.ExitCode & 0xff)
	}

	return nil
}

func (c *runCommand) showSummary(res *model.LaunchResult) {
	fmt.Println()
	fmt.Printf("      Outcome: %s\n", res.Outcome())
	switch {
	case res.Spawned:
		fmt.Printf("          Pid: %d\n", res.Pid)
	case res.FailedToStart:
		fmt.Printf("        Error: %s\n", res.StartError)
	default:
		fmt.Printf("    Exit Code: %d\n", res.ExitCode)
	}
	if res.KillReason != "" {
		fmt.Printf("  Kill Reason: %s\n", res.KillReason)
	}
	fmt.Printf("     Run Time: %v\n", res.Duration.Round(time.Millisecond))
}
