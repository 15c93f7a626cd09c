// Copyright (c) 2026, R.I. Pienaar and the Choria Project contributors
//
// SPDX-License-Identifier: Apache-2.0

package launcher

import (
	"context"
	"os/exec"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/choria-io/execstep/model"
)

const treeScanTimeout = 5 * time.Second

// osProcess is the capability handle to a started process, the launcher owns
// Wait while the watchdog only ever calls Kill
type osProcess struct {
	cmd  *exec.Cmd
	tree bool
	log  model.Logger
}

var _ model.ProcessHandle = (*osProcess)(nil)

func (p *osProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *osProcess) Wait() error {
	return p.cmd.Wait()
}

// Kill terminates the process, with tree set all descendants are found before
// the parent is killed and then killed as well
func (p *osProcess) Kill() error {
	if !p.tree {
		return p.cmd.Process.Kill()
	}

	ctx, cancel := context.WithTimeout(context.Background(), treeScanTimeout)
	defer cancel()

	children := descendants(ctx, int32(p.Pid()))

	err := p.cmd.Process.Kill()

	for _, child := range children {
		kerr := child.KillWithContext(ctx)
		if kerr != nil {
			p.log.Debug("Could not kill child process", "pid", child.Pid, "error", kerr)
		}
	}

	return err
}

func descendants(ctx context.Context, pid int32) []*process.Process {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil
	}

	children, err := proc.ChildrenWithContext(ctx)
	if err != nil {
		return nil
	}

	var res []*process.Process
	for _, child := range children {
		res = append(res, child)
		res = append(res, descendants(ctx, child.Pid)...)
	}

	return res
}
