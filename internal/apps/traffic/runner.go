// SPDX-License-Identifier: AGPL-3.0-or-later
// tgnet-e2e - Terragraph end-to-end control plane
// Copyright (C) 2026 Terragraph Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package traffic

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// ExecRunner is the production Runner: it forks iperf3 or ping as a real
// subprocess, bounded by ctx, and captures combined stdout/stderr.
type ExecRunner struct {
	// IperfPath and PingPath override the binary looked up on PATH, for
	// deployments that ship a vendored tool under a non-standard name.
	IperfPath string
	PingPath  string
}

// Run implements Runner.
func (e ExecRunner) Run(ctx context.Context, req Req) (string, error) {
	bin, args, err := e.buildCommand(req)
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("%s %s: %w", bin, req.Target, err)
	}
	return out.String(), nil
}

func (e ExecRunner) buildCommand(req Req) (bin string, args []string, err error) {
	switch req.Tool {
	case "iperf":
		bin = e.IperfPath
		if bin == "" {
			bin = "iperf3"
		}
		args = append([]string{"-c", req.Target}, req.Args...)
		if req.DurationSec > 0 {
			args = append(args, "-t", strconv.Itoa(req.DurationSec))
		}
	case "ping":
		bin = e.PingPath
		if bin == "" {
			bin = "ping"
		}
		count := req.DurationSec
		if count <= 0 {
			count = 4
		}
		args = append([]string{"-c", strconv.Itoa(count)}, req.Args...)
		args = append(args, req.Target)
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrUnsupportedTool, req.Tool)
	}
	return bin, args, nil
}
