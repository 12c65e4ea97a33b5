//go:build !unix

package process

import "os/exec"

func configureKill(_ *exec.Cmd) {}
