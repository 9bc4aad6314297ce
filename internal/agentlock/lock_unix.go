//go:build unix

package agentlock

import (
	"os"
	"syscall"
)

func (l *Lock) tryLock() error {
	return syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

func (l *Lock) unlock() {
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
}

func isProcessAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix; signal 0 probes existence.
	return process.Signal(syscall.Signal(0)) == nil
}
