package util

import (
	"os"
	"strconv"

	ps "github.com/mitchellh/go-ps"
)

// IsRunningInOtherProcess returns true if the pid file at pathToFile
// contains the pid of a live process other than this one. The bucket
// reader uses this to avoid scanning the raw bucket from two
// processes at once.
func IsRunningInOtherProcess(pathToFile string) bool {
	pid := ReadPidFile(pathToFile)
	if pid == 0 || pid == os.Getpid() {
		return false
	}
	return ProcessIsRunning(pid)
}

// ReadPidFile returns the pid from the specified file, or zero if
// the file is missing or unparsable.
func ReadPidFile(pathToFile string) int {
	data, err := os.ReadFile(pathToFile)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(string(data))
	if err != nil {
		return 0
	}
	return pid
}

// WritePidFile writes this process' pid to the specified file.
func WritePidFile(pathToFile string) error {
	return os.WriteFile(pathToFile, []byte(strconv.Itoa(os.Getpid())), 0664)
}

// DeletePidFile removes the pid file, if it exists.
func DeletePidFile(pathToFile string) error {
	if !FileExists(pathToFile) {
		return nil
	}
	return os.Remove(pathToFile)
}

// ProcessIsRunning returns true if the process with pid is running.
// This uses go-ps internally because golang's os.FindProcess always
// returns a process on *nix, even when no process with that pid is
// running.
func ProcessIsRunning(pid int) bool {
	proc, _ := ps.FindProcess(pid)
	return proc != nil
}
