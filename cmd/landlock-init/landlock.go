//go:build linux

package main

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Filesystem access rights, include/uapi/linux/landlock.h.
const (
	accessExecute    uint64 = 1 << 0
	accessWriteFile  uint64 = 1 << 1
	accessReadFile   uint64 = 1 << 2
	accessReadDir    uint64 = 1 << 3
	accessRemoveDir  uint64 = 1 << 4
	accessRemoveFile uint64 = 1 << 5
	accessMakeChar   uint64 = 1 << 6
	accessMakeDir    uint64 = 1 << 7
	accessMakeReg    uint64 = 1 << 8
	accessMakeSock   uint64 = 1 << 9
	accessMakeFifo   uint64 = 1 << 10
	accessMakeBlock  uint64 = 1 << 11
	accessMakeSym    uint64 = 1 << 12
	accessRefer      uint64 = 1 << 13 // ABI 2
	accessTruncate   uint64 = 1 << 14 // ABI 3

	accessRead = accessExecute | accessReadFile | accessReadDir
	accessV1   = accessExecute | accessWriteFile | accessReadFile | accessReadDir |
		accessRemoveDir | accessRemoveFile | accessMakeChar | accessMakeDir |
		accessMakeReg | accessMakeSock | accessMakeFifo | accessMakeBlock | accessMakeSym

	// Rules beyond this ABI are never requested.
	maxABI = 3

	ruleTypePathBeneath = 1
)

type rulesetAttr struct {
	handledAccessFS uint64
}

// pathBeneathAttr mirrors the packed kernel struct; the kernel reads only
// its first 12 bytes.
type pathBeneathAttr struct {
	allowedAccess uint64
	parentFd      int32
}

func abiVersion() int {
	v, _, errno := unix.Syscall(unix.SYS_LANDLOCK_CREATE_RULESET, 0, 0, unix.LANDLOCK_CREATE_RULESET_VERSION)
	if errno != 0 {
		return 0
	}
	return int(v)
}

func handledAccess(abi int) uint64 {
	access := accessV1
	if abi >= 2 {
		access |= accessRefer
	}
	if abi >= 3 {
		access |= accessTruncate
	}
	return access
}

func unsupported(errno unix.Errno) bool {
	return errno == unix.ENOSYS || errno == unix.EOPNOTSUPP
}

// restrictSelf confines the current thread to readDirs (read/execute) and
// writeDirs (everything). Without kernel support it returns nil and the
// command runs unrestricted. Paths that cannot be opened are skipped.
func restrictSelf(readDirs, writeDirs []string) error {
	abi := abiVersion()
	if abi <= 0 {
		return nil
	}
	if abi > maxABI {
		abi = maxABI
	}
	handled := handledAccess(abi)

	attr := rulesetAttr{handledAccessFS: handled}
	fd, _, errno := unix.Syscall(unix.SYS_LANDLOCK_CREATE_RULESET,
		uintptr(unsafe.Pointer(&attr)), unsafe.Sizeof(attr), 0)
	if errno != 0 {
		if unsupported(errno) {
			return nil
		}
		return fmt.Errorf("landlock create ruleset: %w", errno)
	}
	rulesetFd := int(fd)
	defer unix.Close(rulesetFd)

	for _, dir := range readDirs {
		addPathRule(rulesetFd, dir, accessRead&handled)
	}
	for _, dir := range writeDirs {
		addPathRule(rulesetFd, dir, handled)
	}

	if _, _, errno := unix.Syscall(unix.SYS_LANDLOCK_RESTRICT_SELF, uintptr(rulesetFd), 0, 0); errno != 0 {
		if unsupported(errno) {
			return nil
		}
		return fmt.Errorf("landlock restrict self: %w", errno)
	}
	return nil
}

func addPathRule(rulesetFd int, path string, access uint64) {
	pathFd, err := unix.Open(path, unix.O_PATH|unix.O_CLOEXEC, 0)
	if err != nil {
		return
	}
	defer unix.Close(pathFd)

	rule := pathBeneathAttr{allowedAccess: access, parentFd: int32(pathFd)}
	// Failures (for example directory rights on a regular file) leave the
	// path inaccessible rather than aborting.
	_, _, _ = unix.Syscall6(unix.SYS_LANDLOCK_ADD_RULE, uintptr(rulesetFd), ruleTypePathBeneath,
		uintptr(unsafe.Pointer(&rule)), 0, 0, 0)
}
