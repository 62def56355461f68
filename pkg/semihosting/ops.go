package semihosting

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/runZeroInc/armhost/pkg/hostinfo"
	"github.com/runZeroInc/armhost/pkg/target"
)

// joinBaseDir prefixes name with BaseDir unless name is already absolute
// or BaseDir is unset.
func (s *State) joinBaseDir(name string) string {
	if s.BaseDir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.BaseDir, name)
}

func (s *State) readString(addr uint64, length int) (string, error) {
	buf := make([]byte, length)
	if err := s.target.ReadMemory(addr, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (s *State) readNulString(addr uint64) (string, error) {
	var out bytes.Buffer
	buf := make([]byte, 1)
	for {
		if err := s.target.ReadMemory(addr, buf); err != nil {
			return "", err
		}
		if buf[0] == 0 {
			break
		}
		out.WriteByte(buf[0])
		addr++
	}
	return out.String(), nil
}

func (s *State) readFields(n int) ([]uint64, error) {
	return s.codec.ReadFields(s.target, s.Param, n)
}

// ---- CLOCK ----

func (s *State) opClock() error {
	s.Result = int64(time.Since(s.SetupTime).Milliseconds() / 10)
	return nil
}

// ---- CLOSE ----

func (s *State) opClose() error {
	f, err := s.readFields(1)
	if err != nil {
		return err
	}
	fd := int(f[0])

	if fd == 0 || fd == 1 || fd == 2 {
		s.Result = 0
		return nil
	}

	if s.IsFileio {
		s.publishFileio(FileioRequest{Identifier: "close", FD: fd})
		return nil
	}

	hf, ok := s.files.get(fd)
	if !ok {
		s.Result = -1
		s.SysErrno = EBADF
		return nil
	}
	if err := hf.Close(); err != nil {
		s.Result = -1
		s.SysErrno = EIO
	} else {
		s.Result = 0
	}
	s.files.release(fd)
	return nil
}

// ---- ERRNO ----

func (s *State) opErrno() error {
	s.Result = int64(s.SysErrno)
	return nil
}

// ---- EXIT / EXIT_EXTENDED ----

var exitReasonNames = map[uint64]string{
	ADPStoppedApplicationExit: "application exit",
}

func (s *State) opExit() error {
	var reason, code uint64
	if s.Op == SysExitExtended || s.WordSizeBytes == 8 {
		f, err := s.readFields(2)
		if err != nil {
			return err
		}
		reason, code = f[0], f[1]
	} else {
		reason = s.Param
	}

	if reason == ADPStoppedApplicationExit && !s.IsFileio && !s.HasResumableExit {
		os.Exit(int(code))
	}

	name := exitReasonNames[reason]
	if name == "" {
		name = fmt.Sprintf("reason 0x%x", reason)
	}
	s.log.Infof("target exit: %s code=%d", name, code)

	if !s.HasResumableExit {
		s.IsResumable = false
		s.target.PublishEvent(target.EventHalted, nil)
	}
	s.Result = 0
	return nil
}

// ---- FLEN ----

func (s *State) opFlen() error {
	f, err := s.readFields(1)
	if err != nil {
		return err
	}
	fd := int(f[0])

	if s.IsFileio {
		s.Result = -1
		s.SysErrno = EINVAL
		return nil
	}

	hf, ok := s.files.get(fd)
	if !ok {
		s.Result = -1
		s.SysErrno = EBADF
		return nil
	}
	info, err := hf.Stat()
	if err != nil {
		s.Result = -1
		s.SysErrno = EIO
		return nil
	}
	s.Result = info.Size()
	return nil
}

// ---- GET_CMDLINE ----

func (s *State) opGetCmdline() error {
	f, err := s.readFields(2)
	if err != nil {
		return err
	}
	bufAddr, bufLen := f[0], f[1]

	needed := uint64(len(s.Cmdline) + 1)
	if needed > bufLen {
		s.Result = -1
		return nil
	}

	if err := s.target.WriteMemory(bufAddr, append([]byte(s.Cmdline), 0)); err != nil {
		return err
	}
	lenBuf := s.codec.PackField(needed - 1)
	if err := s.target.WriteMemory(s.Param+uint64(s.codec.WordSize), lenBuf); err != nil {
		return err
	}
	s.Result = 0
	return nil
}

// ---- HEAPINFO ----

func (s *State) opHeapinfo() error {
	f, err := s.readFields(1)
	if err != nil {
		return err
	}
	if err := s.codec.WriteFields(s.target, f[0], []uint64{0, 0, 0, 0}); err != nil {
		return err
	}
	s.Result = 0
	return nil
}

// ---- ISERROR ----

func (s *State) opIsError() error {
	f, err := s.readFields(1)
	if err != nil {
		return err
	}
	if f[0] != 0 {
		s.Result = 1
	} else {
		s.Result = 0
	}
	return nil
}

// ---- ISTTY ----

func (s *State) opIsTTY() error {
	f, err := s.readFields(1)
	if err != nil {
		return err
	}
	fd := int(f[0])

	if s.IsFileio {
		s.publishFileio(FileioRequest{Identifier: "isatty", FD: fd})
		return nil
	}

	if fd == 0 || fd == 1 || fd == 2 {
		s.Result = 1
		return nil
	}
	hf, ok := s.files.get(fd)
	if !ok {
		s.Result = 0
		return nil
	}
	if isTerminal(hf) {
		s.Result = 1
	} else {
		s.Result = 0
	}
	return nil
}

// ---- OPEN ----

const (
	modeROnly = iota
	modeRBOnly
	modeRPlus
	modeRPlusB
	modeWOnly
	modeWBOnly
	modeWPlus
	modeWPlusB
	modeAOnly
	modeABOnly
	modeAPlus
	modeAPlusB
)

func openFlags(mode int) (int, bool) {
	switch mode {
	case modeROnly, modeRBOnly:
		return os.O_RDONLY, true
	case modeRPlus, modeRPlusB:
		return os.O_RDWR, true
	case modeWOnly, modeWBOnly:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC, true
	case modeWPlus, modeWPlusB:
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, true
	case modeAOnly, modeABOnly:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND, true
	case modeAPlus, modeAPlusB:
		return os.O_RDWR | os.O_CREATE | os.O_APPEND, true
	}
	return 0, false
}

func (s *State) opOpen() error {
	f, err := s.readFields(3)
	if err != nil {
		return err
	}
	nameAddr, mode, nameLen := f[0], int(f[1]), int(f[2])

	name, err := s.readString(nameAddr, nameLen)
	if err != nil {
		return err
	}

	if name == ":semihosting-features" {
		s.Result = -1
		s.SysErrno = EINVAL
		return nil
	}

	if name == ":tt" {
		switch mode {
		case modeROnly:
			if s.IsFileio {
				s.Result = 0
			} else {
				s.Result = int64(s.openStdStream(os.Stdin, &s.stdinFD))
			}
			return nil
		case modeWOnly:
			if s.IsFileio {
				s.Result = 1
			} else {
				s.Result = int64(s.openStdStream(os.Stdout, &s.stdoutFD))
			}
			return nil
		case modeAOnly:
			if s.IsFileio {
				s.Result = 2
			} else {
				s.Result = int64(s.openStdStream(os.Stderr, &s.stderrFD))
			}
			return nil
		}
	}

	path := s.joinBaseDir(name)

	if s.IsFileio {
		flags, ok := openFlags(mode)
		if !ok {
			s.Result = -1
			s.SysErrno = EINVAL
			return nil
		}
		s.publishFileio(FileioRequest{Identifier: "open", Path: path, Mode: mode, Flags: flags})
		return nil
	}

	flags, ok := openFlags(mode)
	if !ok {
		s.Result = -1
		s.SysErrno = EINVAL
		return nil
	}
	hf, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		s.Result = -1
		s.SysErrno = ENOENT
		return nil
	}
	s.Result = int64(s.files.alloc(hf))
	return nil
}

// openStdStream lazily assigns a pseudo-fd to one of the host's own
// stdio streams the first time :tt is opened in that mode, then reuses
// it on subsequent opens.
func (s *State) openStdStream(f *os.File, slot *int) int {
	if *slot >= 0 {
		return *slot
	}
	*slot = s.files.alloc(f)
	return *slot
}

// ---- READ ----

func (s *State) opRead() error {
	f, err := s.readFields(3)
	if err != nil {
		return err
	}
	fd, bufAddr, length := int(f[0]), f[1], int64(f[2])

	if s.redirectActiveFor(fd, s.RedirectCfg.readApplies()) {
		buf := make([]byte, length)
		n, _ := s.redirectRead(buf)
		if err := s.target.WriteMemory(bufAddr, buf[:n]); err != nil {
			return err
		}
		s.Result = length - int64(n)
		return nil
	}

	if s.IsFileio {
		s.publishFileio(FileioRequest{Identifier: "read", FD: fd, Buffer: bufAddr, Length: length})
		return nil
	}

	hf, ok := s.files.get(fd)
	if !ok {
		s.Result = length
		s.SysErrno = EBADF
		return nil
	}
	buf := make([]byte, length)
	n, rerr := hf.Read(buf)
	if n == 0 || (rerr != nil && rerr != io.EOF) {
		s.Result = length
		return nil
	}
	if err := s.target.WriteMemory(bufAddr, buf[:n]); err != nil {
		return err
	}
	s.Result = length - int64(n)
	return nil
}

// ---- READC ----

func (s *State) opReadC() error {
	if s.IsFileio {
		s.Result = -1
		s.SysErrno = EINVAL
		return nil
	}

	if s.redirectActiveFor(s.stdinFD, s.RedirectCfg.debugApplies()) {
		b, err := s.redirectReadByte()
		if err != nil {
			s.Result = -1
			s.SysErrno = EIO
			return nil
		}
		s.Result = int64(b)
		return nil
	}

	hf, ok := s.files.get(s.stdinFD)
	if !ok {
		hf = os.Stdin
	}
	buf := make([]byte, 1)
	if _, err := hf.Read(buf); err != nil {
		s.Result = -1
		s.SysErrno = EIO
		return nil
	}
	s.Result = int64(buf[0])
	return nil
}

// ---- REMOVE ----

func (s *State) opRemove() error {
	f, err := s.readFields(2)
	if err != nil {
		return err
	}
	name, err := s.readString(f[0], int(f[1]))
	if err != nil {
		return err
	}
	path := s.joinBaseDir(name)

	if s.IsFileio {
		s.publishFileio(FileioRequest{Identifier: "unlink", Path: path})
		return nil
	}

	if err := os.Remove(path); err != nil {
		s.Result = -1
		s.SysErrno = ENOENT
	} else {
		s.Result = 0
	}
	return nil
}

// ---- RENAME ----

func (s *State) opRename() error {
	f, err := s.readFields(4)
	if err != nil {
		return err
	}
	oldName, err := s.readString(f[0], int(f[1]))
	if err != nil {
		return err
	}
	newName, err := s.readString(f[2], int(f[3]))
	if err != nil {
		return err
	}
	oldPath := s.joinBaseDir(oldName)
	newPath := s.joinBaseDir(newName)

	if s.IsFileio {
		s.publishFileio(FileioRequest{Identifier: "rename", Path: oldPath, Length: int64(len(newPath))})
		return nil
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		s.Result = -1
		s.SysErrno = ENOENT
	} else {
		s.Result = 0
	}
	return nil
}

// ---- SEEK ----

func (s *State) opSeek() error {
	f, err := s.readFields(2)
	if err != nil {
		return err
	}
	fd, offset := int(f[0]), int64(f[1])

	if s.IsFileio {
		s.publishFileio(FileioRequest{Identifier: "lseek", FD: fd, Offset: offset})
		return nil
	}

	hf, ok := s.files.get(fd)
	if !ok {
		s.Result = -1
		s.SysErrno = EBADF
		return nil
	}
	if _, err := hf.Seek(offset, io.SeekStart); err != nil {
		s.Result = -1
		s.SysErrno = EIO
	} else {
		s.Result = 0
	}
	return nil
}

// ---- SYSTEM ----

func (s *State) opSystem() error {
	f, err := s.readFields(2)
	if err != nil {
		return err
	}
	cmd, err := s.readString(f[0], int(f[1]))
	if err != nil {
		return err
	}

	if s.IsFileio {
		s.publishFileio(FileioRequest{Identifier: "system", Path: cmd})
		return nil
	}

	if hostinfo.PreferShell() {
		s.log.Debug("running SYSTEM command via host shell (pre-3.0 or undetected kernel compatibility path)")
	}
	c := exec.Command("/bin/sh", "-c", cmd)
	if err := c.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			s.Result = int64(exitErr.ExitCode())
			return nil
		}
		s.Result = -1
		s.SysErrno = EIO
		return nil
	}
	s.Result = 0
	return nil
}

// ---- TIME ----

func (s *State) opTime() error {
	s.Result = time.Now().Unix()
	return nil
}

// ---- WRITE ----

func (s *State) opWrite() error {
	f, err := s.readFields(3)
	if err != nil {
		return err
	}
	fd, bufAddr, length := int(f[0]), f[1], int64(f[2])

	buf := make([]byte, length)
	if err := s.target.ReadMemory(bufAddr, buf); err != nil {
		return err
	}

	if s.redirectActiveFor(fd, s.RedirectCfg.readApplies()) {
		n, _ := s.redirectWrite(buf)
		s.Result = length - int64(n)
		return nil
	}

	if s.IsFileio {
		s.publishFileio(FileioRequest{Identifier: "write", FD: fd, Buffer: bufAddr, Length: length})
		return nil
	}

	hf, ok := s.files.get(fd)
	if !ok {
		s.Result = -1
		s.SysErrno = EBADF
		return nil
	}
	n, _ := hf.Write(buf)
	s.Result = length - int64(n)
	return nil
}

// ---- WRITEC ----

func (s *State) opWriteC() error {
	buf := make([]byte, 1)
	if err := s.target.ReadMemory(s.Param, buf); err != nil {
		return err
	}
	s.writeStdout(buf)
	s.Result = 0
	return nil
}

// ---- WRITE0 ----

func (s *State) opWrite0() error {
	str, err := s.readNulString(s.Param)
	if err != nil {
		return err
	}
	s.writeStdout([]byte(str))
	s.Result = 0
	return nil
}

func (s *State) writeStdout(buf []byte) {
	if s.redirectActiveFor(s.stdoutFD, s.RedirectCfg.debugApplies()) {
		s.redirectWrite(buf)
		return
	}
	hf, ok := s.files.get(s.stdoutFD)
	if !ok {
		hf = os.Stdout
	}
	hf.Write(buf)
}

// redirectActiveFor reports whether fd is a stdio fd eligible for
// redirection under the given class gate and a client is attached.
func (s *State) redirectActiveFor(fd int, classApplies bool) bool {
	if !classApplies || s.redirectSvc == nil {
		return false
	}
	if fd != s.stdinFD && fd != s.stdoutFD && fd != s.stderrFD {
		return false
	}
	return s.redirectSvc.client() != nil
}

// ---- USER_CMD ----

type UserCmdEvent struct {
	Opcode Opcode
	Data   []byte
}

func (s *State) opUserCmd() error {
	f, err := s.readFields(2)
	if err != nil {
		return err
	}
	addr, length := f[0], int(f[1])
	if length > 1024 {
		s.Result = -1
		s.SysErrno = EINVAL
		return nil
	}
	buf := make([]byte, length)
	if err := s.target.ReadMemory(addr, buf); err != nil {
		return err
	}

	if s.userCommandExtension != nil {
		handled, err := s.userCommandExtension(s.Op, buf)
		if err != nil {
			s.Result = -1
			s.SysErrno = EIO
			return nil
		}
		if handled {
			s.Result = 0
			return nil
		}
	}

	s.target.PublishEvent(target.EventUserCmd, UserCmdEvent{Opcode: s.Op, Data: append([]byte(nil), buf...)})
	s.Result = 0
	return nil
}
