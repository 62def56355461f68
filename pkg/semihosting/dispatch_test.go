package semihosting

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/runZeroInc/armhost/pkg/target"
)

func newTestState(t *testing.T, is64Bit bool) (*State, *target.Mock) {
	t.Helper()
	mock := target.NewMock(binary.LittleEndian, is64Bit)
	wordSize := 4
	if is64Bit {
		wordSize = 8
	}
	s, err := NewState(Config{
		Target:        mock,
		WordSizeBytes: wordSize,
		Cmdline:       "app arg1 arg2",
		PostResult:    func(*State) {},
	})
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	s.Enable()
	return s, mock
}

func packParamBlock(t *testing.T, s *State, m *target.Mock, addr uint64, fields ...uint64) {
	t.Helper()
	if err := s.codec.WriteFields(m, addr, fields); err != nil {
		t.Fatalf("packParamBlock: %v", err)
	}
}

func TestDispatch_ErrnoReturnsCachedSysErrno(t *testing.T) {
	s, m := newTestState(t, false)
	packParamBlock(t, s, m, 0x1000, 3)

	if err := s.Dispatch(SysErrno, 0x1000); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if s.Result != 0 {
		t.Fatalf("ERRNO result = %d, want 0", s.Result)
	}
}

func TestDispatch_UnknownOpcodeIsNotSupported(t *testing.T) {
	s, _ := newTestState(t, false)
	if err := s.Dispatch(Opcode(0x99), 0); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if s.Result != -1 || s.SysErrno != ENOTSUP {
		t.Fatalf("got result=%d errno=%d, want -1/ENOTSUP", s.Result, s.SysErrno)
	}
}

func TestDispatch_TransportFailureSkipsPostResult(t *testing.T) {
	s, m := newTestState(t, false)
	m.FailReads = true

	called := false
	s.postResult = func(*State) { called = true }

	err := s.Dispatch(SysErrno, 0x2000)
	if err != nil {
		t.Fatalf("ERRNO never reads memory so this should not fail: %v", err)
	}

	m.FailReads = true
	called = false
	err = s.Dispatch(SysClose, 0x2000)
	if err == nil {
		t.Fatal("expected transport error from failed memory read")
	}
	if called {
		t.Fatal("postResult must not fire on transport failure")
	}
}

// S1: opening ":tt" for read assigns a nonzero pseudo fd.
func TestScenario_OpenTTAssignsStdinFD(t *testing.T) {
	s, m := newTestState(t, false)
	nameAddr := uint64(0x3000)
	m.SeedString(nameAddr, ":tt")
	packParamBlock(t, s, m, 0x3100, nameAddr, uint64(modeROnly), 3)

	if err := s.Dispatch(SysOpen, 0x3100); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if s.Result <= 0 {
		t.Fatalf("OPEN :tt read result = %d, want > 0", s.Result)
	}
	if s.stdinFD != int(s.Result) {
		t.Fatalf("stdinFD = %d, want %d", s.stdinFD, s.Result)
	}
}

// S2/S3: WRITE to stdout is redirected to an attached TCP client instead
// of falling through to the host's own stdout when redirection applies.
func TestScenario_WriteRedirectsToAttachedClient(t *testing.T) {
	s, m := newTestState(t, false)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close() // free the port for the redirect service to rebind

	if err := s.SetRedirect(RedirectAll, port); err != nil {
		t.Fatalf("SetRedirect: %v", err)
	}

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	// give the accept loop a moment to register the connection as active.
	deadline := time.Now().Add(time.Second)
	for s.redirectSvc.client() == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	s.stdoutFD = 1 // pretend :tt write was already opened

	bufAddr := uint64(0x4000)
	if err := m.WriteMemory(bufAddr, []byte("hello")); err != nil {
		t.Fatalf("seed buffer: %v", err)
	}
	packParamBlock(t, s, m, 0x4100, 1, bufAddr, 5)

	if err := s.Dispatch(SysWrite, 0x4100); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if s.Result != 0 {
		t.Fatalf("WRITE result = %d, want 0 (all bytes accepted)", s.Result)
	}

	client.SetReadDeadline(time.Now().Add(time.Second))
	got := make([]byte, 5)
	if _, err := client.Read(got); err != nil {
		t.Fatalf("reading redirected bytes: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("redirected bytes = %q, want %q", got, "hello")
	}
}

// S4: EXIT with no resumable-exit frontend halts the target rather than
// terminating the process outright when the reason is not the standard
// application-exit code.
func TestScenario_ExitNonApplicationReasonHalts(t *testing.T) {
	s, m := newTestState(t, false)

	if err := s.Dispatch(SysExit, 0x20023); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if s.IsResumable {
		t.Fatal("IsResumable should be false after a halting EXIT")
	}
	found := false
	for _, e := range m.Events {
		if e.Event == target.EventHalted {
			found = true
		}
	}
	if !found {
		t.Fatal("expected EventHalted to be published")
	}
}

func TestFileioEnd_ReadMungesResultToUntransferred(t *testing.T) {
	s, _ := newTestState(t, false)
	s.SetFileio(true)

	s.mu.Lock()
	s.publishFileio(FileioRequest{Identifier: "read", FD: 3, Length: 10})
	s.mu.Unlock()

	s.FileioEnd(6, 0, false)
	if s.Result != 4 {
		t.Fatalf("Result = %d, want 4 (10 requested - 6 transferred)", s.Result)
	}
}

func TestFileioEnd_RenameNonzeroIsFailure(t *testing.T) {
	s, _ := newTestState(t, false)
	s.SetFileio(true)

	s.mu.Lock()
	s.publishFileio(FileioRequest{Identifier: "rename"})
	s.mu.Unlock()

	s.FileioEnd(17, 0, false)
	if s.Result != -1 {
		t.Fatalf("Result = %d, want -1 for nonzero rename result", s.Result)
	}
}
