package semihosting

import "fmt"

// Dispatch is SemihostingCore's single entry point, invoked by the
// target-type layer on every semihosting trap with the opcode and
// parameter register already decoded.
//
// On success it returns nil; HitFileio tells the caller whether
// PostResult has already fired (false) or will fire later via
// FileioEnd (true). A non-nil error means a target memory transfer
// failed transport-side — Result holds its initial -1, SysErrno is
// unchanged, PostResult has not fired, and the caller decides whether to
// retry or halt, per the ambient error model.
func (s *State) Dispatch(op Opcode, param uint64) error {
	s.mu.Lock()

	s.Op = op
	s.Param = param
	s.Result = -1
	s.IsResumable = true
	s.HitFileio = false

	if s.metrics != nil {
		s.metrics.ObserveDispatch(op.String())
	}

	handler, ok := handlers[op]
	if !ok && !op.IsUserCmd() {
		s.SysErrno = ENOTSUP
		s.Result = -1
		handler = nil
	}

	var err error
	switch {
	case op.IsUserCmd():
		err = s.opUserCmd()
	case handler != nil:
		err = handler(s)
	default:
		// unsupported/unknown opcode already defaulted above.
	}

	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("semihosting: dispatch %s: %w", op, err)
	}

	hit := s.HitFileio
	post := s.postResult
	s.mu.Unlock()

	if !hit && post != nil {
		post(s)
	}
	return nil
}

// handlers dispatches every opcode with a fixed contract; opcodes with
// interpreter-shaped contracts (USER_CMD) are handled separately in
// Dispatch.
var handlers = map[Opcode]func(*State) error{
	SysClock:        (*State).opClock,
	SysClose:        (*State).opClose,
	SysErrno:        (*State).opErrno,
	SysExit:         (*State).opExit,
	SysExitExtended: (*State).opExit,
	SysFlen:         (*State).opFlen,
	SysGetCmdline:   (*State).opGetCmdline,
	SysHeapinfo:     (*State).opHeapinfo,
	SysIsError:      (*State).opIsError,
	SysIsTTY:        (*State).opIsTTY,
	SysOpen:         (*State).opOpen,
	SysRead:         (*State).opRead,
	SysReadC:        (*State).opReadC,
	SysRemove:       (*State).opRemove,
	SysRename:       (*State).opRename,
	SysSeek:         (*State).opSeek,
	SysSystem:       (*State).opSystem,
	SysTime:         (*State).opTime,
	SysWrite:        (*State).opWrite,
	SysWriteC:       (*State).opWriteC,
	SysWrite0:       (*State).opWrite0,
	SysTmpnam:       (*State).opUnsupported,
	SysElapsed:      (*State).opUnsupported,
	SysTickfreq:     (*State).opUnsupported,
}

func (s *State) opUnsupported() error {
	s.Result = -1
	s.SysErrno = ENOTSUP
	return nil
}
