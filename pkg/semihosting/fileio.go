package semihosting

// FileioRequest is the side structure populated when a dispatch hits
// fileio mode instead of executing locally. The frontend reads it via
// GetFileioInfo and later resolves it with FileioEnd.
type FileioRequest struct {
	Identifier string // "open", "read", "write", "close", "lseek", "unlink", "rename", "system", "isatty"
	FD         int
	Path       string
	Mode       int
	Flags      int
	Buffer     uint64
	Length     int64
	Offset     int64

	// recordedLen is Length captured at request time, needed by
	// FileioEnd to convert a raw transfer count into "bytes not
	// transferred".
	recordedLen int64
}

// GetFileioInfo returns the pending fileio request, if any. A caller
// (the remote frontend) uses this to learn what operation to perform; it
// does not clear the pending state, which FileioEnd does.
func (s *State) GetFileioInfo() (*FileioRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil, false
	}
	cp := *s.pending
	return &cp, true
}

// FileioEnd completes a pending fileio request with a raw result/errno
// pair from the frontend, applying the same per-opcode result munging as
// a locally-executed operation, then invokes postResult.
func (s *State) FileioEnd(result int64, sysErrno int32, ctrlC bool) {
	s.mu.Lock()
	req := s.pending
	s.pending = nil
	if s.metrics != nil {
		s.metrics.SetFileioPending(s.session, false)
	}
	if req == nil {
		s.mu.Unlock()
		return
	}

	s.SysErrno = sysErrno

	switch req.Identifier {
	case "read", "write":
		if result >= 0 {
			s.Result = req.recordedLen - result
		} else {
			s.Result = result
		}
	case "lseek":
		if result >= 0 {
			s.Result = 0
		} else {
			s.Result = result
		}
	case "isatty":
		if result == 0 {
			s.Result = -1
		} else {
			s.Result = result
		}
	case "rename":
		if result != 0 {
			s.Result = -1
		} else {
			s.Result = 0
		}
	default:
		s.Result = result
	}

	if ctrlC {
		s.IsResumable = false
	}
	post := s.postResult
	s.mu.Unlock()

	if post != nil {
		post(s)
	}
}

// publishFileio stashes req as the pending request and marks HitFileio.
// Must be called with s.mu held.
func (s *State) publishFileio(req FileioRequest) {
	req.recordedLen = req.Length
	s.pending = &req
	s.HitFileio = true
	if s.metrics != nil {
		s.metrics.SetFileioPending(s.session, true)
	}
}
