package semihosting

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/runZeroInc/armhost/pkg/fields"
	"github.com/runZeroInc/armhost/pkg/metrics"
	"github.com/runZeroInc/armhost/pkg/netconn"
	"github.com/runZeroInc/armhost/pkg/target"
)

// RedirectConfig governs which console/stdio operations divert to the
// attached TCP redirect client.
type RedirectConfig int

const (
	RedirectNone RedirectConfig = iota
	RedirectStdio
	RedirectDebug
	RedirectAll
)

func (r RedirectConfig) readApplies() bool  { return r == RedirectStdio || r == RedirectAll }
func (r RedirectConfig) debugApplies() bool { return r == RedirectDebug || r == RedirectAll }

// UserCommandFn lets the embedding application handle USER_CMD opcodes
// natively instead of the default "publish an event" behaviour.
type UserCommandFn func(op Opcode, data []byte) (handled bool, err error)

// Config bundles the construction-time collaborators and fixed settings
// a State needs. It has no defaults beyond the zero value of each field;
// callers supply what their target/session actually needs.
type Config struct {
	Target                target.Target
	WordSizeBytes         int
	HasResumableExit      bool
	Cmdline               string
	BaseDir               string
	UserCommandExtension  UserCommandFn
	PostResult            func(s *State)
	Metrics               *metrics.SemihostingCollector
	Logger                *logrus.Logger
	SessionName           string
}

// State is one SemihostingCore instance, matching a single target.
type State struct {
	mu sync.Mutex

	target target.Target
	codec  *fields.Codec

	IsActive         bool
	IsFileio         bool
	HasResumableExit bool
	RedirectCfg      RedirectConfig

	stdinFD, stdoutFD, stderrFD int

	Op    Opcode
	Param uint64

	Result   int64
	SysErrno int32

	IsResumable bool
	HitFileio   bool

	WordSizeBytes int
	SetupTime     time.Time

	Cmdline string
	BaseDir string

	redirectConn *netconn.Conn
	redirectSvc  *RedirectService

	userCommandExtension UserCommandFn
	postResult           func(s *State)

	files   *hostFiles
	pending *FileioRequest

	metrics *metrics.SemihostingCollector
	log     *logrus.Entry
	session string
}

// NewState builds a disabled SemihostingCore bound to cfg.Target.
func NewState(cfg Config) (*State, error) {
	codec, err := fields.NewCodec(fields.WordSize(cfg.WordSizeBytes), cfg.Target.ByteOrder())
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	session := cfg.SessionName
	if session == "" {
		session = cfg.Target.Name()
	}
	return &State{
		target:               cfg.Target,
		codec:                codec,
		HasResumableExit:     cfg.HasResumableExit,
		RedirectCfg:          RedirectNone,
		stdinFD:              -1,
		stdoutFD:             -1,
		stderrFD:             -1,
		WordSizeBytes:        cfg.WordSizeBytes,
		SetupTime:            time.Now(),
		Cmdline:              cfg.Cmdline,
		BaseDir:              cfg.BaseDir,
		userCommandExtension: cfg.UserCommandExtension,
		postResult:           cfg.PostResult,
		files:                newHostFiles(),
		metrics:              cfg.Metrics,
		log:                  logger.WithField("session", session),
		session:              session,
	}, nil
}

// Enable turns on semihosting for this target.
func (s *State) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IsActive = true
}

// Disable turns off semihosting for this target.
func (s *State) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IsActive = false
}

// SetFileio toggles dual-mode operation.
func (s *State) SetFileio(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.IsFileio = enabled
}

// SetResumableExit toggles whether EXIT terminates the process when no
// frontend is attached.
func (s *State) SetResumableExit(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.HasResumableExit = enabled
}

// SetCmdline updates the command line string GET_CMDLINE hands back.
func (s *State) SetCmdline(cmdline string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Cmdline = cmdline
}

// SetBaseDir updates the filesystem prefix OPEN/REMOVE/RENAME apply to
// relative names. SYSTEM does not apply it: the command string runs as
// given, in the host process's working directory.
func (s *State) SetBaseDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.BaseDir = dir
}
