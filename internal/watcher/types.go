package watcher

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"watchme/internal/logging"
	"watchme/internal/reload"

	"github.com/fsnotify/fsnotify"
)

var (
	ErrConstruction       = errors.New("watcher construction failed")
	ErrRegistration       = errors.New("watch registration failed")
	ErrMaxWatchesExceeded = errors.New("max watches exceeded")
	ErrAlreadyStarted     = errors.New("watcher already started")
)

type State int32

const (
	StateInitializing State = iota
	StateWatching
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateWatching:
		return "watching"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Sender receives one reload signal per forwarded change.
type Sender interface {
	Send(reload.Signal) error
}

// ChangeEvent is a translated filesystem notification.
type ChangeEvent struct {
	Path      string
	Op        fsnotify.Op
	Timestamp time.Time
}

// Options controls watcher behavior.
type Options struct {
	Root       string
	Logger     *logging.Logger
	Debounce   time.Duration
	MaxWatches int
}

// Metrics reports watcher counters.
type Metrics struct {
	ActiveWatches   int
	EventsForwarded uint64
	EventsSkipped   uint64
	EventsCoalesced uint64
	SendFailures    uint64
	Errors          uint64
}

// Watcher is the fsnotify-backed directory watcher.
type Watcher struct {
	root       string
	monitor    *fsnotify.Watcher
	logger     *logging.Logger
	maxWatches int
	debouncer  *debouncer

	mutex   sync.Mutex
	watched map[string]struct{}
	sender  Sender

	started    atomic.Bool
	state      atomic.Int32
	stop       chan struct{}
	done       chan struct{}
	stopOnce   sync.Once
	finishOnce sync.Once

	forwarded atomic.Uint64
	skipped   atomic.Uint64
	coalesced atomic.Uint64
	dropped   atomic.Uint64
	errors    atomic.Uint64
}
