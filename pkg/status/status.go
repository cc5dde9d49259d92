// Package status carries progress updates from the topology builder and the
// engine adapter to whatever front end is attached to the context.
package status

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultChannelSize is the default buffer size for the status channel
	DefaultChannelSize = 256

	// DefaultFlushTimeout bounds how long cleanup waits for queued updates
	DefaultFlushTimeout = 5 * time.Second
)

// Level represents the severity level of a status update
type Level string

const (
	LevelInfo     Level = "info"
	LevelProgress Level = "progress"
	LevelSuccess  Level = "success"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
)

// Action values used by the builder and the engine adapter.
const (
	ActionValidate = "validate"
	ActionDeclare  = "declare"
	ActionRegister = "register"
	ActionPreview  = "preview"
	ActionApply    = "apply"
	ActionDestroy  = "destroy"
)

// Update is a single progress message.
type Update struct {
	Level   Level
	Message string

	// Kind is the resource kind the update refers to (e.g. "subnet", "nat-gateway")
	Kind string

	// Name is the logical name of the resource, if any
	Name string

	// ID is the resolved resource id, if any
	ID string

	Action    string
	Metadata  map[string]any
	Timestamp time.Time
}

// NewUpdate creates a new Update with the current timestamp
func NewUpdate(level Level, message string) Update {
	return Update{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// WithResource sets the resource kind and logical name.
func (u Update) WithResource(kind, name string) Update {
	u.Kind = kind
	u.Name = name
	return u
}

// WithID sets the resolved resource id.
func (u Update) WithID(id string) Update {
	u.ID = id
	return u
}

// WithAction sets the action being performed.
func (u Update) WithAction(action string) Update {
	u.Action = action
	return u
}

// WithMetadata adds one key to the update's metadata. The receiver's map is
// copied so that chained builders never share state.
func (u Update) WithMetadata(key string, value any) Update {
	md := make(map[string]any, len(u.Metadata)+1)
	for k, v := range u.Metadata {
		md[k] = v
	}
	md[key] = value
	u.Metadata = md
	return u
}

// Send delivers an update to the channel stored in ctx. It never blocks: when
// no channel is attached, or the channel is full, the update is dropped.
func Send(ctx context.Context, update Update) {
	s := getSink(ctx)
	if s == nil {
		return
	}

	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}

	select {
	case s.ch <- update:
	default:
		if s.dropped != nil {
			s.dropped.Add(1)
		}
	}
}

// Sendf sends a formatted status update message
func Sendf(ctx context.Context, level Level, format string, args ...any) {
	Send(ctx, NewUpdate(level, fmt.Sprintf(format, args...)))
}

func Infof(ctx context.Context, format string, args ...any) {
	Sendf(ctx, LevelInfo, format, args...)
}

func Progressf(ctx context.Context, format string, args ...any) {
	Sendf(ctx, LevelProgress, format, args...)
}

func Successf(ctx context.Context, format string, args ...any) {
	Sendf(ctx, LevelSuccess, format, args...)
}

func Warningf(ctx context.Context, format string, args ...any) {
	Sendf(ctx, LevelWarning, format, args...)
}

func Errorf(ctx context.Context, format string, args ...any) {
	Sendf(ctx, LevelError, format, args...)
}

// Declared reports that a resource of the given kind was added to a graph.
func Declared(ctx context.Context, kind, name, id string) {
	Send(ctx, NewUpdate(LevelProgress, fmt.Sprintf("Declared %s %s", kind, name)).
		WithResource(kind, name).
		WithID(id).
		WithAction(ActionDeclare))
}

// Handler processes status updates. It is called from a single goroutine.
type Handler func(Update)

// CleanupFunc closes the status channel and waits for the handler to drain
// it. It returns the number of updates dropped because the channel was full.
type CleanupFunc func() int64

// StartHandler attaches a buffered status channel to ctx and starts a
// goroutine feeding every update to handler. The returned cleanup must be
// deferred by the caller.
//
//	ctx, cleanup := status.StartHandler(ctx, func(u status.Update) {
//	    slog.Info("Status", "message", u.Message)
//	})
//	defer cleanup()
func StartHandler(ctx context.Context, handler Handler) (context.Context, CleanupFunc) {
	return StartHandlerWithOptions(ctx, handler, DefaultChannelSize, DefaultFlushTimeout)
}

// StartHandlerWithOptions is like StartHandler but allows customizing the channel size and flush timeout
func StartHandlerWithOptions(ctx context.Context, handler Handler, channelSize int, flushTimeout time.Duration) (context.Context, CleanupFunc) {
	ch := make(chan Update, channelSize)
	dropped := new(atomic.Int64)
	ctx = withSink(ctx, &sink{ch: ch, dropped: dropped})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range ch {
			handler(update)
		}
	}()

	var once sync.Once
	cleanup := func() int64 {
		once.Do(func() {
			close(ch)

			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()

			select {
			case <-done:
			case <-time.After(flushTimeout):
			}
		})
		return dropped.Load()
	}

	return ctx, cleanup
}
