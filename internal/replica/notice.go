package replica

import "github.com/nhle/teamboard/internal/store"

// NoticeLevel grades a user-facing notice.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeError
)

func (l NoticeLevel) String() string {
	switch l {
	case NoticeWarning:
		return "warning"
	case NoticeError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a transient, non-blocking message for the user.
type Notice struct {
	Level    NoticeLevel
	Message  string
	Kind     store.EntityKind
	EntityID string
}

// Notifier receives notices. Notify is called with the replica's lock
// held, so it must not block or call back into the replica.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notice) { f(n) }

// ChanNotifier delivers notices on a buffered channel, dropping them when
// nobody is reading.
type ChanNotifier struct {
	C chan Notice
}

// NewChanNotifier returns a ChanNotifier with the given buffer size.
func NewChanNotifier(size int) *ChanNotifier {
	return &ChanNotifier{C: make(chan Notice, size)}
}

// Notify sends n without blocking.
func (c *ChanNotifier) Notify(n Notice) {
	select {
	case c.C <- n:
	default:
	}
}
