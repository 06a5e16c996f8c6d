package client

// NotificationEvent is one transition of a NotificationFeed.
type NotificationEvent interface {
	applyTo(f *NotificationFeed) error
}

// NotificationsLoaded is one fetched page, newest first. UnreadCount is the
// server-wide total and is only taken from the first page.
type NotificationsLoaded struct {
	Generation    uint64
	Page          int
	Notifications []Notification
	UnreadCount   int
	HasMore       bool
}

type NotificationPushed struct {
	Notification Notification
}

type NotificationMarkedRead struct {
	NotificationID int64
}

type AllNotificationsMarkedRead struct{}

// NotificationFeed is a reverse-chronological list with an unread counter.
// The counter is seeded by the first page and then only moved by local
// events; it is never recomputed from the list, which is rarely complete.
type NotificationFeed struct {
	items      []Notification
	seen       map[int64]struct{}
	unread     int
	loaded     bool
	generation uint64
	nextPage   int
	hasMore    bool
}

func NewNotificationFeed() *NotificationFeed {
	f := &NotificationFeed{}
	f.Reset()
	return f
}

func (f *NotificationFeed) Apply(event NotificationEvent) error {
	return event.applyTo(f)
}

func (f *NotificationFeed) Reset() {
	f.items = nil
	f.seen = make(map[int64]struct{})
	f.unread = 0
	f.loaded = false
	f.generation++
	f.nextPage = 1
	f.hasMore = true
}

func (f *NotificationFeed) Generation() uint64 { return f.generation }

func (f *NotificationFeed) NextPage() (int, bool) { return f.nextPage, f.hasMore }

func (f *NotificationFeed) UnreadCount() int { return f.unread }

func (f *NotificationFeed) Notifications() []Notification {
	out := make([]Notification, len(f.items))
	copy(out, f.items)
	return out
}

func (f *NotificationFeed) Get(notificationID int64) (Notification, bool) {
	if idx := f.indexOf(notificationID); idx >= 0 {
		return f.items[idx], true
	}
	return Notification{}, false
}

func (f *NotificationFeed) indexOf(notificationID int64) int {
	for i, n := range f.items {
		if n.ID == notificationID {
			return i
		}
	}
	return -1
}

func (e NotificationsLoaded) applyTo(f *NotificationFeed) error {
	if e.Generation != f.generation || e.Page != f.nextPage {
		return ErrStaleFetch
	}
	if !f.loaded {
		f.unread = max(e.UnreadCount, 0)
		f.loaded = true
	}
	for _, n := range e.Notifications {
		if _, dup := f.seen[n.ID]; dup {
			continue
		}
		f.seen[n.ID] = struct{}{}
		f.items = append(f.items, n)
	}
	f.nextPage = e.Page + 1
	f.hasMore = e.HasMore
	return nil
}

// A push that arrives before the first page has nothing to attach to. It is
// dropped; that page, or a later one, includes it.
func (e NotificationPushed) applyTo(f *NotificationFeed) error {
	if !f.loaded {
		return nil
	}
	n := e.Notification
	if _, dup := f.seen[n.ID]; dup {
		return nil
	}
	n.IsRead = false
	f.seen[n.ID] = struct{}{}
	f.items = append([]Notification{n}, f.items...)
	f.unread++
	return nil
}

func (e NotificationMarkedRead) applyTo(f *NotificationFeed) error {
	idx := f.indexOf(e.NotificationID)
	if idx < 0 {
		return ErrUnknownNotification
	}
	from := f.items[idx].State()
	to, err := notificationReads.next(from, readEventMarkRead)
	if err != nil {
		return err
	}
	f.items[idx].IsRead = to == Read
	if from == Unread && to == Read && f.unread > 0 {
		f.unread--
	}
	return nil
}

func (AllNotificationsMarkedRead) applyTo(f *NotificationFeed) error {
	for i := range f.items {
		f.items[i].IsRead = true
	}
	f.unread = 0
	return nil
}
