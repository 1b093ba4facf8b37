package relay

import (
	"time"
)

// Message 是一条用户消息。DeliveredAt 为零值表示尚未被取走。
type Message struct {
	Sender      string    `json:"sender"`
	Recipient   string    `json:"recipient"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// Delivered 判断消息是否已被取走。
func (m Message) Delivered() bool {
	return !m.DeliveredAt.IsZero()
}

type mailbox struct {
	delivered   []Message
	undelivered []Message
	history     []Message
}

// MessageMailbox 维护每个收件人的已投递、未投递队列，以及未投递消息被取走后的历史。
// 非并发安全，由 Core 加锁访问。
type MessageMailbox struct {
	boxes map[string]*mailbox
	now   func() time.Time
}

func NewMessageMailbox(now func() time.Time) *MessageMailbox {
	if now == nil {
		now = time.Now
	}
	return &MessageMailbox{
		boxes: make(map[string]*mailbox),
		now:   now,
	}
}

func (m *MessageMailbox) box(username string) *mailbox {
	b, ok := m.boxes[username]
	if !ok {
		b = &mailbox{}
		m.boxes[username] = b
	}
	return b
}

// Send 生成一条消息；online 为 true 时进入已投递队列，否则进入未投递队列。
// 不校验收件人是否存在。
func (m *MessageMailbox) Send(sender, recipient, body string, online bool) Message {
	msg := Message{
		Sender:    sender,
		Recipient: recipient,
		Body:      body,
		CreatedAt: m.now().UTC(),
	}
	b := m.box(recipient)
	if online {
		b.delivered = append(b.delivered, msg)
	} else {
		b.undelivered = append(b.undelivered, msg)
	}
	return msg
}

// FetchUndelivered 取走 username 的全部未投递消息并清空队列，被取走的消息记入历史。
// 没有确认步骤：取走即视为送达。
func (m *MessageMailbox) FetchUndelivered(username string) []Message {
	b, ok := m.boxes[username]
	if !ok || len(b.undelivered) == 0 {
		return []Message{}
	}
	drained := b.undelivered
	b.undelivered = nil

	deliveredAt := m.now().UTC()
	for i := range drained {
		drained[i].DeliveredAt = deliveredAt
	}
	b.history = append(b.history, drained...)

	out := make([]Message, len(drained))
	copy(out, drained)
	return out
}

// Delivered 返回 username 已投递队列的副本。
func (m *MessageMailbox) Delivered(username string) []Message {
	return cloneMessages(m.boxes[username], func(b *mailbox) []Message { return b.delivered })
}

// Undelivered 返回 username 未投递队列的副本，不清空队列。
func (m *MessageMailbox) Undelivered(username string) []Message {
	return cloneMessages(m.boxes[username], func(b *mailbox) []Message { return b.undelivered })
}

// History 返回 username 已被取走的未投递消息。
func (m *MessageMailbox) History(username string) []Message {
	return cloneMessages(m.boxes[username], func(b *mailbox) []Message { return b.history })
}

// Restore 用快照覆盖未投递队列，用于启动时装载。
func (m *MessageMailbox) Restore(undelivered map[string][]Message) {
	for username, msgs := range undelivered {
		if len(msgs) == 0 {
			continue
		}
		b := m.box(username)
		b.undelivered = append(b.undelivered[:0], msgs...)
	}
}

// SnapshotUndelivered 深拷贝所有非空的未投递队列。
func (m *MessageMailbox) SnapshotUndelivered() map[string][]Message {
	out := make(map[string][]Message, len(m.boxes))
	for username, b := range m.boxes {
		if len(b.undelivered) == 0 {
			continue
		}
		out[username] = append([]Message(nil), b.undelivered...)
	}
	return out
}

// PendingCount 返回所有收件人的未投递消息总数。
func (m *MessageMailbox) PendingCount() int {
	total := 0
	for _, b := range m.boxes {
		total += len(b.undelivered)
	}
	return total
}

func cloneMessages(b *mailbox, pick func(*mailbox) []Message) []Message {
	if b == nil {
		return []Message{}
	}
	msgs := pick(b)
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}
