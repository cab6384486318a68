// Package chat is the client side of a conversation with the relay: the
// message history and the turn loop that fills in streamed replies.
package chat

import (
	"errors"
	"sync"

	"github.com/varsilias/carmatch/pkg/types"
)

// Greeting opens every new conversation.
const Greeting = "你好！我是车圈红娘，很高兴为你服务。有什么我可以帮助你的吗？"

var (
	ErrTurnInProgress = errors.New("chat: a reply is still streaming")
	ErrNoReply        = errors.New("chat: no reply in progress")
)

// Conversation is the ordered history of one session. At most one message,
// the last assistant message, is open for appending at a time; everything
// before it is frozen.
type Conversation struct {
	mu         sync.Mutex
	msgs       []types.ChatMessage
	inProgress bool
	sessionID  string
}

func NewConversation() *Conversation {
	return &Conversation{
		msgs: []types.ChatMessage{{Role: types.RoleAssistant, Content: Greeting}},
	}
}

// Messages returns a snapshot.
func (c *Conversation) Messages() []types.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.ChatMessage, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// Last returns the most recent message.
func (c *Conversation) Last() types.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.msgs) == 0 {
		return types.ChatMessage{}
	}
	return c.msgs[len(c.msgs)-1]
}

func (c *Conversation) Append(m types.ChatMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inProgress {
		return ErrTurnInProgress
	}
	c.msgs = append(c.msgs, m)
	return nil
}

// Begin appends an empty assistant message that Extend will grow.
func (c *Conversation) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inProgress {
		return ErrTurnInProgress
	}
	c.msgs = append(c.msgs, types.ChatMessage{Role: types.RoleAssistant})
	c.inProgress = true
	return nil
}

func (c *Conversation) Extend(fragment string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inProgress {
		return ErrNoReply
	}
	c.msgs[len(c.msgs)-1].Content += fragment
	return nil
}

// Finish freezes the open reply. It is a no-op when none is open.
func (c *Conversation) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inProgress = false
}

func (c *Conversation) InProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inProgress
}

func (c *Conversation) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Conversation) SetSessionID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = id
}
