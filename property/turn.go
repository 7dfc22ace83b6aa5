package property

import (
	"sync"

	"github.com/google/uuid"
)

// Turn identifies one inbound message cycle of a conversation and holds the
// working memory loaded for it. A Turn is used by one goroutine at a time;
// turns of the same conversation must not run concurrently.
type Turn struct {
	id             string
	channelID      string
	conversationID string

	mu     sync.Mutex
	memory map[*Table]*workingMemory
}

// workingMemory is the decoded conversation document for one table, plus
// the hash of the bytes last loaded or committed.
type workingMemory struct {
	doc  map[string]any
	hash uint64
}

// NewTurn creates a Turn for the given channel and conversation. The turn is
// assigned a unique UUIDv7 identifier.
func NewTurn(channelID, conversationID string) *Turn {
	return &Turn{
		id:             uuid.Must(uuid.NewV7()).String(),
		channelID:      channelID,
		conversationID: conversationID,
		memory:         make(map[*Table]*workingMemory),
	}
}

func (t *Turn) ID() string             { return t.id }
func (t *Turn) ChannelID() string      { return t.channelID }
func (t *Turn) ConversationID() string { return t.conversationID }

func (t *Turn) memoryFor(table *Table) *workingMemory {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.memory[table]
}

func (t *Turn) setMemory(table *Table, wm *workingMemory) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.memory == nil {
		t.memory = make(map[*Table]*workingMemory)
	}
	t.memory[table] = wm
}
