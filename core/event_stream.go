package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"r2s/core/types"
)

const eventHistoryLimit = 2048

// EventUpdate is a journaled event delivered to stream subscribers.
type EventUpdate struct {
	Sequence uint64      `json:"sequence"`
	Cursor   string      `json:"cursor"`
	TxHash   common.Hash `json:"txHash"`
	Event    types.Event `json:"event"`
}

func newEventUpdate(stored *types.StoredEvent) EventUpdate {
	return EventUpdate{
		Sequence: stored.Sequence,
		Cursor:   strconv.FormatUint(stored.Sequence, 10),
		TxHash:   common.BytesToHash(stored.TxHash),
		Event:    *stored.Event(),
	}
}

func cloneEventUpdate(update EventUpdate) EventUpdate {
	cloned := update
	cloned.Event = *update.Event.Clone()
	return cloned
}

// loadStreamHistory seeds the in-memory history with the journal tail.
func (n *Node) loadStreamHistory() error {
	n.mu.Lock()
	head, err := n.loadCounter(eventSeqKey)
	if err != nil {
		n.mu.Unlock()
		return err
	}
	var from uint64 = 1
	if head > eventHistoryLimit {
		from = head - eventHistoryLimit + 1
	}
	history := make([]EventUpdate, 0, head-from+1)
	for from <= head {
		page, err := n.readEvents(from, MaxEventPage, "")
		if err != nil {
			n.mu.Unlock()
			return err
		}
		if len(page) == 0 {
			break
		}
		for _, stored := range page {
			history = append(history, newEventUpdate(stored))
		}
		from = page[len(page)-1].Sequence + 1
	}
	n.mu.Unlock()

	n.streamMu.Lock()
	n.streamHistory = history
	n.streamMu.Unlock()
	return nil
}

func (n *Node) publishEvents(stored []*types.StoredEvent) {
	if n == nil || len(stored) == 0 {
		return
	}

	updates := make([]EventUpdate, 0, len(stored))
	for _, evt := range stored {
		updates = append(updates, newEventUpdate(evt))
		n.metrics.RecordEvent(evt.Type)
	}

	n.streamMu.Lock()
	if n.streamSubs == nil {
		n.streamSubs = make(map[uint64]chan EventUpdate)
	}
	for _, update := range updates {
		n.streamHistory = append(n.streamHistory, cloneEventUpdate(update))
	}
	if len(n.streamHistory) > eventHistoryLimit {
		excess := len(n.streamHistory) - eventHistoryLimit
		trimmed := make([]EventUpdate, eventHistoryLimit)
		copy(trimmed, n.streamHistory[excess:])
		n.streamHistory = trimmed
	}
	subscribers := make([]chan EventUpdate, 0, len(n.streamSubs))
	for _, ch := range n.streamSubs {
		subscribers = append(subscribers, ch)
	}
	// Sends happen under the lock so a concurrent cancel cannot close a
	// channel mid-send; slow subscribers drop updates instead of blocking.
	for _, update := range updates {
		for _, ch := range subscribers {
			select {
			case ch <- cloneEventUpdate(update):
			default:
			}
		}
	}
	n.streamMu.Unlock()
}

// SubscribeEvents registers a subscriber for journaled events starting after
// the supplied cursor. The returned backlog holds the buffered history newer
// than the cursor; live updates follow on the channel until cancel is called
// or ctx ends.
func (n *Node) SubscribeEvents(ctx context.Context, cursor string) (<-chan EventUpdate, func(), []EventUpdate, error) {
	if n == nil {
		return nil, nil, nil, fmt.Errorf("node not initialised")
	}
	updates := make(chan EventUpdate, 64)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		parsed, err := strconv.ParseUint(trimmed, 10, 64)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid cursor %q", cursor)
		}
		since = parsed
	}

	n.streamMu.Lock()
	if n.streamSubs == nil {
		n.streamSubs = make(map[uint64]chan EventUpdate)
	}
	id := n.streamNextID
	n.streamNextID++
	n.streamSubs[id] = updates
	history := make([]EventUpdate, len(n.streamHistory))
	copy(history, n.streamHistory)
	n.streamMu.Unlock()
	n.metrics.SubscriberAdded()

	backlog := make([]EventUpdate, 0, len(history))
	for _, entry := range history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneEventUpdate(entry))
		}
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.streamMu.Lock()
			sub, ok := n.streamSubs[id]
			if ok {
				delete(n.streamSubs, id)
				close(sub)
			}
			n.streamMu.Unlock()
			n.metrics.SubscriberRemoved()
		})
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return updates, cancel, backlog, nil
}

// closeStream ends every subscription.
func (n *Node) closeStream() {
	n.streamMu.Lock()
	defer n.streamMu.Unlock()
	for id, ch := range n.streamSubs {
		delete(n.streamSubs, id)
		close(ch)
	}
}
