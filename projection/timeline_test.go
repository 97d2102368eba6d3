package projection

import (
	"context"
	"testing"
	"time"

	"chat-hub/domain"
	"chat-hub/domain/event"

	"github.com/stretchr/testify/require"
)

func TestTimeline_Consume_MessagePosted(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	ctx := context.Background()

	evt1 := event.MessagePosted{Message: domain.Message{
		Seq: 1, Room: 7, AuthorID: 10, AuthorName: "alice", Body: "Hello Bob", At: time.Now(),
	}}
	evt2 := event.MessagePosted{Message: domain.Message{
		Seq: 2, Room: 7, AuthorID: 11, AuthorName: "clara", Body: "Hi Bob", At: time.Now().Add(time.Second),
	}}

	req.NoError(timeline.Consume(ctx, evt1))
	req.NoError(timeline.Consume(ctx, evt2))

	messages := timeline.Messages(7)
	req.Len(messages, 2)
	req.Equal("alice", messages[0].AuthorName)
	req.Equal("clara", messages[1].AuthorName)
}

func TestTimeline_Add_DeduplicatesAndOrders(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()

	// Given live delivery and a history replay overlapping out of order
	timeline.Add(domain.Message{Seq: 3, Room: 1, Body: "third"})
	timeline.Add(domain.Message{Seq: 1, Room: 1, Body: "first"})
	timeline.Add(domain.Message{Seq: 2, Room: 1, Body: "second"})
	timeline.Add(domain.Message{Seq: 2, Room: 1, Body: "second again"})

	// Then the timeline converges to the assigned order, duplicates dropped
	messages := timeline.Messages(1)
	req.Len(messages, 3)
	req.Equal("first", messages[0].Body)
	req.Equal("second", messages[1].Body)
	req.Equal("third", messages[2].Body)
}

func TestTimeline_RoomsAreIsolated(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()

	timeline.Add(domain.Message{Seq: 1, Room: 1, Body: "one"})
	timeline.Add(domain.Message{Seq: 1, Room: 2, Body: "two"})

	req.Equal(1, timeline.Len(1))
	req.Equal(1, timeline.Len(2))
	req.Equal("one", timeline.Messages(1)[0].Body)
	req.Equal("two", timeline.Messages(2)[0].Body)
}
