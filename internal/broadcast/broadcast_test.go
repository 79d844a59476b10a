package broadcast

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_ReachesEverySubscriber(t *testing.T) {
	b := New()
	a, cancelA := b.Subscribe(2)
	defer cancelA()
	c, cancelC := b.Subscribe(2)
	defer cancelC()

	n := b.Publish(TimerUpdate(1000))
	assert.Equal(t, 2, n)

	assert.Equal(t, TimerUpdate(1000), <-a)
	assert.Equal(t, TimerUpdate(1000), <-c)
}

func TestPublish_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe(1)
	defer cancel()

	assert.Equal(t, 1, b.Publish(TimerUpdate(1000)))
	assert.Equal(t, 0, b.Publish(TimerUpdate(2000)))

	assert.Equal(t, int64(1000), (<-ch).ElapsedTime)
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	b := New()
	ch, cancel := b.Subscribe(1)
	require.Equal(t, 1, b.Subscribers())

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.Subscribers())
	assert.Equal(t, 0, b.Publish(TimerReset()))
}

func TestClose_ClosesAllAndRejectsNewSubscribers(t *testing.T) {
	b := New()
	ch, _ := b.Subscribe(1)
	b.Close()
	b.Close()

	_, open := <-ch
	assert.False(t, open)

	late, cancel := b.Subscribe(1)
	defer cancel()
	_, open = <-late
	assert.False(t, open)
}

func TestEvent_WireFormat(t *testing.T) {
	data, err := json.Marshal(TimerUpdate(1500))
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"timerUpdate","elapsedTime":1500}`, string(data))

	data, err = json.Marshal(TimerReset())
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"timerReset"}`, string(data))

	data, err = json.Marshal(Notification("Weekly Timesheet Reminder", "fill it in"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"notification","title":"Weekly Timesheet Reminder","message":"fill it in"}`, string(data))
}
