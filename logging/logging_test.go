package logging

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestInfofBroadcastsToSubscribers(t *testing.T) {
	log := New(logrus.InfoLevel)
	ch := log.Subscribe()
	defer log.Unsubscribe(ch)

	log.Infof("ecu %s found at 0x%X", "UDS", 0x7E0)

	select {
	case line := <-ch:
		assert.Equal(t, "ecu UDS found at 0x7E0", line)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received log line")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	log := New(logrus.InfoLevel)
	ch := log.Subscribe()
	log.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
}

func TestBroadcastDoesNotBlockOnFullSubscriber(t *testing.T) {
	log := New(logrus.PanicLevel)
	ch := log.Subscribe()

	for i := 0; i < cap(ch)+10; i++ {
		log.Infof("line %d", i)
	}
	// the call above must return promptly rather than deadlock on a full
	// subscriber channel; reaching this point is the assertion.
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	log := New(logrus.InfoLevel)
	a := log.Subscribe()
	b := log.Subscribe()

	log.Warnf("low fuel")

	for _, ch := range []chan string{a, b} {
		select {
		case line := <-ch:
			assert.Equal(t, "low fuel", line)
		case <-time.After(time.Second):
			t.Fatal("subscriber never received log line")
		}
	}
}
