package connectivity_test

import (
	"testing"

	"github.com/Rrens/bloombuddy/internal/connectivity"
	"github.com/stretchr/testify/assert"
)

func TestMonitor_NotifiesOnTransitionsOnly(t *testing.T) {
	m := connectivity.NewMonitor(true)

	var events []bool
	m.Subscribe(func(online bool) { events = append(events, online) })

	assert.False(t, m.Set(true))
	assert.True(t, m.Set(false))
	assert.False(t, m.Online())
	assert.False(t, m.Set(false))
	assert.True(t, m.Set(true))

	assert.Equal(t, []bool{false, true}, events)
	assert.True(t, m.Online())
}

func TestMonitor_SubscriberMayReadState(t *testing.T) {
	m := connectivity.NewMonitor(false)

	var seen bool
	m.Subscribe(func(bool) { seen = m.Online() })
	m.Set(true)

	assert.True(t, seen)
}
