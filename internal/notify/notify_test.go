package notify_test

import (
	"fmt"
	"testing"
	"time"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/notify"
	"github.com/stretchr/testify/assert"
)

func TestRecorderRing(t *testing.T) {
	r := notify.NewRecorder(3)
	assert.Empty(t, r.Recent())

	for i := 1; i <= 5; i++ {
		r.Notify(notify.Notification{Message: fmt.Sprint(i), Time: time.Unix(int64(i), 0)})
	}

	recent := r.Recent()
	assert.Len(t, recent, 3)
	assert.Equal(t, "3", recent[0].Message)
	assert.Equal(t, "5", recent[2].Message)
}

func TestMulti(t *testing.T) {
	var got []string
	a := notify.Func(func(n notify.Notification) { got = append(got, "a:"+n.Message) })
	b := notify.Func(func(n notify.Notification) { got = append(got, "b:"+n.Message) })

	notify.Multi{a, nil, b}.Notify(notify.Notification{Kind: errors.ErrProbeFailure, Message: "x"})
	assert.Equal(t, []string{"a:x", "b:x"}, got)
}

func TestNotificationString(t *testing.T) {
	assert.Equal(t, "DP-1: no ddc", notify.Notification{MonitorID: "DP-1", Message: "no ddc"}.String())
	assert.Equal(t, "hotkey taken", notify.Notification{Message: "hotkey taken"}.String())
}
