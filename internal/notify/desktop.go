package notify

import (
	"github.com/godbus/dbus/v5"

	"codeberg.org/mutker/monitornap/internal/errors"
	"codeberg.org/mutker/monitornap/internal/logger"
)

const (
	notificationsDest   = "org.freedesktop.Notifications"
	notificationsPath   = "/org/freedesktop/Notifications"
	notificationsMethod = "org.freedesktop.Notifications.Notify"

	ErrSessionBus = errors.ErrorCode("notify_session_bus_unavailable")

	appName       = "MonitorNap"
	appIcon       = "video-display"
	expireTimeout = int32(8000)
)

// Desktop shows notifications through the freedesktop notification service
// on the session bus. Delivery is asynchronous and best effort.
type Desktop struct {
	conn   *dbus.Conn
	logger logger.Logger
}

func NewDesktop(log logger.Logger) (*Desktop, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, errors.New().Wrap(ErrSessionBus, err)
	}
	return &Desktop{conn: conn, logger: log}, nil
}

func (d *Desktop) Notify(n Notification) {
	obj := d.conn.Object(notificationsDest, notificationsPath)
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(1)),
	}

	call := obj.Go(notificationsMethod, 0, make(chan *dbus.Call, 1),
		appName, uint32(0), appIcon, summary(n), n.Message, []string{}, hints, expireTimeout)

	go func() {
		if result := <-call.Done; result.Err != nil {
			d.logger.Debug().Err(result.Err).Msg("Failed to send desktop notification")
		}
	}()
}

func summary(n Notification) string {
	title := errors.GetErrorMessage(n.Kind)
	if n.MonitorID != "" {
		title += " (" + string(n.MonitorID) + ")"
	}
	return title
}
