// Package notifier delivers desktop notifications for admission events.
package notifier

import (
	"fmt"
	"runtime"

	"github.com/gen2brain/beeep"
	"github.com/strikeline/strikeline/pkg/logger"
	"github.com/strikeline/strikeline/pkg/types"
)

// PositionNotifier sends desktop notifications for position lifecycle events
type PositionNotifier struct {
	enabled      bool
	acceptSound  string
	failureSound string
	logger       logger.Logger
}

// Config holds notifier configuration
type Config struct {
	Enabled      bool
	AcceptSound  string
	FailureSound string
}

// New creates a new position notifier
func New(config Config, log logger.Logger) *PositionNotifier {
	if log == nil {
		log = logger.Default()
	}
	return &PositionNotifier{
		enabled:      config.Enabled,
		acceptSound:  config.AcceptSound,
		failureSound: config.FailureSound,
		logger:       log,
	}
}

// FromConfig builds a notifier from the notification section of the config file
func FromConfig(cfg *types.NotificationConfig, log logger.Logger) *PositionNotifier {
	if cfg == nil {
		return New(Config{}, log)
	}
	return New(Config{
		Enabled:      cfg.IsEnabled(),
		AcceptSound:  cfg.AcceptSound,
		FailureSound: cfg.FailureSound,
	}, log)
}

// NotifyAccepted notifies when an admission cycle accepts new positions
func (n *PositionNotifier) NotifyAccepted(admitted, open, capacity int) {
	if !n.enabled || admitted == 0 {
		return
	}

	title := "✅ Positions Accepted"
	message := fmt.Sprintf("Accepted %d position(s), %d/%d slots filled", admitted, open, capacity)

	n.sendNotification(title, message, n.acceptSound)
}

// NotifyPurchased notifies when an accepted position is settled
func (n *PositionNotifier) NotifyPurchased(position types.Position) {
	if !n.enabled {
		return
	}

	title := "💰 Position Filled"
	message := fmt.Sprintf("%s for %.2f credit", position.Key.String(), position.Premium)

	n.sendNotification(title, message, n.acceptSound)
}

// NotifyCycleFailure notifies when a screening cycle fails
func (n *PositionNotifier) NotifyCycleFailure(thread string, err error) {
	if !n.enabled {
		return
	}

	title := "❌ Cycle Failed"
	message := fmt.Sprintf("%s: %v", thread, err)

	n.sendNotification(title, message, n.failureSound)
}

// sendNotification sends a platform-specific notification
func (n *PositionNotifier) sendNotification(title, message, sound string) {
	switch runtime.GOOS {
	case "darwin":
		n.sendMacNotification(title, message, sound)
	case "linux":
		n.sendLinuxNotification(title, message)
	case "windows":
		n.sendWindowsNotification(title, message)
	default:
		n.logger.Debug(fmt.Sprintf("Notifications not supported on %s", runtime.GOOS))
	}
}

// sendMacNotification sends a macOS notification
func (n *PositionNotifier) sendMacNotification(title, message, sound string) {
	err := beeep.Notify(title, message, "")
	if err != nil {
		n.logger.Debug("Failed to send notification",
			logger.WithField("error", err))
	}

	if sound != "" {
		if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			n.logger.Debug("Failed to play sound",
				logger.WithField("error", err))
		}
	}
}

// sendLinuxNotification sends a Linux notification
func (n *PositionNotifier) sendLinuxNotification(title, message string) {
	err := beeep.Notify(title, message, "")
	if err != nil {
		n.logger.Debug("Failed to send notification",
			logger.WithField("error", err))
	}
}

// sendWindowsNotification sends a Windows notification
func (n *PositionNotifier) sendWindowsNotification(title, message string) {
	err := beeep.Notify(title, message, "")
	if err != nil {
		n.logger.Debug("Failed to send notification",
			logger.WithField("error", err))
	}
}
