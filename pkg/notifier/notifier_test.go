package notifier_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/strikeline/strikeline/pkg/logger"
	"github.com/strikeline/strikeline/pkg/notifier"
	"github.com/strikeline/strikeline/pkg/types"
)

func samplePosition() types.Position {
	return types.Position{
		Key:     types.NewKey("SPY", "2026-09-18", 90, 95),
		Status:  types.StatusPurchased,
		Score:   61.3,
		Premium: 0.55,
	}
}

func TestNotifier_Accepted(t *testing.T) {
	log := logger.CreateLogger("info")

	config := notifier.Config{
		Enabled:      true,
		AcceptSound:  "default",
		FailureSound: "alert",
	}

	n := notifier.New(config, log)

	// This would normally show a system notification
	// In tests, we just verify it doesn't crash
	n.NotifyAccepted(2, 3, 5)
}

func TestNotifier_AcceptedNoneSkipsNotification(t *testing.T) {
	log := logger.CreateLogger("info")

	config := notifier.Config{
		Enabled: true,
	}

	n := notifier.New(config, log)

	// Zero admissions should be silent even when enabled
	n.NotifyAccepted(0, 3, 5)
}

func TestNotifier_Purchased(t *testing.T) {
	log := logger.CreateLogger("info")

	config := notifier.Config{
		Enabled:     true,
		AcceptSound: "default",
	}

	n := notifier.New(config, log)

	n.NotifyPurchased(samplePosition())
}

func TestNotifier_CycleFailure(t *testing.T) {
	log := logger.CreateLogger("info")

	config := notifier.Config{
		Enabled:      true,
		FailureSound: "alert",
	}

	n := notifier.New(config, log)

	cycleErr := fmt.Errorf("fetch chain for SPY: connection refused")
	n.NotifyCycleFailure("scan", cycleErr)
}

func TestNotifier_Disabled(t *testing.T) {
	log := logger.CreateLogger("info")

	config := notifier.Config{
		Enabled: false,
	}

	n := notifier.New(config, log)

	// Should not send notification when disabled
	// These methods don't return errors, they just don't do anything when disabled
	n.NotifyAccepted(1, 1, 5)
	n.NotifyPurchased(samplePosition())
	n.NotifyCycleFailure("scan", fmt.Errorf("test error"))
}

func TestNotifier_FromConfig(t *testing.T) {
	log := logger.CreateLogger("info")

	enabled := true
	cfg := &types.NotificationConfig{
		Enabled:      &enabled,
		AcceptSound:  "Glass",
		FailureSound: "Basso",
	}

	n := notifier.FromConfig(cfg, log)
	n.NotifyAccepted(1, 1, 5)

	// A nil section behaves as disabled
	quiet := notifier.FromConfig(nil, log)
	quiet.NotifyAccepted(1, 1, 5)
	quiet.NotifyCycleFailure("drain", fmt.Errorf("store unavailable"))
}

func TestNotifier_CustomSound(t *testing.T) {
	log := logger.CreateLogger("info")

	config := notifier.Config{
		Enabled:      true,
		AcceptSound:  "Glass",
		FailureSound: "Basso",
	}

	n := notifier.New(config, log)

	// Test custom sounds
	n.NotifyAccepted(1, 4, 5)
	n.NotifyCycleFailure("admission", fmt.Errorf("custom failure"))
}

func TestNotifier_MultiplePositions(t *testing.T) {
	log := logger.CreateLogger("info")

	config := notifier.Config{
		Enabled: true,
	}

	n := notifier.New(config, log)

	tickers := []string{"SPY", "QQQ", "IWM"}

	for _, ticker := range tickers {
		p := samplePosition()
		p.Key = types.NewKey(ticker, "2026-09-18", 90, 95)
		n.NotifyPurchased(p)
	}
}

func TestNotifier_CycleProgress(t *testing.T) {
	log := logger.CreateLogger("info")

	config := notifier.Config{
		Enabled: true,
	}

	n := notifier.New(config, log)

	// Simulate a scan cycle followed by admission and settlement
	n.NotifyAccepted(2, 2, 5)
	time.Sleep(100 * time.Millisecond)

	n.NotifyPurchased(samplePosition())
}

func TestNotifier_ConcurrentNotifications(t *testing.T) {
	log := logger.CreateLogger("info")

	config := notifier.Config{
		Enabled: true,
	}

	n := notifier.New(config, log)

	// Send multiple notifications concurrently
	done := make(chan bool, 5)

	for i := 0; i < 5; i++ {
		go func(idx int) {
			n.NotifyAccepted(idx+1, idx+1, 5)
			done <- true
		}(i)
	}

	// Wait for all notifications
	for i := 0; i < 5; i++ {
		<-done
	}
}

func TestNotifier_ErrorFormats(t *testing.T) {
	log := logger.CreateLogger("info")

	config := notifier.Config{
		Enabled: true,
	}

	n := notifier.New(config, log)

	// Test various error formats
	errors := []error{
		fmt.Errorf("simple error"),
		fmt.Errorf("multi-line\nerror\nmessage"),
		fmt.Errorf("error with special chars: %s %d %%", "test", 42),
		nil, // Should handle nil gracefully
	}

	for _, err := range errors {
		n.NotifyCycleFailure("scan", err)
	}
}

func BenchmarkNotifier_Accepted(b *testing.B) {
	log := logger.CreateLogger("error")

	config := notifier.Config{
		Enabled: false, // Disable actual notifications for benchmark
	}

	n := notifier.New(config, log)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n.NotifyAccepted(1, 1, 5)
	}
}

func BenchmarkNotifier_CycleFailure(b *testing.B) {
	log := logger.CreateLogger("error")

	config := notifier.Config{
		Enabled: false,
	}

	n := notifier.New(config, log)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		n.NotifyCycleFailure("scan", fmt.Errorf("test error"))
	}
}
