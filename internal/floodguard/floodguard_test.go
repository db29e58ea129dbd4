package floodguard

import (
	"testing"
	"time"
)

func TestWindowLimit(t *testing.T) {
	guard := NewGuard(Config{
		Enabled:        true,
		MaxMessages:    3,
		TimeWindow:     1 * time.Second,
		RepeatCooldown: 30 * time.Second,
	})

	// First 3 messages should be allowed
	for i := 0; i < 3; i++ {
		result := guard.Check("message " + string(rune('a'+i)))
		if !result.Allowed {
			t.Errorf("message %d should be allowed", i+1)
		}
	}

	// 4th message should be blocked
	result := guard.Check("message d")
	if result.Allowed {
		t.Error("4th message should be blocked by window limit")
	}
	if result.Wait <= 0 {
		t.Errorf("blocked result should carry a positive wait, got %v", result.Wait)
	}
}

func TestRepeatSuppression(t *testing.T) {
	guard := NewGuard(Config{
		Enabled:        true,
		MaxMessages:    10,
		TimeWindow:     10 * time.Second,
		RepeatCooldown: 1 * time.Second,
	})

	if result := guard.Check("hello world"); !result.Allowed {
		t.Error("first message should be allowed")
	}

	if result := guard.Check("hello world"); result.Allowed {
		t.Error("repeat message should be blocked")
	}

	if result := guard.Check("different message"); !result.Allowed {
		t.Error("different message should be allowed")
	}
}

func TestRepeatCooldownExpires(t *testing.T) {
	guard := NewGuard(Config{
		Enabled:        true,
		MaxMessages:    10,
		TimeWindow:     10 * time.Second,
		RepeatCooldown: 50 * time.Millisecond,
	})

	if result := guard.Check("hello"); !result.Allowed {
		t.Error("first message should be allowed")
	}

	time.Sleep(60 * time.Millisecond)

	if result := guard.Check("hello"); !result.Allowed {
		t.Error("message should be allowed after cooldown expires")
	}
}

func TestWindowExpires(t *testing.T) {
	guard := NewGuard(Config{
		Enabled:        true,
		MaxMessages:    2,
		TimeWindow:     50 * time.Millisecond,
		RepeatCooldown: 10 * time.Millisecond,
	})

	if result := guard.Check("one"); !result.Allowed {
		t.Error("first message should be allowed")
	}
	if result := guard.Check("two"); !result.Allowed {
		t.Error("second message should be allowed")
	}
	if result := guard.Check("three"); result.Allowed {
		t.Error("third message should be blocked")
	}

	time.Sleep(60 * time.Millisecond)

	if result := guard.Check("three"); !result.Allowed {
		t.Error("message should be allowed after window expires")
	}
}

func TestDisabledGuardAllowsEverything(t *testing.T) {
	guard := NewGuard(Config{Enabled: false, MaxMessages: 1, TimeWindow: time.Hour, RepeatCooldown: time.Hour})

	for i := 0; i < 10; i++ {
		if result := guard.Check("spam"); !result.Allowed {
			t.Fatal("disabled guard should allow everything")
		}
	}
}

func TestReset(t *testing.T) {
	guard := NewGuard(Config{
		Enabled:        true,
		MaxMessages:    1,
		TimeWindow:     time.Hour,
		RepeatCooldown: time.Hour,
	})

	guard.Check("one")
	if result := guard.Check("two"); result.Allowed {
		t.Error("second message should be blocked before reset")
	}

	guard.Reset()

	if result := guard.Check("two"); !result.Allowed {
		t.Error("message should be allowed after reset")
	}
}

func TestConfigFromYAML(t *testing.T) {
	cfg := ConfigFromYAML(true, 7, 20, 60)
	if !cfg.Enabled || cfg.MaxMessages != 7 || cfg.TimeWindow != 20*time.Second || cfg.RepeatCooldown != 60*time.Second {
		t.Errorf("unexpected config: %+v", cfg)
	}

	// Zero values fall back to defaults
	cfg = ConfigFromYAML(true, 0, 0, 0)
	def := DefaultConfig()
	if cfg.MaxMessages != def.MaxMessages || cfg.TimeWindow != def.TimeWindow {
		t.Errorf("zero values should fall back to defaults: %+v", cfg)
	}
}
