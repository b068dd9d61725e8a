package staking

import (
	"testing"
	"time"
)

func TestStakeTimeLeft(t *testing.T) {
	s := stakeAt(1, epoch, 3)
	end := s.End()

	tests := []struct {
		now  time.Time
		want string
	}{
		{end, "Ready to claim"},
		{end.Add(time.Hour), "Ready to claim"},
		{epoch, "3d 0h left"},
		{end.Add(-(26*time.Hour + 5*time.Minute)), "1d 2h left"},
		{end.Add(-5 * time.Hour), "5h left"},
		{end.Add(-59 * time.Minute), "< 1h left"},
	}
	for _, tt := range tests {
		if got := s.TimeLeft(tt.now); got != tt.want {
			t.Errorf("TimeLeft(end%+v) = %q, want %q", tt.now.Sub(end), got, tt.want)
		}
	}
}

func TestStakeClaimability(t *testing.T) {
	s := stakeAt(5, epoch, 1)

	if s.IsClaimable(epoch) {
		t.Error("locked stake reported claimable")
	}
	if !s.IsPowerActive(epoch) {
		t.Error("locked stake should carry active power")
	}
	if !s.IsClaimable(s.End()) {
		t.Error("stake should be claimable exactly at its end time")
	}
	if s.IsPowerActive(s.End()) {
		t.Error("matured stake should not carry active power")
	}

	s.Claimed = true
	if s.IsClaimable(s.End().Add(time.Hour)) || s.IsPowerActive(epoch) {
		t.Error("claimed stake must be neither claimable nor active")
	}
}

func TestStakeMatches(t *testing.T) {
	a := stakeAt(5, epoch, 10)
	b := a
	b.Index = 7
	b.Claimed = true
	if !a.Matches(b) {
		t.Error("index and claimed flag must not affect matching")
	}

	c := stakeAt(6, epoch, 10)
	if a.Matches(c) {
		t.Error("different amounts matched")
	}
	d := stakeAt(5, epoch.Add(time.Second), 10)
	if a.Matches(d) {
		t.Error("different start times matched")
	}
	if got := a.DurationDays(); got != 10 {
		t.Errorf("DurationDays() = %d, want 10", got)
	}
}
