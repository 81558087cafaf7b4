package streak

import (
	"testing"
	"time"
)

func TestRecordPlaySequence(t *testing.T) {
	var s State
	want := []int{1, 2, 1}
	days := []string{"2025-03-10", "2025-03-11", "2025-03-13"}
	for i, d := range days {
		s, _ = RecordPlay(s, d)
		if s.Current != want[i] {
			t.Fatalf("day %s: want current=%d got=%d", d, want[i], s.Current)
		}
	}
	if s.Longest != 2 {
		t.Fatalf("longest: want=2 got=%d", s.Longest)
	}
}

func TestRecordPlaySameDayNoop(t *testing.T) {
	s, changed := RecordPlay(State{Current: 3, Longest: 3, LastPlayedOn: "2025-03-10"}, "2025-03-10")
	if changed || s.Current != 3 {
		t.Fatalf("same-day play must be a no-op: %+v changed=%v", s, changed)
	}
}

func TestRecordPlayAcrossMonthBoundary(t *testing.T) {
	s, _ := RecordPlay(State{Current: 4, Longest: 4, LastPlayedOn: "2025-02-28"}, "2025-03-01")
	if s.Current != 5 || s.Longest != 5 {
		t.Fatalf("want 5/5 got %+v", s)
	}
}

func TestDecay(t *testing.T) {
	s := State{Current: 4, Longest: 6, LastPlayedOn: "2025-03-10"}
	if _, changed := Decay(s, "2025-03-11"); changed {
		t.Fatalf("one day gap must not decay")
	}
	got, changed := Decay(s, "2025-03-12")
	if !changed || got.Current != 0 || got.Longest != 6 {
		t.Fatalf("two day gap must zero current and keep longest: %+v", got)
	}
}

func TestClaimRewardClamps(t *testing.T) {
	table := DefaultTable()
	if r := ClaimReward(table, 3); r.XP != 15 || r.Coins != 25 {
		t.Fatalf("day 3: want xp=15 coins=25 got %+v", r)
	}
	if r := ClaimReward(table, 0); r.Day != 1 {
		t.Fatalf("streak 0 should use day 1, got %+v", r)
	}
	if r := ClaimReward(table, 40); r.Day != 7 || r.Coins != 100 {
		t.Fatalf("long streak should clamp to day 7, got %+v", r)
	}
}

func TestCanClaim(t *testing.T) {
	s := State{LastClaimedOn: "2025-03-10"}
	if CanClaim(s, "2025-03-10") {
		t.Fatalf("already claimed today")
	}
	if !CanClaim(s, "2025-03-11") {
		t.Fatalf("should be claimable the next day")
	}
}

func TestTodayUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	now := time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC)
	if got := Today(now, loc); got != "2025-03-10" {
		t.Fatalf("Today: want 2025-03-10 got %s", got)
	}
}

func TestValidateTable(t *testing.T) {
	if err := ValidateTable(DefaultTable()); err != nil {
		t.Fatalf("default table: %v", err)
	}
	if err := ValidateTable([]Reward{{Day: 2}}); err == nil {
		t.Fatalf("expected error for table not starting at day 1")
	}
}
