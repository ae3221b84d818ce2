package pattern

import (
	"math"
	"testing"
	"time"
)

// monday is a Monday evening; adding whole days walks through the week.
var monday = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func session(day, hour, minute int, hours float64, confident bool) Session {
	bed := monday.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	return Session{
		Bedtime:       bed,
		WakeTime:      bed.Add(time.Duration(hours * float64(time.Hour))),
		DurationHours: hours,
		Confident:     confident,
	}
}

func TestFirstSampleInitializesDirectly(t *testing.T) {
	m := New(WithLocation(time.UTC))
	m.Update(session(0, 23, 10, 7, false))

	if got := m.ExpectedBedtime(int(time.Monday)); got != 23*60+10 {
		t.Errorf("ExpectedBedtime = %d, want %d", got, 23*60+10)
	}
	if got := m.AverageDuration(); got != 7 {
		t.Errorf("AverageDuration = %v, want 7", got)
	}

	// A different weekday's first sample also starts from the sample.
	m.Update(session(1, 22, 0, 9, false))
	if got := m.ExpectedBedtime(int(time.Tuesday)); got != 22*60 {
		t.Errorf("Tuesday ExpectedBedtime = %d, want %d", got, 22*60)
	}
	if got := m.AverageDuration(); math.Abs(got-7.2) > 1e-9 {
		t.Errorf("AverageDuration = %v, want 7.2", got)
	}
}

func TestMovingAverage(t *testing.T) {
	m := New(WithLocation(time.UTC))
	m.Update(session(0, 23, 10, 8, false))
	m.Update(session(7, 23, 50, 8, false))

	// 1390*0.9 + 1430*0.1 = 1394
	if got := m.ExpectedBedtime(int(time.Monday)); got != 1394 {
		t.Errorf("ExpectedBedtime = %d, want 1394", got)
	}
}

func TestMovingAverageAcrossMidnight(t *testing.T) {
	m := New(WithLocation(time.UTC))
	m.Update(session(0, 23, 50, 8, false))
	// Ten past midnight on the next Monday counts as 24:10 for averaging.
	m.Update(Session{
		Bedtime:       monday.AddDate(0, 0, 7).Add(23*time.Hour + 50*time.Minute),
		WakeTime:      monday.AddDate(0, 0, 8).Add(8 * time.Hour),
		DurationHours: 8.3,
	})
	m.Update(Session{
		Bedtime:       monday.AddDate(0, 0, 14).Add(10 * time.Minute), // Monday 00:10
		WakeTime:      monday.AddDate(0, 0, 14).Add(8 * time.Hour),
		DurationHours: 7.8,
	})

	got := m.ExpectedBedtime(int(time.Monday))
	if got < 23*60+45 || got > 23*60+59 {
		t.Errorf("ExpectedBedtime = %d, want close to 23:52 rather than pulled toward noon", got)
	}
}

func TestInvalidSessionsIgnored(t *testing.T) {
	m := New(WithLocation(time.UTC))
	m.Update(session(0, 23, 0, 0.5, true))
	m.Update(session(0, 23, 0, 25, true))
	m.Update(Session{Bedtime: monday, DurationHours: 8})

	if m.Sessions() != 0 {
		t.Errorf("Sessions = %d, want 0", m.Sessions())
	}
	if m.Snapshot().Days[time.Monday].Confidence != 0 {
		t.Error("invalid sessions must not raise confidence")
	}
}

func TestConfidenceWeightCapped(t *testing.T) {
	m := New(WithLocation(time.UTC))
	for i := range 5000 {
		m.Update(session(i*7, 23, 0, 8, true))
	}
	got := m.Snapshot().Days[time.Monday].Confidence
	if got > 1.0 {
		t.Fatalf("confidence weight %v exceeds 1.0", got)
	}
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("confidence weight %v, want 1.0 after many confident sessions", got)
	}
}

func TestConfidenceOnlyFromConfidentSessions(t *testing.T) {
	m := New(WithLocation(time.UTC))
	m.Update(session(0, 23, 0, 8, false))
	m.Update(session(7, 23, 0, 8, true))
	if got := m.Snapshot().Days[time.Monday].Confidence; math.Abs(got-0.05) > 1e-9 {
		t.Errorf("confidence = %v, want 0.05", got)
	}
}

func TestScheduleRegularity(t *testing.T) {
	m := New(WithLocation(time.UTC))

	// A week of 23:30 bedtimes.
	for day := range 7 {
		m.Update(session(day, 23, 30, 8, true))
	}
	if m.Regularity() != 0 {
		t.Errorf("regularity computed before 8 sessions: %v", m.Regularity())
	}

	m.Update(session(7, 23, 30, 8, true))
	before := m.Regularity()
	t.Logf("regularity after 8 regular nights: %.3f", before)
	if before < 0.99 {
		t.Errorf("regularity = %v, want close to 1.0", before)
	}

	// One night out until 3am on Wednesday morning.
	m.Update(Session{
		Bedtime:       monday.AddDate(0, 0, 9).Add(3 * time.Hour),
		WakeTime:      monday.AddDate(0, 0, 9).Add(10 * time.Hour),
		DurationHours: 7,
		Confident:     true,
	})
	after := m.Regularity()
	t.Logf("regularity after outlier: %.3f", after)
	if after >= before-0.01 {
		t.Errorf("regularity should drop after an outlier: before=%v after=%v", before, after)
	}
}

func TestMatch(t *testing.T) {
	t.Run("untrained matcher scores on duration only", func(t *testing.T) {
		m := New(WithLocation(time.UTC))
		s := session(0, 23, 0, 8, false)
		if got := m.Match(s.Bedtime, s.WakeTime); math.Abs(got-1.0) > 1e-9 {
			t.Errorf("Match = %v, want 1.0", got)
		}
		s = session(0, 23, 0, 4, false)
		if got := m.Match(s.Bedtime, s.WakeTime); math.Abs(got-0.5) > 1e-9 {
			t.Errorf("Match = %v, want 0.5", got)
		}
	})

	t.Run("trained matcher weighs bedtime and wake", func(t *testing.T) {
		m := New(WithLocation(time.UTC))
		for week := range 20 {
			m.Update(session(week*7, 23, 0, 8, true))
		}
		s := session(140, 23, 0, 8, false)
		if got := m.Match(s.Bedtime, s.WakeTime); math.Abs(got-1.0) > 1e-9 {
			t.Errorf("matching night scored %v, want 1.0", got)
		}

		// Two hours late on both ends: only the duration still fits.
		lateBed := monday.AddDate(0, 0, 140).Add(time.Hour) // Monday 01:00
		if got := m.Match(lateBed, lateBed.Add(8*time.Hour)); math.Abs(got-1.0/3) > 1e-9 {
			t.Errorf("late night scored %v, want 1/3", got)
		}
	})

	t.Run("score stays in range", func(t *testing.T) {
		m := New(WithLocation(time.UTC))
		s := session(0, 12, 0, 23, false)
		if got := m.Match(s.Bedtime, s.WakeTime); got < 0 || got > 1 {
			t.Errorf("Match = %v out of range", got)
		}
	})
}

func TestIsLikelySleepTime(t *testing.T) {
	m := New(WithLocation(time.UTC))
	for week := range 7 {
		m.Update(session(week*7, 23, 0, 8, true)) // Monday weight reaches 0.35
	}

	now := monday.AddDate(0, 0, 49).Add(23 * time.Hour) // a Monday 23:00
	if !m.IsLikelySleepTime(now, now.Add(-150*time.Minute)) {
		t.Error("expected likely sleep time at usual bedtime after 2.5 quiet hours")
	}
	if m.IsLikelySleepTime(now, now.Add(-time.Hour)) {
		t.Error("one quiet hour is not enough")
	}
	if m.IsLikelySleepTime(now.Add(-8*time.Hour), now.Add(-11*time.Hour)) {
		t.Error("15:00 is far from the usual bedtime")
	}

	tuesday := now.Add(24 * time.Hour)
	if m.IsLikelySleepTime(tuesday, tuesday.Add(-3*time.Hour)) {
		t.Error("Tuesday has no learned confidence")
	}
}

func TestExpectedBedtimeDefaults(t *testing.T) {
	m := New()
	for _, day := range []int{-1, 7, 100} {
		if got := m.ExpectedBedtime(day); got != 1410 {
			t.Errorf("ExpectedBedtime(%d) = %d, want 1410", day, got)
		}
	}
	if got := m.ExpectedBedtime(3); got != 1410 {
		t.Errorf("untrained ExpectedBedtime = %d, want 1410", got)
	}
}

func TestSnapshotRestore(t *testing.T) {
	m := New(WithLocation(time.UTC))
	for day := range 10 {
		m.Update(session(day, 23, 45, 7.5, day%2 == 0))
	}
	snap := m.Snapshot()

	restored := New(WithLocation(time.UTC))
	restored.Restore(snap)
	if got := restored.Snapshot(); got != snap {
		t.Errorf("restored model differs:\n got %+v\nwant %+v", got, snap)
	}
}
