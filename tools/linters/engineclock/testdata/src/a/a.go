package a

import "time"

type scheduler struct {
	now func() time.Time
}

func newScheduler() *scheduler {
	return &scheduler{now: func() time.Time { return time.Now().UTC() }}
}

func localClock() *scheduler {
	return &scheduler{now: func() time.Time { return time.Now() }} // want "time.Now\\(\\) in a clock func should be followed by .UTC\\(\\)"
}

func injected() *scheduler {
	return &scheduler{now: time.Now}
}

func deadline(d time.Duration) time.Time {
	return time.Now().Add(d) // want "time.Now\\(\\) bypasses the injected clock; read time through a clock func"
}

func utcOutsideClock() time.Time {
	return time.Now().UTC() // want "time.Now\\(\\) bypasses the injected clock; read time through a clock func"
}

func notAClock() func(int) time.Time {
	return func(int) time.Time { return time.Now().UTC() } // want "time.Now\\(\\) bypasses the injected clock; read time through a clock func"
}

func nested() func() time.Time {
	return func() time.Time {
		week := func() int { return time.Now().UTC().YearDay() / 7 }
		_ = week
		return time.Now().UTC()
	}
}

func nolintGeneral() {
	//nolint
	_ = time.Now()
}

func nolintSpecific() {
	_ = time.Now() //nolint:engineclock
}

func nolintOtherLinter() {
	_ = time.Now() //nolint:otherlinter // want "time.Now\\(\\) bypasses the injected clock; read time through a clock func"
}
