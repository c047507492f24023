package drive

import "time"

// Config holds drive tuning and timing. Zero fields take DefaultConfig values.
type Config struct {
	Accel float64
	Decel float64
	// GearRatio converts encoder counts to motor steps.
	GearRatio float64

	JogVelocity  float64
	MoveVelocity float64
	MinVelocity  float64
	MaxVelocity  float64

	CommandTimeout time.Duration
	SettleDelay    time.Duration
	StopSettle     time.Duration

	JogLockout   time.Duration
	MoveInterval time.Duration
	MotionWindow time.Duration

	FastPollInterval time.Duration
	IdlePollInterval time.Duration
	FullRefreshEvery int
	PollStopWait     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Accel:            10.0,
		Decel:            10.0,
		GearRatio:        2.5,
		JogVelocity:      2.0,
		MoveVelocity:     1.5,
		MinVelocity:      0.1,
		MaxVelocity:      20.0,
		CommandTimeout:   time.Second,
		SettleDelay:      10 * time.Millisecond,
		StopSettle:       50 * time.Millisecond,
		JogLockout:       500 * time.Millisecond,
		MoveInterval:     500 * time.Millisecond,
		MotionWindow:     3 * time.Second,
		FastPollInterval: 30 * time.Millisecond,
		IdlePollInterval: 150 * time.Millisecond,
		FullRefreshEvery: 5,
		PollStopWait:     2 * time.Second,
	}
}

func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	setF := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	setD := func(v *time.Duration, def time.Duration) {
		if *v <= 0 {
			*v = def
		}
	}
	setF(&c.Accel, d.Accel)
	setF(&c.Decel, d.Decel)
	setF(&c.GearRatio, d.GearRatio)
	setF(&c.JogVelocity, d.JogVelocity)
	setF(&c.MoveVelocity, d.MoveVelocity)
	setF(&c.MinVelocity, d.MinVelocity)
	setF(&c.MaxVelocity, d.MaxVelocity)
	setD(&c.CommandTimeout, d.CommandTimeout)
	setD(&c.SettleDelay, d.SettleDelay)
	setD(&c.StopSettle, d.StopSettle)
	setD(&c.JogLockout, d.JogLockout)
	setD(&c.MoveInterval, d.MoveInterval)
	setD(&c.MotionWindow, d.MotionWindow)
	setD(&c.FastPollInterval, d.FastPollInterval)
	setD(&c.IdlePollInterval, d.IdlePollInterval)
	setD(&c.PollStopWait, d.PollStopWait)
	if c.FullRefreshEvery <= 0 {
		c.FullRefreshEvery = d.FullRefreshEvery
	}
	return c
}

// Clock abstracts wall time so guards and cadence can be tested.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }
