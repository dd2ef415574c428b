package clock

import "time"

// Clock is the single source of time for services. Tests substitute a fixed
// or steppable implementation so token expiry and trip durations are
// deterministic.
type Clock interface {
	Now() time.Time
}
