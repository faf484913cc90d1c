// Package clock supplies the one System implementation of every bounded
// context's own narrow Clock port (all `Now() time.Time`), so a production
// wiring doesn't need a bespoke struct per service.
package clock

import "time"

type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }
