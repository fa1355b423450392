package sqlite

import "time"

// Migrations returns every historical schema step, oldest first.
func Migrations() []Migration {
	return []Migration{
		migration4To5{},
		migration5To6{now: time.Now},
		migration6To7{},
		migration7To8{},
	}
}
