package services

import (
	"time"

	"auction-monitor/internal/domain"
)

// TimeScheduler schedules callbacks on the wall clock.
type TimeScheduler struct{}

func NewTimeScheduler() *TimeScheduler {
	return &TimeScheduler{}
}

func (s *TimeScheduler) AfterFunc(d time.Duration, f func()) domain.Timer {
	return time.AfterFunc(d, f)
}
