package domain

import (
	"math"
	"time"
)

type ReminderKind string

const (
	ReminderCommitDeadline ReminderKind = "commit_deadline"
	ReminderCollection     ReminderKind = "collection_reminder"
)

// Reminder is an order approaching one of its deadlines.
type Reminder struct {
	Kind     ReminderKind
	Order    Order
	Deadline time.Time
}

// Recipient is the seller for commit reminders and the buyer for collection reminders.
func (r Reminder) Recipient() string {
	if r.Kind == ReminderCollection {
		return r.Order.BuyerID
	}
	return r.Order.SellerID
}

// HoursUntil rounds the time left to the nearest hour, never below zero.
func HoursUntil(deadline, now time.Time) int {
	h := math.Round(deadline.Sub(now).Hours())
	if h < 0 {
		return 0
	}
	return int(h)
}
