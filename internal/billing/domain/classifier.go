package domain

import "github.com/samber/lo"

// Classification partitions a subscriber's services by lifecycle and debt.
type Classification struct {
	Active    []ServiceRecord
	Suspended []ServiceRecord
	Withdrawn []ServiceRecord
	// ActiveOrSuspended lists active records first, then suspended ones,
	// each group in input order.
	ActiveOrSuspended []ServiceRecord
	// Actionable is ActiveOrSuspended restricted to suspended or indebted services.
	Actionable []ServiceRecord
}

// Classify partitions records. UNKNOWN records land in no group.
func Classify(records []ServiceRecord) Classification {
	var c Classification
	for _, record := range records {
		switch record.Status {
		case StatusActive:
			c.Active = append(c.Active, record)
		case StatusSuspended:
			c.Suspended = append(c.Suspended, record)
		case StatusWithdrawn:
			c.Withdrawn = append(c.Withdrawn, record)
		}
	}

	c.ActiveOrSuspended = make([]ServiceRecord, 0, len(c.Active)+len(c.Suspended))
	c.ActiveOrSuspended = append(c.ActiveOrSuspended, c.Active...)
	c.ActiveOrSuspended = append(c.ActiveOrSuspended, c.Suspended...)

	c.Actionable = lo.Filter(c.ActiveOrSuspended, func(record ServiceRecord, _ int) bool {
		return record.IsActionable()
	})

	return c
}

// NotFound reports that the subscriber has no active or suspended line.
// A withdrawn-only subscriber is treated the same as an unknown one.
func (c Classification) NotFound() bool {
	return len(c.ActiveOrSuspended) == 0
}
