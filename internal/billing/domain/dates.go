package domain

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// ISODateLayout is the layout used for calendar dates on the wire.
	ISODateLayout = "2006-01-02"
	// DisplayDateLayout is the layout used for dates inside narratives.
	DisplayDateLayout = "02/01/2006"

	firstOfMonthGraceDays = 6
	defaultGraceDays      = 3
	maxPaymentDay         = 28
)

var (
	isoDatePattern = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})(?:[T ].*)?$`)
	dmyDatePattern = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
)

// CalendarDate truncates t to midnight UTC of the same wall-clock day.
// Convert t to the billing time zone before calling.
func CalendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseFlexibleDate accepts YYYY-MM-DD (optionally followed by a time
// component, which is ignored) and DD/MM/YYYY. Any other shape, or an
// impossible calendar day, yields false.
func ParseFlexibleDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	if m := dmyDatePattern.FindStringSubmatch(s); m != nil {
		return buildDate(m[3], m[2], m[1])
	}
	return time.Time{}, false
}

func buildDate(yearStr, monthStr, dayStr string) (time.Time, bool) {
	year, _ := strconv.Atoi(yearStr)
	month, _ := strconv.Atoi(monthStr)
	day, _ := strconv.Atoi(dayStr)

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (Feb 30 -> Mar 1); reject those.
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return time.Time{}, false
	}
	return date, true
}

// GraceDays returns the grace window for a due date: invoices due on the 1st
// get 6 days, every other day of the month gets 3.
func GraceDays(due time.Time) int {
	if due.Day() == 1 {
		return firstOfMonthGraceDays
	}
	return defaultGraceDays
}

// CutoffFor returns the service-cutoff date for a parsed due date.
func CutoffFor(due time.Time) time.Time {
	return due.AddDate(0, 0, GraceDays(due))
}

// ComputeCutoff parses dueDate and returns due date plus grace days.
func ComputeCutoff(dueDate string) (time.Time, bool) {
	due, ok := ParseFlexibleDate(dueDate)
	if !ok {
		return time.Time{}, false
	}
	return CutoffFor(due), true
}

// ComputeNextDueFromPaymentDay returns the soonest occurrence of dayOfMonth
// that is not before today. Days 29-31 are rejected.
func ComputeNextDueFromPaymentDay(dayOfMonth int, today time.Time) (time.Time, bool) {
	if dayOfMonth < 1 || dayOfMonth > maxPaymentDay {
		return time.Time{}, false
	}

	today = CalendarDate(today)
	candidate := time.Date(today.Year(), today.Month(), dayOfMonth, 0, 0, 0, 0, time.UTC)
	if candidate.Before(today) {
		candidate = time.Date(today.Year(), today.Month()+1, dayOfMonth, 0, 0, 0, 0, time.UTC)
	}
	return candidate, true
}

// DueDateSource names where a resolved due date came from.
type DueDateSource string

const (
	DueDateFromRecord     DueDateSource = "record"
	DueDateFromInvoices   DueDateSource = "invoices"
	DueDateFromPaymentDay DueDateSource = "payment_day"
	DueDateUnknown        DueDateSource = "unknown"
)

// DueDateResolution is the outcome of the due-date lookup chain for one service.
// LookupErr records an absorbed collaborator failure; it never makes the
// resolution fail.
type DueDateResolution struct {
	Date      time.Time
	Source    DueDateSource
	LookupErr error
}

// Known reports whether a due date was found.
func (r DueDateResolution) Known() bool {
	return r.Source != DueDateUnknown && r.Source != ""
}

// Cutoff returns the cutoff date when the due date is known.
func (r DueDateResolution) Cutoff() (time.Time, bool) {
	if !r.Known() {
		return time.Time{}, false
	}
	return CutoffFor(r.Date), true
}

// RecordDueDate resolves a due date from the record's own billing fields only.
func RecordDueDate(record ServiceRecord) DueDateResolution {
	for _, raw := range []string{record.Billing.DueDate, record.Billing.NextPaymentDate} {
		if due, ok := ParseFlexibleDate(raw); ok {
			return DueDateResolution{Date: due, Source: DueDateFromRecord}
		}
	}
	return DueDateResolution{Source: DueDateUnknown}
}

// UnpaidInvoiceSource lists a service's unpaid invoices.
type UnpaidInvoiceSource interface {
	UnpaidInvoices(ctx context.Context, serviceID string) ([]Invoice, error)
}

// ResolveDueDate runs the due-date chain for one service: explicit billing
// fields first, then the earliest unpaid invoice, then the payment day of
// month. The first source yielding a date wins. invoices may be nil.
func ResolveDueDate(ctx context.Context, record ServiceRecord, invoices UnpaidInvoiceSource, today time.Time) DueDateResolution {
	if resolution := RecordDueDate(record); resolution.Known() {
		return resolution
	}

	var lookupErr error
	if invoices != nil && strings.TrimSpace(record.ID) != "" {
		unpaid, err := invoices.UnpaidInvoices(ctx, record.ID)
		if err != nil {
			lookupErr = err
		} else if due, ok := EarliestDueDate(unpaid); ok {
			return DueDateResolution{Date: due, Source: DueDateFromInvoices}
		}
	}

	if due, ok := ComputeNextDueFromPaymentDay(record.Billing.PaymentDayOfMonth, today); ok {
		return DueDateResolution{Date: due, Source: DueDateFromPaymentDay, LookupErr: lookupErr}
	}

	return DueDateResolution{Source: DueDateUnknown, LookupErr: lookupErr}
}

// EarliestDueDate returns the earliest parseable due date among invoices.
func EarliestDueDate(invoices []Invoice) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, invoice := range invoices {
		due, ok := ParseFlexibleDate(invoice.DueDate)
		if !ok {
			continue
		}
		if !found || due.Before(earliest) {
			earliest = due
			found = true
		}
	}
	return earliest, found
}
