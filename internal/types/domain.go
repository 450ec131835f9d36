package types

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Flag values the portal understands for the opaque pass-through switches.
const (
	FlagOff = "0"
	FlagOn  = "1"
)

// PortalIDs identifies the subscriber's service on the portal. The values are
// opaque to this system and forwarded verbatim.
type PortalIDs struct {
	UserID          string `json:"user_id"`
	ServiceID       string `json:"service_id"`
	AccessCircuitID string `json:"access_circuit_id"`
	LocationID      string `json:"location_id"`
}

// RunConfig is the fully-resolved input of one automation run. It is built
// per invocation and never mutated afterwards; use WithPlanCode to derive a
// copy targeting a different plan.
type RunConfig struct {
	BaseURL  string       `json:"base_url"`
	Username string       `json:"username"`
	Password SecretString `json:"password"`

	IDs PortalIDs `json:"ids"`

	DiscountCode  string `json:"discount_code,omitempty"`
	Unpause       string `json:"unpause,omitempty"`
	Coat          string `json:"coat,omitempty"`
	Churn         string `json:"churn,omitempty"`
	ScheduledDate string `json:"scheduled_date,omitempty"`
	PaymentOption string `json:"payment_option,omitempty"`

	RequestTimeout time.Duration `json:"request_timeout"`

	// TargetPlanCode is the numeric portal plan identifier in string form. It
	// is the only plan selector; name resolution happens before construction.
	TargetPlanCode string `json:"target_plan_code"`
}

// WithPlanCode returns a copy of the config targeting the given plan code.
func (c RunConfig) WithPlanCode(code string) RunConfig {
	c.TargetPlanCode = code
	return c
}

// Validate checks the invariants that must hold before any network I/O.
func (c RunConfig) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return NewAppError(ErrCodeValidationInvalidURL,
			fmt.Sprintf("portal base address %q must be an absolute http(s) URL", c.BaseURL), err)
	}
	if c.Username == "" {
		return NewAppError(ErrCodeValidationMissingField, "portal username is required", nil)
	}
	if c.Password.IsZero() {
		return NewAppError(ErrCodeValidationMissingField, "portal password is required", nil)
	}
	if err := ValidatePlanCode(c.TargetPlanCode); err != nil {
		return err
	}
	return nil
}

// ValidatePlanCode checks that code is the string form of a positive integer.
func ValidatePlanCode(code string) error {
	if code == "" {
		return NewAppError(ErrCodeValidationMissingField, "target plan code is required", nil)
	}
	n, err := strconv.Atoi(code)
	if err != nil || n <= 0 {
		return NewAppError(ErrCodeValidationPlanCode,
			fmt.Sprintf("plan code %q must be a positive integer", code), err)
	}
	return nil
}

// RunResult is produced exactly once per engine invocation. Ownership passes
// to the caller, which decides whether to persist it.
type RunResult struct {
	ID        string        `json:"id"`
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	PlanName  string        `json:"plan_name,omitempty"`
	PlanCode  string        `json:"psid,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration_ns"`
}

// ScheduleEntry is a stored (time of day, timezone, plan) trigger rule. It is
// read-only to the scheduler.
type ScheduleEntry struct {
	ID       string `json:"id"`
	PlanName string `json:"plan_name"`
	PlanCode string `json:"plan_code"`
	Hour     int    `json:"hour"`
	Minute   int    `json:"minute"`
	Timezone string `json:"timezone"`
	Enabled  bool   `json:"enabled"`
}

// Validate enforces the storage invariants: in-range time of day, a
// resolvable IANA zone, and a numeric plan code.
func (e ScheduleEntry) Validate() error {
	if e.Hour < 0 || e.Hour > 23 {
		return NewAppError(ErrCodeValidationTimeOfDay, fmt.Sprintf("hour %d must be within 0-23", e.Hour), nil)
	}
	if e.Minute < 0 || e.Minute > 59 {
		return NewAppError(ErrCodeValidationTimeOfDay, fmt.Sprintf("minute %d must be within 0-59", e.Minute), nil)
	}
	if _, err := e.Location(); err != nil {
		return err
	}
	return ValidatePlanCode(e.PlanCode)
}

// Location resolves the entry's IANA timezone. An empty name is rejected
// rather than silently treated as UTC.
func (e ScheduleEntry) Location() (*time.Location, error) {
	if e.Timezone == "" {
		return nil, NewAppError(ErrCodeValidationTimezone, "timezone is required", nil)
	}
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, NewAppError(ErrCodeValidationTimezone,
			fmt.Sprintf("timezone %q is not a valid IANA zone", e.Timezone), err)
	}
	return loc, nil
}

// Matches reports whether the wall clock in loc reads the entry's hour and
// minute at instant now.
func (e ScheduleEntry) Matches(now time.Time, loc *time.Location) bool {
	local := now.In(loc)
	return local.Hour() == e.Hour && local.Minute() == e.Minute
}
