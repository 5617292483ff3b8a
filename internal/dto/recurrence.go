package dto

import (
	"time"

	"example.com/backstage/invoicing/internal/recurrence"

	"github.com/pkg/errors"
)

// RunRecurrenceRequest triggers a pass. AsOf accepts RFC 3339 or a plain
// date and defaults to now.
type RunRecurrenceRequest struct {
	AsOf string `json:"as_of"`
}

// ToAsOf returns the reference instant of the pass
func (r *RunRecurrenceRequest) ToAsOf() (time.Time, error) {
	if r.AsOf == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, r.AsOf); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(DateLayout, r.AsOf); err == nil {
		return t, nil
	}
	return time.Time{}, errors.Wrapf(ErrInvalidRequest, "invalid as_of %q", r.AsOf)
}

type FailureResponse struct {
	SeedID string `json:"seed_id"`
	Error  string `json:"error"`
}

type PassResultResponse struct {
	AsOf      time.Time         `json:"as_of"`
	Generated int               `json:"generated"`
	Skipped   int               `json:"skipped"`
	Numbers   []string          `json:"numbers"`
	Failures  []FailureResponse `json:"failures"`
	Locked    bool              `json:"locked"`
}

func NewPassResultResponse(r *recurrence.PassResult) *PassResultResponse {
	resp := &PassResultResponse{
		AsOf:      r.AsOf,
		Generated: r.Generated,
		Skipped:   r.Skipped,
		Numbers:   r.Numbers,
		Failures:  make([]FailureResponse, 0, len(r.Failures)),
		Locked:    r.Locked,
	}
	if resp.Numbers == nil {
		resp.Numbers = []string{}
	}
	for _, f := range r.Failures {
		resp.Failures = append(resp.Failures, FailureResponse{SeedID: f.SeedID.String(), Error: f.Err.Error()})
	}
	return resp
}
