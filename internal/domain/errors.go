package domain

import "fmt"

// DataQualityError reports a malformed or implausible input series: too many
// null/negative points, a gap in the hourly grid, or a maximum price so low
// it signals a unit-conversion defect upstream. Fatal to the pillar that
// raised it, never to the whole run.
type DataQualityError struct {
	Pillar string
	Reason string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("%s: data quality: %s", e.Pillar, e.Reason)
}

// InsufficientDataError reports too little history to model. The pillar is
// downgraded and recorded as insufficient-data.
type InsufficientDataError struct {
	Pillar string
	Have   int
	Need   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: have %d points, need %d", e.Pillar, e.Have, e.Need)
}

// ModelFitError reports a numerical fit failure (singular system, non-finite
// coefficients). The pillar is downgraded; callers must fall back to "no
// forecast available" rather than emit a zero-confidence forecast.
type ModelFitError struct {
	Order  ModelOrder
	Reason string
}

func (e *ModelFitError) Error() string {
	return fmt.Sprintf("model fit %s: %s", e.Order, e.Reason)
}

// CacheUnavailableError reports unreadable or unwritable artifact storage.
// Non-fatal: callers treat it as a miss, recompute and log the degradation.
type CacheUnavailableError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheUnavailableError) Error() string {
	return fmt.Sprintf("cache unavailable: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheUnavailableError) Unwrap() error { return e.Err }
