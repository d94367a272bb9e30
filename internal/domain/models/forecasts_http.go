package models

// Requests for the forecast HTTP endpoints. Defined in domain for consistency and reuse.

type ForecastRequest struct {
	Granularity string `query:"granularity" json:"granularity" default:"daily" validate:"oneof=hourly daily weekly monthly"`
	From        string `query:"from" json:"from" validate:"omitempty"`
	To          string `query:"to" json:"to" validate:"omitempty"`
	Limit       int    `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=50000"`
}

type EvaluationRequest struct {
	Granularity string `query:"granularity" json:"granularity" default:"daily" validate:"oneof=hourly daily weekly monthly"`
}
