package hermes

import "time"

type EvaluationCompletedEvent struct {
	EvaluationID       string   `json:"evaluation_id"`
	CompanyName        string   `json:"company_name"`
	Ticker             string   `json:"ticker,omitempty"`
	FinalRiskScore     float64  `json:"final_risk_score"`
	FinancialRiskScore float64  `json:"financial_risk_score"`
	RepaymentRiskScore float64  `json:"repayment_risk_score"`
	LtCRatio           *float64 `json:"ltc_ratio"`
	PopulationSize     int      `json:"population_size"`
}

type EvaluationFailedEvent struct {
	EvaluationID string `json:"evaluation_id"`
	CompanyName  string `json:"company_name"`
	Ticker       string `json:"ticker,omitempty"`
	Reason       string `json:"reason"`
	Error        string `json:"error"`
}

type PopulationReloadedEvent struct {
	Source    string    `json:"source"`
	Records   int       `json:"records"`
	Timestamp time.Time `json:"timestamp"`
}

type PopulationInvalidateEvent struct {
	Origin    string    `json:"origin,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
