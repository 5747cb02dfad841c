package store

import (
	"encoding/json"
	"testing"

	"github.com/MikeSquared-Agency/RiskScore/internal/scoring"
)

func TestEvaluationFilterDefaults(t *testing.T) {
	f := EvaluationFilter{}
	if f.Limit != 0 {
		t.Errorf("expected 0 default limit, got %d", f.Limit)
	}
	if f.Company != "" {
		t.Error("expected empty company filter")
	}
}

func TestEvaluationJSONKeepsNullLtC(t *testing.T) {
	e := Evaluation{CompanyName: "Acme", Ratios: scoring.Record{scoring.FieldDebtEquity: nil}}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	v, ok := raw["ltc_ratio"]
	if !ok {
		t.Fatal("expected ltc_ratio key to be present")
	}
	if v != nil {
		t.Errorf("expected null ltc_ratio, got %v", v)
	}
	ratios := raw["ratios"].(map[string]interface{})
	if _, ok := ratios[scoring.FieldDebtEquity]; !ok {
		t.Error("expected null ratio to be serialized")
	}
}
