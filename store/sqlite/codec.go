/*
codec.go - JSON documents for the row_json columns

PURPOSE:
  The engine types deliberately carry no JSON tags for persistence; the
  wire shapes live at the boundaries that use them. These documents pin the
  stored field names so the schema survives engine-side renames.
*/
package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/comp-engine/engine"
)

type payComponentDoc struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

type providerRowDoc struct {
	ProviderID      string            `json:"provider_id,omitempty"`
	ProviderName    string            `json:"provider_name"`
	Specialty       string            `json:"specialty,omitempty"`
	Division        string            `json:"division,omitempty"`
	ProviderType    string            `json:"provider_type,omitempty"`
	BaseSalary      decimal.Decimal   `json:"base_salary"`
	Components      []payComponentDoc `json:"base_pay_components,omitempty"`
	NonClinicalPay  decimal.Decimal   `json:"non_clinical_pay"`
	TotalWRVUs      decimal.Decimal   `json:"total_wrvus"`
	OutsideWRVUs    decimal.Decimal   `json:"outside_wrvus"`
	QualityPayments decimal.Decimal   `json:"quality_payments"`
	OtherIncentives decimal.Decimal   `json:"other_incentives"`
	CurrentCF       decimal.Decimal   `json:"current_cf"`
	CurrentTCC      *decimal.Decimal  `json:"current_tcc,omitempty"`
}

func providerDoc(p engine.ProviderRow) providerRowDoc {
	doc := providerRowDoc{
		ProviderID:      p.ProviderID,
		ProviderName:    p.ProviderName,
		Specialty:       p.Specialty,
		Division:        p.Division,
		ProviderType:    p.ProviderType,
		BaseSalary:      p.BaseSalary,
		NonClinicalPay:  p.NonClinicalPay,
		TotalWRVUs:      p.TotalWRVUs,
		OutsideWRVUs:    p.OutsideWRVUs,
		QualityPayments: p.QualityPayments,
		OtherIncentives: p.OtherIncentives,
		CurrentCF:       p.CurrentCF,
		CurrentTCC:      p.CurrentTCC,
	}
	for _, c := range p.BasePayComponents {
		doc.Components = append(doc.Components, payComponentDoc{Label: c.Label, Amount: c.Amount})
	}
	return doc
}

func decodeProvider(rowJSON string) (engine.ProviderRow, error) {
	var doc providerRowDoc
	if err := json.Unmarshal([]byte(rowJSON), &doc); err != nil {
		return engine.ProviderRow{}, fmt.Errorf("failed to decode provider row: %w", err)
	}
	p := engine.ProviderRow{
		ProviderID:      doc.ProviderID,
		ProviderName:    doc.ProviderName,
		Specialty:       doc.Specialty,
		Division:        doc.Division,
		ProviderType:    doc.ProviderType,
		BaseSalary:      doc.BaseSalary,
		NonClinicalPay:  doc.NonClinicalPay,
		TotalWRVUs:      doc.TotalWRVUs,
		OutsideWRVUs:    doc.OutsideWRVUs,
		QualityPayments: doc.QualityPayments,
		OtherIncentives: doc.OtherIncentives,
		CurrentCF:       doc.CurrentCF,
		CurrentTCC:      doc.CurrentTCC,
	}
	for _, c := range doc.Components {
		p.BasePayComponents = append(p.BasePayComponents, engine.PayComponent{Label: c.Label, Amount: c.Amount})
	}
	return p, nil
}

type bandDoc struct {
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

type marketRowDoc struct {
	Specialty    string  `json:"specialty"`
	ProviderType string  `json:"provider_type,omitempty"`
	Region       string  `json:"region,omitempty"`
	TCC          bandDoc `json:"tcc"`
	WRVU         bandDoc `json:"wrvu"`
	CF           bandDoc `json:"cf"`
}

func marketDoc(m engine.MarketRow) marketRowDoc {
	return marketRowDoc{
		Specialty:    m.Specialty,
		ProviderType: m.ProviderType,
		Region:       m.Region,
		TCC:          bandDoc(m.TCC),
		WRVU:         bandDoc(m.WRVU),
		CF:           bandDoc(m.CF),
	}
}

func decodeMarket(rowJSON string) (engine.MarketRow, error) {
	var doc marketRowDoc
	if err := json.Unmarshal([]byte(rowJSON), &doc); err != nil {
		return engine.MarketRow{}, fmt.Errorf("failed to decode market row: %w", err)
	}
	return engine.MarketRow{
		Specialty:    doc.Specialty,
		ProviderType: doc.ProviderType,
		Region:       doc.Region,
		TCC:          engine.Band(doc.TCC),
		WRVU:         engine.Band(doc.WRVU),
		CF:           engine.Band(doc.CF),
	}, nil
}
