package httpapi

import (
	"fmt"

	"culturecore/pkg/domain"
)

// recordingPayload is the wire form of a step recording. Type selects the
// concrete recording; the remaining fields are interpreted per type.
type recordingPayload struct {
	Type              string             `json:"type" binding:"required"`
	ViabilityPercent  float64            `json:"viability_percent,omitempty"`
	CellConcentration float64            `json:"cell_concentration,omitempty"`
	Values            map[string]float64 `json:"values,omitempty"`
	MediaLot          string             `json:"media_lot,omitempty"`
	VolumeML          float64            `json:"volume_ml,omitempty"`
	TemperatureC      float64            `json:"temperature_c,omitempty"`
	CO2Percent        float64            `json:"co2_percent,omitempty"`
	SplitRatio        string             `json:"split_ratio,omitempty"`
	VialCount         int                `json:"vial_count,omitempty"`
	BankType          string             `json:"bank_type,omitempty"`
	Notes             string             `json:"notes,omitempty"`
}

func (p recordingPayload) toRecording() (domain.StepRecording, error) {
	switch domain.StepType(p.Type) {
	case domain.StepCellCounting:
		return domain.CellCountingRecording{ViabilityPercent: p.ViabilityPercent, CellConcentration: p.CellConcentration, Notes: p.Notes}, nil
	case domain.StepMeasurement:
		return domain.MeasurementRecording{Values: p.Values, Notes: p.Notes}, nil
	case domain.StepMediaChange:
		return domain.MediaChangeRecording{MediaLot: p.MediaLot, VolumeML: p.VolumeML, Notes: p.Notes}, nil
	case domain.StepIncubation:
		return domain.IncubationRecording{TemperatureC: p.TemperatureC, CO2Percent: p.CO2Percent, Notes: p.Notes}, nil
	case domain.StepObservation:
		return domain.ObservationRecording{Notes: p.Notes}, nil
	case domain.StepManipulation:
		return domain.ManipulationRecording{Notes: p.Notes}, nil
	case domain.StepPassage:
		return domain.PassageRecording{SplitRatio: p.SplitRatio, Notes: p.Notes}, nil
	case domain.StepBanking:
		return domain.BankingRecording{VialCount: p.VialCount, BankType: p.BankType, Notes: p.Notes}, nil
	default:
		return nil, fmt.Errorf("unknown recording type %q", p.Type)
	}
}
