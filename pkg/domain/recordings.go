package domain

import "fmt"

// Recorded parameter names shared between recordings and CCA rules.
const (
	ParamViabilityPercent  = "viability_percent"
	ParamCellConcentration = "cell_concentration"
	ParamVolumeML          = "volume_ml"
	ParamTemperatureC      = "temperature_c"
	ParamCO2Percent        = "co2_percent"
)

// StepRecording is the typed result an operator submits when completing a
// step. Concrete recordings validate their fields at the boundary and flatten
// to a parameter map for persistence and CCA evaluation.
type StepRecording interface {
	StepType() StepType
	Parameters() map[string]float64
	Validate() error
}

// CellCountingRecording carries the measurements of a cell-counting step.
type CellCountingRecording struct {
	ViabilityPercent  float64
	CellConcentration float64
	Notes             string
}

// StepType implements StepRecording.
func (CellCountingRecording) StepType() StepType { return StepCellCounting }

// Parameters implements StepRecording.
func (r CellCountingRecording) Parameters() map[string]float64 {
	params := map[string]float64{ParamViabilityPercent: r.ViabilityPercent}
	if r.CellConcentration > 0 {
		params[ParamCellConcentration] = r.CellConcentration
	}
	return params
}

// Validate implements StepRecording.
func (r CellCountingRecording) Validate() error {
	if r.ViabilityPercent < 0 || r.ViabilityPercent > 100 {
		return fmt.Errorf("viability_percent %v out of range 0-100", r.ViabilityPercent)
	}
	if r.CellConcentration < 0 {
		return fmt.Errorf("cell_concentration %v must be non-negative", r.CellConcentration)
	}
	return nil
}

// MeasurementRecording carries free-form named measurements.
type MeasurementRecording struct {
	Values map[string]float64
	Notes  string
}

// StepType implements StepRecording.
func (MeasurementRecording) StepType() StepType { return StepMeasurement }

// Parameters implements StepRecording.
func (r MeasurementRecording) Parameters() map[string]float64 {
	params := make(map[string]float64, len(r.Values))
	for k, v := range r.Values {
		params[k] = v
	}
	return params
}

// Validate implements StepRecording.
func (r MeasurementRecording) Validate() error {
	for name := range r.Values {
		if name == "" {
			return fmt.Errorf("measurement parameter name must not be empty")
		}
	}
	return nil
}

// MediaChangeRecording records a media exchange.
type MediaChangeRecording struct {
	MediaLot string
	VolumeML float64
	Notes    string
}

// StepType implements StepRecording.
func (MediaChangeRecording) StepType() StepType { return StepMediaChange }

// Parameters implements StepRecording.
func (r MediaChangeRecording) Parameters() map[string]float64 {
	return map[string]float64{ParamVolumeML: r.VolumeML}
}

// Validate implements StepRecording.
func (r MediaChangeRecording) Validate() error {
	if r.MediaLot == "" {
		return fmt.Errorf("media lot is required")
	}
	if r.VolumeML <= 0 {
		return fmt.Errorf("volume_ml %v must be positive", r.VolumeML)
	}
	return nil
}

// IncubationRecording records observed incubation conditions.
type IncubationRecording struct {
	TemperatureC float64
	CO2Percent   float64
	Notes        string
}

// StepType implements StepRecording.
func (IncubationRecording) StepType() StepType { return StepIncubation }

// Parameters implements StepRecording.
func (r IncubationRecording) Parameters() map[string]float64 {
	return map[string]float64{
		ParamTemperatureC: r.TemperatureC,
		ParamCO2Percent:   r.CO2Percent,
	}
}

// Validate implements StepRecording.
func (r IncubationRecording) Validate() error {
	if r.CO2Percent < 0 || r.CO2Percent > 100 {
		return fmt.Errorf("co2_percent %v out of range 0-100", r.CO2Percent)
	}
	return nil
}

// ObservationRecording records a free-form visual check.
type ObservationRecording struct {
	Notes string
}

// StepType implements StepRecording.
func (ObservationRecording) StepType() StepType { return StepObservation }

// Parameters implements StepRecording.
func (ObservationRecording) Parameters() map[string]float64 { return nil }

// Validate implements StepRecording.
func (r ObservationRecording) Validate() error {
	if r.Notes == "" {
		return fmt.Errorf("observation notes are required")
	}
	return nil
}

// ManipulationRecording records a physical manipulation without measurements.
type ManipulationRecording struct {
	Notes string
}

// StepType implements StepRecording.
func (ManipulationRecording) StepType() StepType { return StepManipulation }

// Parameters implements StepRecording.
func (ManipulationRecording) Parameters() map[string]float64 { return nil }

// Validate implements StepRecording.
func (ManipulationRecording) Validate() error { return nil }

// PassageRecording records the in-process bookkeeping of a passage step. The
// container mutation itself runs through the lineage operations, not here.
type PassageRecording struct {
	SplitRatio string
	Notes      string
}

// StepType implements StepRecording.
func (PassageRecording) StepType() StepType { return StepPassage }

// Parameters implements StepRecording.
func (PassageRecording) Parameters() map[string]float64 { return nil }

// Validate implements StepRecording.
func (r PassageRecording) Validate() error {
	if r.SplitRatio == "" {
		return fmt.Errorf("split ratio is required")
	}
	return nil
}

// BankingRecording records the in-process bookkeeping of a banking step.
type BankingRecording struct {
	VialCount int
	BankType  string
	Notes     string
}

// StepType implements StepRecording.
func (BankingRecording) StepType() StepType { return StepBanking }

// Parameters implements StepRecording.
func (r BankingRecording) Parameters() map[string]float64 {
	return map[string]float64{"vial_count": float64(r.VialCount)}
}

// Validate implements StepRecording.
func (r BankingRecording) Validate() error {
	if r.VialCount <= 0 {
		return fmt.Errorf("vial count %d must be positive", r.VialCount)
	}
	return nil
}

// RecordingNotes extracts the operator notes from any known recording type.
func RecordingNotes(rec StepRecording) string {
	switch r := rec.(type) {
	case CellCountingRecording:
		return r.Notes
	case MeasurementRecording:
		return r.Notes
	case MediaChangeRecording:
		return r.Notes
	case IncubationRecording:
		return r.Notes
	case ObservationRecording:
		return r.Notes
	case ManipulationRecording:
		return r.Notes
	case PassageRecording:
		return r.Notes
	case BankingRecording:
		return r.Notes
	default:
		return ""
	}
}
