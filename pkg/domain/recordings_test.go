package domain

import "testing"

func TestCellCountingRecordingValidate(t *testing.T) {
	cases := []struct {
		name    string
		rec     CellCountingRecording
		wantErr bool
	}{
		{name: "valid", rec: CellCountingRecording{ViabilityPercent: 92.5, CellConcentration: 1.2e6}},
		{name: "viability over 100", rec: CellCountingRecording{ViabilityPercent: 104}, wantErr: true},
		{name: "negative viability", rec: CellCountingRecording{ViabilityPercent: -1}, wantErr: true},
		{name: "negative concentration", rec: CellCountingRecording{ViabilityPercent: 90, CellConcentration: -5}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rec.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestCellCountingRecordingParameters(t *testing.T) {
	params := CellCountingRecording{ViabilityPercent: 85, CellConcentration: 2e5}.Parameters()
	if params[ParamViabilityPercent] != 85 {
		t.Fatalf("viability not flattened: %v", params)
	}
	if params[ParamCellConcentration] != 2e5 {
		t.Fatalf("concentration not flattened: %v", params)
	}

	// Zero concentration means "not measured" and must not surface as a parameter.
	params = CellCountingRecording{ViabilityPercent: 85}.Parameters()
	if _, ok := params[ParamCellConcentration]; ok {
		t.Fatalf("unmeasured concentration should be absent: %v", params)
	}
}

func TestRecordingValidation(t *testing.T) {
	cases := []struct {
		name    string
		rec     StepRecording
		wantErr bool
	}{
		{name: "media change valid", rec: MediaChangeRecording{MediaLot: "LOT-22", VolumeML: 30}},
		{name: "media change missing lot", rec: MediaChangeRecording{VolumeML: 30}, wantErr: true},
		{name: "media change zero volume", rec: MediaChangeRecording{MediaLot: "LOT-22"}, wantErr: true},
		{name: "incubation valid", rec: IncubationRecording{TemperatureC: 37, CO2Percent: 5}},
		{name: "incubation co2 out of range", rec: IncubationRecording{TemperatureC: 37, CO2Percent: 120}, wantErr: true},
		{name: "observation requires notes", rec: ObservationRecording{}, wantErr: true},
		{name: "observation valid", rec: ObservationRecording{Notes: "confluent, no contamination"}},
		{name: "manipulation valid", rec: ManipulationRecording{}},
		{name: "passage requires ratio", rec: PassageRecording{}, wantErr: true},
		{name: "banking requires vials", rec: BankingRecording{BankType: "wcb"}, wantErr: true},
		{name: "banking valid", rec: BankingRecording{VialCount: 10, BankType: "mcb"}},
		{name: "measurement empty name", rec: MeasurementRecording{Values: map[string]float64{"": 1}}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rec.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestRecordingNotes(t *testing.T) {
	recs := []StepRecording{
		CellCountingRecording{Notes: "n"},
		MeasurementRecording{Notes: "n"},
		MediaChangeRecording{Notes: "n"},
		IncubationRecording{Notes: "n"},
		ObservationRecording{Notes: "n"},
		ManipulationRecording{Notes: "n"},
		PassageRecording{Notes: "n"},
		BankingRecording{Notes: "n"},
	}
	for _, rec := range recs {
		if RecordingNotes(rec) != "n" {
			t.Fatalf("notes not extracted for %T", rec)
		}
	}
}

func TestStepElapsedAndTerminal(t *testing.T) {
	step := ExecutedStep{Status: StepPending}
	if step.Elapsed(nowUTC()) != 0 {
		t.Fatalf("pending step should report zero elapsed")
	}
	if step.Terminal() {
		t.Fatalf("pending step is not terminal")
	}
	started := nowUTC()
	completed := started.Add(90 * 1e9)
	step.Status = StepCompleted
	step.StartedAt = &started
	step.CompletedAt = &completed
	if !step.Terminal() {
		t.Fatalf("completed step should be terminal")
	}
	if step.Elapsed(completed.Add(1e12)) != completed.Sub(started) {
		t.Fatalf("elapsed of a finished step should be fixed at completion")
	}
}
