package qrticket

import "testing"

func TestDecomposeStatus(t *testing.T) {
	tests := []struct {
		status    string
		coach     string
		seatBerth string
		confirmed bool
	}{
		{"CNFB1/50MB", "B1", "50 (MB)", true},
		{"CNFB1/51UB", "B1", "51 (UB)", true},
		{"CNFS12/7SL", "S12", "7 (SL)", true},
		{"cnfa1/3lb", "a1", "3 (lb)", true},
		{" CNFB1/50MB ", "B1", "50 (MB)", true},
		{"WL/12", "", "WL/12", false},
		{"RAC/14", "", "RAC/14", false},
		{"CNF/50MB", "", "CNF/50MB", false},
		{"CNFB1/50", "", "CNFB1/50", false},
		{"CAN", "", "CAN", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			got := DecomposeStatus(tt.status)
			if got.Coach != tt.coach {
				t.Errorf("Coach = %q, want %q", got.Coach, tt.coach)
			}
			if got.SeatBerth != tt.seatBerth {
				t.Errorf("SeatBerth = %q, want %q", got.SeatBerth, tt.seatBerth)
			}
			if got.Confirmed != tt.confirmed {
				t.Errorf("Confirmed = %v, want %v", got.Confirmed, tt.confirmed)
			}
		})
	}
}
