package treatment

import (
	"testing"
	"time"
)

func TestIDPrefix(t *testing.T) {
	at := time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	if got := IDPrefix(at); got != "TRT202609" {
		t.Errorf("expected TRT202609, got %s", got)
	}
	at = time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC)
	if got := IDPrefix(at); got != "TRT202701" {
		t.Errorf("expected zero-padded month, got %s", got)
	}
}

func TestFormatTreatmentID(t *testing.T) {
	if got := FormatTreatmentID("TRT202609", 7); got != "TRT202609000007" {
		t.Errorf("expected TRT202609000007, got %s", got)
	}
	if got := FormatTreatmentID("TRT202609", 123456); got != "TRT202609123456" {
		t.Errorf("expected TRT202609123456, got %s", got)
	}
}

func TestValidTreatmentID(t *testing.T) {
	valid := []string{"TRT202609000001", "TRT202712999999"}
	for _, id := range valid {
		if !ValidTreatmentID(id) {
			t.Errorf("expected %s to be valid", id)
		}
	}
	invalid := []string{"", "TRT20269000001", "trt202609000001", "TRT2026090000010", "ABC202609000001"}
	for _, id := range invalid {
		if ValidTreatmentID(id) {
			t.Errorf("expected %s to be invalid", id)
		}
	}
}
