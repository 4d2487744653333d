package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAssessmentRequestDecode(t *testing.T) {
	body := `{
		"tenantId": "tenant-001",
		"query": {"name": "Meridian Capital Ltd", "jurisdictionHint": "ky"},
		"signals": {
			"registry": {
				"found": true,
				"status": "active",
				"incorporationDate": "2015-03-20T00:00:00Z",
				"lastFilingDate": "2026-01-10T00:00:00Z"
			},
			"trade": {"hasTradeData": true, "volumeAligned": false}
		}
	}`

	var req AssessmentRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	reg := req.Signals.Registry
	if reg == nil || !reg.Found {
		t.Fatal("expected registry payload with found=true")
	}
	want := time.Date(2015, 3, 20, 0, 0, 0, 0, time.UTC)
	if !reg.IncorporationDate.Equal(want) {
		t.Errorf("incorporationDate = %v, want %v", reg.IncorporationDate, want)
	}

	trade := req.Signals.Trade
	if trade == nil {
		t.Fatal("expected trade payload")
	}
	if !trade.HasTradeData || trade.VolumeAligned {
		t.Errorf("trade fields not carried: %+v", trade)
	}
}

func TestRegistryPayloadOmitsZeroDates(t *testing.T) {
	out, err := json.Marshal(&RegistryPayload{Found: true})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, key := range []string{"incorporationDate", "lastFilingDate"} {
		if strings.Contains(string(out), key) {
			t.Errorf("zero %s must be omitted: %s", key, out)
		}
	}
}
