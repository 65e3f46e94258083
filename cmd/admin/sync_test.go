package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"ledgersync/internal/domain/ledgersync"
	"ledgersync/internal/infrastructure/plaid"
)

func TestSyncAllError(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		succeeded int64
		failed    int64
		want      string
	}{
		{name: "all succeeded", total: 3, succeeded: 3},
		{name: "all failed", total: 3, failed: 3, want: "3 sync(s) failed"},
		{name: "some failed", total: 3, succeeded: 2, failed: 1, want: "1 sync(s) failed"},
		{name: "cut off by timeout", total: 4, succeeded: 2, want: "2 sync(s) not run"},
		{name: "failed and cut off", total: 5, succeeded: 1, failed: 2, want: "2 sync(s) failed, 2 not run"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := syncAllError(tt.total, tt.succeeded, tt.failed)
			if tt.want == "" {
				if err != nil {
					t.Errorf("syncAllError() = %v, want nil", err)
				}
				return
			}
			if err == nil || err.Error() != tt.want {
				t.Errorf("syncAllError() = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, ledgersync.ItemResult{
		ItemID:  "item-1",
		Summary: ledgersync.Summary{Added: 2, Rejected: []string{"a", "b", "c", "d", "e", "f", "g"}},
	})
	out := buf.String()
	for _, want := range []string{"Item item-1", "Added:    2", "Rejected: 7", "- e", "... and 2 more"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "- f") {
		t.Errorf("output lists more than 5 rejected ids:\n%s", out)
	}

	buf.Reset()
	printResult(&buf, ledgersync.ItemResult{ItemID: "item-2", Err: &plaid.APIError{StatusCode: 503}})
	if !strings.Contains(buf.String(), "retry later") {
		t.Errorf("transient failure not flagged:\n%s", buf.String())
	}

	buf.Reset()
	printResult(&buf, ledgersync.ItemResult{ItemID: "item-3", Err: errors.New("decrypt failed")})
	if strings.Contains(buf.String(), "retry later") {
		t.Errorf("permanent failure flagged as retryable:\n%s", buf.String())
	}
}
