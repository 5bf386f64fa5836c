package monitoring

import (
	"errors"
	"testing"
	"time"
)

type recordingMonitor struct {
	errs []error
	tags []map[string]string
}

func (r *recordingMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = append(r.tags, tags)
}
func (r *recordingMonitor) Recover()            {}
func (r *recordingMonitor) Flush(time.Duration) {}

func TestCaptureExceptionUsesInstalledMonitor(t *testing.T) {
	rec := &recordingMonitor{}
	Init(rec)
	defer Init(NopMonitor{})

	CaptureException(errors.New("boom"), map[string]string{"op": "assign"})
	CaptureException(nil, nil)

	if len(rec.errs) != 1 {
		t.Fatalf("expected 1 captured error got %d", len(rec.errs))
	}
	if rec.tags[0]["op"] != "assign" {
		t.Fatalf("missing tag: %v", rec.tags[0])
	}
}

func TestInitIgnoresNil(t *testing.T) {
	Init(nil)
	if _, ok := Current().(NopMonitor); !ok {
		t.Fatalf("expected NopMonitor to remain installed")
	}
}
