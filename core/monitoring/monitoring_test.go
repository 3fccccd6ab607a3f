package monitoring

import (
	"errors"
	"testing"
	"time"
)

type recordMonitor struct {
	err  error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.err = err
	r.tags = tags
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestDefectTags(t *testing.T) {
	rec := &recordMonitor{}
	Init(rec)
	t.Cleanup(func() { Init(NopMonitor{}) })

	Defect(errors.New("missing job id"), "timeline", "a1")
	if rec.err == nil {
		t.Fatalf("defect not captured")
	}
	if rec.tags["module"] != "timeline" || rec.tags["item_id"] != "a1" || rec.tags["kind"] != "defect" {
		t.Fatalf("unexpected tags %v", rec.tags)
	}
	rec.err = nil
	CaptureException(nil, nil)
	if rec.err != nil {
		t.Fatalf("nil error should be ignored")
	}
	Init(nil)
	if get() != rec {
		t.Fatalf("nil monitor must not replace current")
	}
}
