package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kube-autorollout/kube-autorollout/internal/core"
)

func TestRecordTick(t *testing.T) {
	ensureRegistered()
	ticksTotal.Reset()

	RecordTick(2*time.Second, nil)
	RecordTick(time.Second, fmt.Errorf("boom"))

	if got := testutil.ToFloat64(ticksTotal.WithLabelValues("success")); got != 1 {
		t.Fatalf("success ticks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(ticksTotal.WithLabelValues("error")); got != 1 {
		t.Fatalf("error ticks = %v, want 1", got)
	}
}

func TestRecordDecision(t *testing.T) {
	ensureRegistered()
	decisionsTotal.Reset()

	RecordDecision(core.Patch)
	RecordDecision(core.Patch)
	RecordDecision(core.SkipNoChange)

	if got := testutil.ToFloat64(decisionsTotal.WithLabelValues("Patch")); got != 2 {
		t.Fatalf("Patch decisions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(decisionsTotal.WithLabelValues("SkipNoChange")); got != 1 {
		t.Fatalf("SkipNoChange decisions = %v, want 1", got)
	}
}

func TestRecordErrorDefaultsUncategorized(t *testing.T) {
	ensureRegistered()
	errorsTotal.Reset()

	RecordError("")
	RecordError(core.CategoryRegistryTransient)

	if got := testutil.ToFloat64(errorsTotal.WithLabelValues("Uncategorized")); got != 1 {
		t.Fatalf("Uncategorized errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(errorsTotal.WithLabelValues(string(core.CategoryRegistryTransient))); got != 1 {
		t.Fatalf("RegistryTransient errors = %v, want 1", got)
	}
}
