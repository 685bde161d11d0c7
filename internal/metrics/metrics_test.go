package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestWorkflowOutcome(t *testing.T) {
	is := is.New(t)

	okBefore := testutil.ToFloat64(Workflows.WithLabelValues("READ", OutcomeOK))
	errBefore := testutil.ToFloat64(Workflows.WithLabelValues("READ", OutcomeError))

	Workflow("READ", nil)
	Workflow("READ", errors.New("boom"))
	Workflow("READ", nil)

	is.Equal(testutil.ToFloat64(Workflows.WithLabelValues("READ", OutcomeOK))-okBefore, 2.0)
	is.Equal(testutil.ToFloat64(Workflows.WithLabelValues("READ", OutcomeError))-errBefore, 1.0)
}

func TestObserveCall(t *testing.T) {
	is := is.New(t)

	before := testutil.CollectAndCount(ExternalCallSeconds)
	ObserveCall("metrics_test", time.Now().Add(-50*time.Millisecond))
	is.Equal(testutil.CollectAndCount(ExternalCallSeconds), before+1) // new service label adds a series
}
