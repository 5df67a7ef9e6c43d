package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/example/ev-rescue/internal/models"
	"github.com/example/ev-rescue/internal/workflow"
)

func TestWorkflowListenerCounts(t *testing.T) {
	l := WorkflowListener()
	snap := workflow.Snapshot{Role: workflow.RoleDriver}

	tr := testutil.ToFloat64(StageTransitions.WithLabelValues("driver", "rating", "thankyou"))
	done := testutil.ToFloat64(RescuesCompleted.WithLabelValues("driver"))
	bad := testutil.ToFloat64(Notifications.WithLabelValues("destructive"))

	l.OnUpdate(context.Background(), workflow.Update{
		Snapshot:   snap,
		Transition: &workflow.Transition{From: workflow.StageRating, To: workflow.StageThankYou},
	})
	l.OnUpdate(context.Background(), workflow.Update{
		Snapshot:     snap,
		Notification: &models.Notification{Variant: models.VariantDestructive},
	})

	assert.Equal(t, tr+1, testutil.ToFloat64(StageTransitions.WithLabelValues("driver", "rating", "thankyou")))
	assert.Equal(t, done+1, testutil.ToFloat64(RescuesCompleted.WithLabelValues("driver")))
	assert.Equal(t, bad+1, testutil.ToFloat64(Notifications.WithLabelValues("destructive")))
}
