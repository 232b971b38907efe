package service

import (
	"context"
	"fmt"
	"strings"

	"fides/internal/law"
	id "fides/pkg/domain"
	"fides/pkg/platform/audit"
)

// LawViolationError reports that an enforcement check denied an operation.
// It carries the full violation list, not just the first failure, plus the
// audit entry recording the denial.
type LawViolationError struct {
	Violations []law.Violation
	AuditID    id.AuditID
}

func (e *LawViolationError) Error() string {
	names := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		names[i] = fmt.Sprintf("%d (%s)", v.LawID, v.LawName)
	}
	return "law violation: " + strings.Join(names, ", ")
}

// denialEntry records a security-category denial entry for a lifecycle
// operation blocked by the law engine. The engine has already recorded the
// check itself; this entry is what feeds the security event stream.
func (s *Service) denialEntry(ctx context.Context, action audit.Action, actorID, subjectID, resourceID string, check law.Result) id.AuditID {
	auditID, err := s.publisher.Emit(ctx, audit.Entry{
		ActorID:       actorID,
		Action:        action,
		SubjectID:     subjectID,
		ResourceID:    resourceID,
		Result:        audit.ResultDenied,
		LawsChecked:   check.Checked,
		LawViolations: violationIDs(check.Violations),
		Metadata: map[string]string{
			"law_check_audit": check.AuditID.String(),
		},
	})
	if err != nil {
		// The law check itself is already audited; losing the denial
		// fan-out entry must not mask the denial.
		s.logger.ErrorContext(ctx, "failed to record denial entry",
			"error", err, "action", string(action))
		return check.AuditID
	}
	return auditID
}

func violationIDs(violations []law.Violation) []int {
	out := make([]int, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.LawID)
	}
	return out
}
