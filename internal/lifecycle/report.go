package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/feelens/feelens-core/internal/apperr"
	"github.com/feelens/feelens-core/internal/auth"
	"github.com/feelens/feelens-core/internal/model"
	"github.com/feelens/feelens-core/internal/store"
)

// ReportEngine owns report status transitions. Closing a report never
// mutates the reported entry; entry-affecting moderation is only reachable
// through the EntryEngine as an explicit secondary action.
type ReportEngine struct {
	store   store.Store
	maxNote int
	now     func() time.Time
}

// NewReportEngine creates a ReportEngine.
func NewReportEngine(st store.Store, maxNote int) *ReportEngine {
	if maxNote <= 0 {
		maxNote = defaultMaxNoteLength
	}
	return &ReportEngine{store: st, maxNote: maxNote, now: time.Now}
}

// SetClock overrides the engine's clock. Tests only.
func (e *ReportEngine) SetClock(now func() time.Time) { e.now = now }

// Create files a community report against an entry. Any concurrent number of
// open reports per entry is allowed.
func (e *ReportEngine) Create(ctx context.Context, actor auth.Actor, entryID, reasonCode, note string) (*model.EntryReport, error) {
	if err := requireText("reason_code", reasonCode, 100); err != nil {
		return nil, err
	}
	if err := optionalText("note", note, e.maxNote); err != nil {
		return nil, err
	}

	var report *model.EntryReport
	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetEntry(ctx, entryID); err != nil {
			if eris.Is(err, store.ErrNotFound) {
				return apperr.Newf(apperr.CodeNotFound, "entry not found: %s", entryID)
			}
			return err
		}
		now := e.now().UTC()
		report = &model.EntryReport{
			ID:         uuid.New().String(),
			EntryID:    entryID,
			ReporterID: actor.ID,
			ReasonCode: reasonCode,
			Note:       note,
			Status:     model.ReportOpen,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.InsertReport(ctx, report); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, &model.AuditRecord{
			ID:        uuid.New().String(),
			ActorID:   actor.ID,
			ActorRole: string(actor.Role),
			Action:    model.AuditReportCreated,
			EntryID:   entryID,
			ReportID:  report.ID,
			NewState:  string(model.ReportOpen),
			Reason:    reasonCode,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// Triage moves a report from open to triaged. Legal only from open;
// anywhere else is a conflict, never a silent no-op.
func (e *ReportEngine) Triage(ctx context.Context, actor auth.Actor, reportID, note string) error {
	return e.close(ctx, actor, reportID, note, model.ReportTriaged, model.AuditReportTriaged)
}

// Resolve closes a report as valid-and-handled.
func (e *ReportEngine) Resolve(ctx context.Context, actor auth.Actor, reportID, note string) error {
	return e.close(ctx, actor, reportID, note, model.ReportResolved, model.AuditReportResolved)
}

// Dismiss closes a report as invalid.
func (e *ReportEngine) Dismiss(ctx context.Context, actor auth.Actor, reportID, note string) error {
	return e.close(ctx, actor, reportID, note, model.ReportDismissed, model.AuditReportDismissed)
}

func (e *ReportEngine) close(ctx context.Context, actor auth.Actor, reportID, note string, target model.ReportStatus, auditAction string) error {
	if err := requireModerator(actor); err != nil {
		return err
	}
	if err := optionalText("note", note, e.maxNote); err != nil {
		return err
	}

	err := e.store.WithTx(ctx, func(tx store.Tx) error {
		report, err := tx.GetReport(ctx, reportID)
		if err != nil {
			if eris.Is(err, store.ErrNotFound) {
				return apperr.Newf(apperr.CodeNotFound, "report not found: %s", reportID)
			}
			return err
		}

		switch {
		case report.Status.Terminal():
			return apperr.Conflict("report is in terminal state %s", report.Status)
		case target == model.ReportTriaged && report.Status != model.ReportOpen:
			return apperr.Conflict("cannot triage report in status %s", report.Status)
		}

		now := e.now().UTC()
		if err := tx.UpdateReportStatus(ctx, reportID, target, note, now); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, &model.AuditRecord{
			ID:        uuid.New().String(),
			ActorID:   actor.ID,
			ActorRole: string(actor.Role),
			Action:    auditAction,
			EntryID:   report.EntryID,
			ReportID:  report.ID,
			OldState:  string(report.Status),
			NewState:  string(target),
			Reason:    note,
			CreatedAt: now,
		})
	})
	if err != nil {
		return err
	}

	zap.L().Info("report closed",
		zap.String("report_id", reportID),
		zap.String("status", string(target)),
		zap.String("actor_id", actor.ID),
	)
	return nil
}
