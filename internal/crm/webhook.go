package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/willow/internal/resilience"
	"github.com/sells-group/willow/internal/store"
	"github.com/sells-group/willow/pkg/cloudcma"
	"github.com/sells-group/willow/pkg/fub"
)

// WebhookOutcome says what a delivery did, for logging and the HTTP response.
type WebhookOutcome string

const (
	OutcomeProcessed WebhookOutcome = "processed"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeUnmatched WebhookOutcome = "unmatched"
)

// WebhookProcessor handles report-completion callbacks from Cloud CMA. It
// correlates each delivery to the originating request by token, records the
// authoritative URLs, and notifies the agent through the CRM.
type WebhookProcessor struct {
	store store.Store
	crm   fub.Client
	retry resilience.Policy
	now   func() time.Time
}

// NewWebhookProcessor wires a processor.
func NewWebhookProcessor(st store.Store, crm fub.Client) *WebhookProcessor {
	return &WebhookProcessor{
		store: st,
		crm:   crm,
		retry: resilience.DefaultPolicy(),
		now:   time.Now,
	}
}

// Process handles a single delivery. Deliveries are at-least-once, so the
// same payload may arrive more than once; duplicates and payloads with no
// matching job are acknowledged without side effects so the provider stops
// redelivering.
func (p *WebhookProcessor) Process(ctx context.Context, token string, payload cloudcma.WebhookPayload) (WebhookOutcome, error) {
	if payload.ID == "" {
		return "", eris.New("crm: webhook payload missing id")
	}

	fresh, err := p.store.MarkEventProcessed(ctx, payload.ID, payload.Action)
	if err != nil {
		return "", eris.Wrap(err, "crm: record webhook event")
	}
	if !fresh {
		zap.L().Info("duplicate webhook delivery skipped",
			zap.String("event_id", payload.ID),
			zap.String("action", payload.Action),
		)
		return OutcomeDuplicate, nil
	}

	job, err := p.store.GetCMAJobByToken(ctx, token)
	if err != nil {
		p.release(ctx, payload)
		return "", eris.Wrap(err, "crm: correlate webhook")
	}
	if job == nil {
		zap.L().Warn("webhook delivery has no matching job",
			zap.String("event_id", payload.ID),
			zap.String("token", token),
		)
		return OutcomeUnmatched, nil
	}

	if err := p.store.CompleteCMAJob(ctx, token, payload.EditURL, payload.PDFURL); err != nil {
		p.release(ctx, payload)
		return "", eris.Wrap(err, "crm: complete job")
	}

	if err := p.writeback(ctx, job.LeadID, job.Address, job.CenterValue, payload); err != nil {
		p.release(ctx, payload)
		return "", err
	}

	zap.L().Info("cma report correlated",
		zap.String("lead_id", job.LeadID),
		zap.String("report_id", payload.ID),
	)
	return OutcomeProcessed, nil
}

// release drops the idempotency mark after a failed delivery. The handler
// answers non-2xx, the provider redelivers, and the retry must be treated
// as fresh rather than a duplicate.
func (p *WebhookProcessor) release(ctx context.Context, payload cloudcma.WebhookPayload) {
	if err := p.store.UnmarkEventProcessed(ctx, payload.ID, payload.Action); err != nil {
		zap.L().Error("failed to release webhook event mark",
			zap.String("event_id", payload.ID),
			zap.String("action", payload.Action),
			zap.Error(err),
		)
	}
}

func (p *WebhookProcessor) writeback(ctx context.Context, leadID, address string, centerValue int64, payload cloudcma.WebhookPayload) error {
	fields := CMAFields(payload.EditURL, centerValue, p.now())
	if err := ValidateWritable(fields); err != nil {
		return err
	}

	err := resilience.Do(ctx, p.retry, "fub.update_person", func(ctx context.Context) error {
		return p.crm.UpdatePerson(ctx, leadID, fields)
	})
	if err != nil {
		return eris.Wrapf(err, "crm: write cma fields for %s", leadID)
	}

	body := fmt.Sprintf("CMA report ready for %s.<br>Edit: %s", address, payload.EditURL)
	if payload.PDFURL != "" {
		body += fmt.Sprintf("<br>PDF: %s", payload.PDFURL)
	}
	_, err = p.crm.CreateNote(ctx, fub.Note{
		PersonID: jsonNumber(leadID),
		Subject:  "CMA Report Ready",
		Body:     body,
		IsHTML:   true,
	})
	if err != nil {
		// The report itself is recorded; a failed note should not make the
		// provider redeliver.
		zap.L().Warn("cma note creation failed", zap.String("lead_id", leadID), zap.Error(err))
	}

	_, err = p.crm.CreateTask(ctx, fub.Task{
		PersonID: jsonNumber(leadID),
		Name:     fmt.Sprintf("Review and send CMA for %s", address),
		DueDate:  p.now().AddDate(0, 0, 1).Format("2006-01-02"),
	})
	if err != nil {
		zap.L().Warn("cma task creation failed", zap.String("lead_id", leadID), zap.Error(err))
	}

	return nil
}

func jsonNumber(s string) json.Number { return json.Number(s) }
