// Package notify tells the applicant and downstream subscribers about
// terminal workflow decisions.
package notify

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	awsclient "vendor-onboarding/internal/common/aws"
	"vendor-onboarding/internal/common/config"
	"vendor-onboarding/internal/common/errors"
	"vendor-onboarding/internal/common/logger"
	"vendor-onboarding/internal/common/metrics"
	"vendor-onboarding/internal/models"
)

var templates = map[models.WorkflowStatus]models.NotificationTemplate{
	models.StatusApproved: {
		Subject: "Your vendor application for {{businessName}} was approved",
		Body:    "Hello,\n\nThe onboarding application {{workflowId}} for {{businessName}} has been approved by all reviewers.\n",
	},
	models.StatusRejected: {
		Subject: "Your vendor application for {{businessName}} was not approved",
		Body:    "Hello,\n\nThe onboarding application {{workflowId}} for {{businessName}} was rejected during review.\n",
	},
}

// Notifier sends decision e-mails through SES and decision events through SNS.
// Either channel may be nil.
type Notifier struct {
	email    awsclient.SESService
	events   awsclient.SNSService
	from     string
	topicARN string
	logger   logger.Logger
}

func New(cfg config.NotificationConfig, email awsclient.SESService, events awsclient.SNSService, log logger.Logger) *Notifier {
	n := &Notifier{
		from:     cfg.Email.FromEmail,
		topicARN: cfg.Events.TopicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "notifier"}),
	}
	if cfg.Email.Enabled {
		n.email = email
	}
	if cfg.Events.Enabled && cfg.Events.TopicARN != "" {
		n.events = events
	}
	return n
}

// Enabled reports whether any channel is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && (n.email != nil || n.events != nil)
}

// DecisionMade delivers ev on every configured channel. Failures on one
// channel do not stop the other.
func (n *Notifier) DecisionMade(ctx context.Context, ev models.DecisionEvent) error {
	if !n.Enabled() {
		return nil
	}

	var errs []error
	if n.email != nil && ev.ApplicantEmail != "" {
		if err := n.sendEmail(ctx, ev); err != nil {
			errs = append(errs, errors.NewNotificationSendFailedError("email", err))
		}
	}
	if n.events != nil {
		if err := n.publish(ctx, ev); err != nil {
			errs = append(errs, errors.NewNotificationSendFailedError("sns", err))
		}
	}
	return stderrors.Join(errs...)
}

func (n *Notifier) sendEmail(ctx context.Context, ev models.DecisionEvent) error {
	tmpl, ok := templates[ev.Status]
	if !ok {
		return nil
	}
	data := map[string]string{
		"workflowId":   ev.WorkflowID,
		"businessName": ev.BusinessName,
		"status":       string(ev.Status),
	}

	id, err := awsclient.SendEmail(ctx, n.email, n.from, ev.ApplicantEmail,
		renderTemplate(tmpl.Subject, data), renderTemplate(tmpl.Body, data), "")
	n.record("email", err)
	if err != nil {
		return err
	}
	n.logger.Info("Decision e-mail sent", map[string]interface{}{
		"workflowId": ev.WorkflowID,
		"messageId":  id,
	})
	return nil
}

func (n *Notifier) publish(ctx context.Context, ev models.DecisionEvent) error {
	if ev.DecidedAt.IsZero() {
		ev.DecidedAt = time.Now().UTC()
	}
	id, err := awsclient.PublishJSON(ctx, n.events, n.topicARN,
		fmt.Sprintf("workflow %s %s", ev.WorkflowID, strings.ToLower(string(ev.Status))),
		ev, map[string]string{"status": string(ev.Status), "source": ev.Source})
	n.record("sns", err)
	if err != nil {
		return err
	}
	n.logger.Info("Decision event published", map[string]interface{}{
		"workflowId": ev.WorkflowID,
		"messageId":  id,
	})
	return nil
}

func (n *Notifier) record(channel string, err error) {
	outcome := "sent"
	if err != nil {
		outcome = "failed"
	}
	metrics.NotificationsSent.WithLabelValues(channel, outcome).Inc()
}

func renderTemplate(tmpl string, data map[string]string) string {
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
