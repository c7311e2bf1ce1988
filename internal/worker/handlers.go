package worker

import (
	"context"
	"fmt"

	"github.com/cafeteria-hr/service_layer/internal/logging"
	"github.com/cafeteria-hr/service_layer/internal/platform/mail"
	"github.com/cafeteria-hr/service_layer/internal/platform/search"
	"github.com/cafeteria-hr/service_layer/internal/storage"
)

// mailTemplates maps the template key carried in a send_email task to its
// subject line and body. Bodies reference the public site via %s.
var mailTemplates = map[string]struct {
	subject string
	body    string
}{
	"invite":         {"Welcome to the benefits cafeteria", "An account has been created for you. Visit %s to complete signup."},
	"password_reset": {"Password reset", "Use this link to reset your password: %s"},
	"request_status": {"Your benefit request was updated", "Check the current status of your request at %s"},
}

// RegisterMailHandler wires the send_email task kind to the SMTP sender.
func RegisterMailHandler(w *Worker, sender mail.Sender, domain string, log *logging.Logger) {
	w.Handle(TaskSendEmail, func(ctx context.Context, t Task) error {
		to := t.Payload["to"]
		if to == "" {
			return fmt.Errorf("send_email: missing recipient")
		}
		tpl, ok := mailTemplates[t.Payload["template"]]
		if !ok {
			return fmt.Errorf("send_email: unknown template %q", t.Payload["template"])
		}
		link := domain
		if token := t.Payload["token"]; token != "" {
			link = domain + "/reset-password?token=" + token
		}
		if !sender.Enabled() {
			log.WithField("to", to).WithField("template", t.Payload["template"]).
				Info("mail disabled, dropping email")
			return nil
		}
		return sender.Send(mail.Message{
			To:      to,
			Subject: tpl.subject,
			Body:    fmt.Sprintf(tpl.body, link),
		})
	})
}

// RegisterIndexHandlers wires the reindex task kinds to the search indexer.
func RegisterIndexHandlers(w *Worker, users storage.UserStore, benefits storage.BenefitStore, indexer search.Indexer, log *logging.Logger) {
	w.Handle(TaskIndexUser, func(ctx context.Context, t Task) error {
		u, err := users.GetUser(ctx, t.Payload["id"])
		if err != nil {
			return err
		}
		return indexer.IndexUser(ctx, u)
	})
	w.Handle(TaskIndexBenefit, func(ctx context.Context, t Task) error {
		b, err := benefits.GetBenefit(ctx, t.Payload["id"])
		if err != nil {
			return err
		}
		return indexer.IndexBenefit(ctx, b)
	})
	w.Handle(TaskRemoveUser, func(ctx context.Context, t Task) error {
		return indexer.RemoveUser(ctx, t.Payload["id"])
	})
	w.Handle(TaskRemoveBenefit, func(ctx context.Context, t Task) error {
		return indexer.RemoveBenefit(ctx, t.Payload["id"])
	})
	w.Handle(TaskReindexAll, func(ctx context.Context, t Task) error {
		if !indexer.Enabled() {
			return nil
		}
		return ReindexAll(ctx, users, benefits, indexer, log)
	})
}

// ReindexAll rebuilds both search indices from the primary store.
func ReindexAll(ctx context.Context, users storage.UserStore, benefits storage.BenefitStore, indexer search.Indexer, log *logging.Logger) error {
	if err := indexer.EnsureIndices(ctx); err != nil {
		return err
	}
	allUsers, err := users.ListUsers(ctx, storage.UserFilter{})
	if err != nil {
		return err
	}
	for _, u := range allUsers {
		if err := indexer.IndexUser(ctx, u); err != nil {
			log.WithError(err).WithField("user_id", u.ID).Warn("reindex user failed")
		}
	}
	allBenefits, err := benefits.ListBenefits(ctx, storage.BenefitFilter{})
	if err != nil {
		return err
	}
	for _, b := range allBenefits {
		if err := indexer.IndexBenefit(ctx, b); err != nil {
			log.WithError(err).WithField("benefit_id", b.ID).Warn("reindex benefit failed")
		}
	}
	log.WithField("users", len(allUsers)).
		WithField("benefits", len(allBenefits)).
		Info("full reindex finished")
	return nil
}

// RegisterSweepHandler wires the session sweep task kind.
func RegisterSweepHandler(w *Worker, sessions storage.SessionStore, log *logging.Logger) {
	w.Handle(TaskSweepSessions, func(ctx context.Context, t Task) error {
		n, err := sessions.DeleteExpiredSessions(ctx, timeNow())
		if err != nil {
			return err
		}
		if n > 0 {
			log.WithField("deleted", n).Info("expired sessions swept")
		}
		return nil
	})
}
