package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/KathenZK/research-agent/internal/config"
	"github.com/KathenZK/research-agent/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// feishuTopN is how many opportunities are pushed to Feishu per run
const feishuTopN = 3

// Service handles sending notifications via the configured channels.
// Channels without configuration are skipped.
type Service struct {
	config *config.Config
	feishu *FeishuClient
	github *GitHubIssues
	mailer mailSender
}

var _ NotificationInterface = (*Service)(nil)

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	s := &Service{
		config: cfg,
		feishu: NewFeishuClient(cfg.FeishuAppID, cfg.FeishuAppSecret, cfg.FeishuUserID),
		github: NewGitHubIssues(cfg.GitHubToken, cfg.GitHubRepo),
	}

	if cfg.NotificationEmail != "" {
		s.mailer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	}

	return s
}

// SendReport pushes the top opportunities to Feishu and mails the digest
func (s *Service) SendReport(ctx context.Context, report *models.Report) error {
	var errors []string

	if s.feishu.IsConfigured() {
		if err := s.sendToFeishu(ctx, report); err != nil {
			logrus.Errorf("Failed to send Feishu notification: %v", err)
			errors = append(errors, fmt.Sprintf("Feishu: %v", err))
		} else {
			logrus.Info("Successfully sent report to Feishu")
		}
	} else {
		logrus.Debug("Feishu not configured, skipping")
	}

	if s.mailer != nil {
		if err := s.sendEmail(report); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent report via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToFeishu(ctx context.Context, report *models.Report) error {
	if err := s.feishu.SendText(ctx, reportHeadline(report)); err != nil {
		return err
	}

	for i := range report.Opportunities {
		if i >= feishuTopN {
			break
		}
		if err := s.feishu.SendText(ctx, FormatOpportunity(&report.Opportunities[i])); err != nil {
			return fmt.Errorf("opportunity %s: %w", report.Opportunities[i].ID, err)
		}
	}

	return nil
}

func (s *Service) sendEmail(report *models.Report) error {
	m, err := newEmailMessage(s.config.SMTPUsername, s.config.NotificationEmail, report)
	if err != nil {
		return err
	}

	if err := s.mailer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// SendAlert files a GitHub issue for a high-scoring opportunity
func (s *Service) SendAlert(ctx context.Context, alert *models.Alert) error {
	if !s.github.IsConfigured() {
		logrus.Infof("Alert (no GitHub repo configured): %s", alert.Title)
		return nil
	}

	body := alert.Message
	labels := []string{"opportunity"}
	if alert.Opportunity != nil {
		body = fmt.Sprintf("%s\n\n```\n%s\n```\n\n%s", alert.Message, FormatOpportunity(alert.Opportunity), researchLinksMarkdown(alert.Opportunity))
		labels = append(labels, string(alert.Opportunity.Rubric))
	}

	issueURL, err := s.github.CreateIssue(ctx, alert.Title, body, labels)
	if err != nil {
		return fmt.Errorf("GitHub: %w", err)
	}

	logrus.Infof("Opened issue %s for %s", issueURL, alert.ID)
	return nil
}

func researchLinksMarkdown(opp *models.Opportunity) string {
	if len(opp.ResearchLinks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("**Research links**\n")
	for _, link := range opp.ResearchLinks {
		fmt.Fprintf(&b, "- %s\n", link)
	}
	return b.String()
}
