package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/harvestlab/reddit-harvester/internal/config"
	"github.com/harvestlab/reddit-harvester/internal/models"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// Service sends run summaries via the configured channels
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements Notifier
var _ Notifier = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message card
type TeamsMessage struct {
	Type     string         `json:"@type"`
	Context  string         `json:"@context"`
	Title    string         `json:"title"`
	Text     string         `json:"text"`
	Sections []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle string      `json:"activityTitle,omitempty"`
	Facts         []TeamsFact `json:"facts,omitempty"`
	Markdown      bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// Enabled reports whether any channel is configured
func (s *Service) Enabled() bool {
	return s.config.TeamsWebhookURL != "" || s.config.NotificationEmail != ""
}

// SendRunSummary sends the summary to every configured channel
func (s *Service) SendRunSummary(ctx context.Context, summary *models.RunSummary) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(ctx, summary); err != nil {
			logrus.Errorf("Failed to send Teams notification: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.Info("Successfully sent run summary to Teams")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(summary); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.Info("Successfully sent run summary via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

func (s *Service) sendToTeams(ctx context.Context, summary *models.RunSummary) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(buildTeamsMessage(summary)).
		Post(s.config.TeamsWebhookURL)

	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func summaryTitle(summary *models.RunSummary) string {
	return fmt.Sprintf("Reddit harvest %s (%s)", summary.Status, summary.Mode)
}

func summaryFacts(summary *models.RunSummary) []TeamsFact {
	artifact := summary.Artifact
	if artifact == "" {
		artifact = "none"
	}
	return []TeamsFact{
		{Name: "Run", Value: summary.RunID},
		{Name: "Posts", Value: fmt.Sprintf("%d", summary.Posts)},
		{Name: "Comments", Value: fmt.Sprintf("%d", summary.Comments)},
		{Name: "Groups with hits", Value: fmt.Sprintf("%d", summary.HitGroups)},
		{Name: "Duration", Value: summary.Duration.Round(time.Second).String()},
		{Name: "Artifact", Value: artifact},
		{Name: "Finished", Value: summary.FinishedAt.UTC().Format("2006-01-02 15:04:05 UTC")},
	}
}

func buildTeamsMessage(summary *models.RunSummary) *TeamsMessage {
	return &TeamsMessage{
		Type:    "MessageCard",
		Context: "https://schema.org/extensions",
		Title:   summaryTitle(summary),
		Text:    fmt.Sprintf("Collected %d posts and %d comments", summary.Posts, summary.Comments),
		Sections: []TeamsSection{{
			ActivityTitle: "Summary",
			Facts:         summaryFacts(summary),
			Markdown:      true,
		}},
	}
}

func (s *Service) sendEmail(summary *models.RunSummary) error {
	htmlBody, err := buildEmailHTML(summary)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", summaryTitle(summary))
	m.SetBody("text/plain", buildEmailText(summary))
	m.AddAlternative("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

var emailTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #ff4500; color: white; padding: 20px; border-radius: 5px; }
        td { padding: 4px 12px 4px 0; }
    </style>
</head>
<body>
    <div class="header"><h1>{{.Title}}</h1></div>
    <table>
    {{range .Facts}}<tr><td><strong>{{.Name}}</strong></td><td>{{.Value}}</td></tr>
    {{end}}</table>
</body>
</html>
`))

func buildEmailHTML(summary *models.RunSummary) (string, error) {
	var buf bytes.Buffer
	err := emailTemplate.Execute(&buf, struct {
		Title string
		Facts []TeamsFact
	}{summaryTitle(summary), summaryFacts(summary)})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildEmailText(summary *models.RunSummary) string {
	var text strings.Builder

	text.WriteString(summaryTitle(summary) + "\n")
	text.WriteString("=======\n")
	for _, f := range summaryFacts(summary) {
		text.WriteString(fmt.Sprintf("%s: %s\n", f.Name, f.Value))
	}

	return text.String()
}
