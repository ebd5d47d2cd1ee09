package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/constat/internal/domain"
	"github.com/DukeRupert/constat/internal/metrics"
	"github.com/DukeRupert/constat/internal/report"
)

// NotSpecified replaces any missing field in a notification.
const NotSpecified = "non spécifié(e)"

// NoComment is shown when a supervisor rejects without a comment.
const NoComment = "Aucun commentaire"

// Notification kinds, used in logs and metrics.
const (
	KindValidationRequested = "validation_requested"
	KindValidationApproved  = "validation_approved"
	KindValidationRejected  = "validation_rejected"
	KindFinalReport         = "final_report"
	KindAlert               = "alert"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("email").ParseFS(templateFS, "templates/*.html"))

// =============================================================================
// Notifier Interface
// =============================================================================

// Notifier sends the notifications of the validation workflow.
type Notifier interface {
	SendValidationRequested(ctx context.Context, n ValidationRequested) error
	SendValidationApproved(ctx context.Context, n ValidationDecided) error
	SendValidationRejected(ctx context.Context, n ValidationDecided) error
	SendFinalReport(ctx context.Context, n FinalReport) error
	SendAlert(ctx context.Context, n AlertRaised) error
}

// ValidationRequested asks a supervisor to review a report.
type ValidationRequested struct {
	SupervisorEmail string
	Author          *domain.User
	Report          *domain.StateReport
	Token           string
	ExpiresAt       time.Time
}

// ValidationDecided tells the author what the supervisor decided.
type ValidationDecided struct {
	Author          *domain.User
	Report          *domain.StateReport
	SupervisorEmail string
	Comment         *string
}

// FinalReport delivers the report PDF to its recipients.
type FinalReport struct {
	Recipients []string
	Author     *domain.User
	Report     *domain.StateReport
	PDF        []byte
}

// AlertRaised notifies the services concerned by an alert.
type AlertRaised struct {
	Recipients []string
	Author     *domain.User
	Report     *domain.StateReport
	Alert      *domain.Alert
	Photos     []Photo
}

// Photo is an alert photo. Photos without data are left out of the email.
type Photo struct {
	AttachmentID string
	Caption      string
	ContentType  string
	Data         []byte
}

// =============================================================================
// Dispatcher
// =============================================================================

// Dispatcher composes notifications and sends them through a Sender.
type Dispatcher struct {
	sender      Sender
	frontendURL string
	logger      *slog.Logger
}

// NewDispatcher creates a dispatcher. frontendURL is the public address of
// the web application, where validation links point.
func NewDispatcher(sender Sender, frontendURL string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:      sender,
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
		logger:      logger,
	}
}

// ValidationURL returns the page where the supervisor reviews a request.
func (d *Dispatcher) ValidationURL(token string) string {
	return d.frontendURL + "/validation/" + token
}

// SendValidationRequested emails the supervisor a link to the request.
func (d *Dispatcher) SendValidationRequested(ctx context.Context, n ValidationRequested) error {
	v := newView(n.Report)
	v.Author = authorName(n.Author)
	v.URL = d.ValidationURL(n.Token)
	v.Expiry = expiryText(n.ExpiresAt)
	v.Subject = "Demande de validation du constat d'état : " + v.Title

	text := fmt.Sprintf(`Bonjour,

%s vous demande de valider le constat d'état suivant :

%s
Consulter et valider le constat :
%s

%s
`, v.Author, v.reportText(), v.URL, v.Expiry)

	return d.send(ctx, KindValidationRequested, "validation_requested.html", v, Message{
		To:       []string{n.SupervisorEmail},
		Subject:  v.Subject,
		TextBody: text,
	})
}

// SendValidationApproved tells the author the report was approved.
func (d *Dispatcher) SendValidationApproved(ctx context.Context, n ValidationDecided) error {
	v := newView(n.Report)
	v.Name = authorName(n.Author)
	v.Supervisor = orNotSpecified(n.SupervisorEmail)
	v.Subject = "Votre constat d'état a été validé : " + v.Title

	text := fmt.Sprintf(`Bonjour %s,

Votre constat d'état a été validé par %s et envoyé aux destinataires.

%s`, v.Name, v.Supervisor, v.reportText())

	return d.send(ctx, KindValidationApproved, "validation_approved.html", v, Message{
		To:       []string{authorEmail(n.Author)},
		Subject:  v.Subject,
		TextBody: text,
	})
}

// SendValidationRejected tells the author the report was rejected, with
// the supervisor's comment verbatim.
func (d *Dispatcher) SendValidationRejected(ctx context.Context, n ValidationDecided) error {
	v := newView(n.Report)
	v.Name = authorName(n.Author)
	v.Supervisor = orNotSpecified(n.SupervisorEmail)
	v.Comment = NoComment
	if n.Comment != nil && strings.TrimSpace(*n.Comment) != "" {
		v.Comment = *n.Comment
	}
	v.Subject = "Votre constat d'état a été refusé : " + v.Title

	text := fmt.Sprintf(`Bonjour %s,

Votre constat d'état a été refusé par %s.

%s
Commentaire :
%s

Vous pouvez modifier le constat puis soumettre une nouvelle demande de validation.
`, v.Name, v.Supervisor, v.reportText(), v.Comment)

	return d.send(ctx, KindValidationRejected, "validation_rejected.html", v, Message{
		To:       []string{authorEmail(n.Author)},
		Subject:  v.Subject,
		TextBody: text,
	})
}

// SendFinalReport sends the PDF to every recipient in one message.
func (d *Dispatcher) SendFinalReport(ctx context.Context, n FinalReport) error {
	v := newView(n.Report)
	v.Author = authorName(n.Author)
	v.Filename = PDFFilename(reportTitle(n.Report))
	v.Subject = "Constat d'état : " + v.Title

	text := fmt.Sprintf(`Bonjour,

Veuillez trouver ci-joint le constat d'état établi par %s.

%s
Le document est joint à ce message au format PDF (%s).
`, v.Author, v.reportText(), v.Filename)

	return d.send(ctx, KindFinalReport, "final_report.html", v, Message{
		To:       n.Recipients,
		Subject:  v.Subject,
		TextBody: text,
		Attachments: []Attachment{{
			Filename:    v.Filename,
			ContentType: "application/pdf",
			Data:        n.PDF,
		}},
	})
}

// SendAlert sends one alert to the services concerned. Photos are inline
// and referenced as cid:alert-<attachment id>; photos without data are
// omitted.
func (d *Dispatcher) SendAlert(ctx context.Context, n AlertRaised) error {
	v := newView(n.Report)
	v.Author = authorName(n.Author)
	v.Category = orNotSpecified(string(n.Alert.Category))
	v.Nature = orNotSpecified(domain.StringValue(n.Alert.Nature))
	v.Comments = orNotSpecified(domain.StringValue(n.Alert.Commentaires))
	v.Subject = "Alerte " + v.Category + " : " + v.Title

	var attachments []Attachment
	for i, p := range n.Photos {
		if len(p.Data) == 0 {
			d.logger.Warn("alert photo omitted from email", "alert_id", n.Alert.ID, "attachment_id", p.AttachmentID)
			continue
		}
		caption := strings.TrimSpace(p.Caption)
		if caption == "" {
			caption = fmt.Sprintf("Photo %d", i+1)
		}
		cid := AlertContentID(p.AttachmentID)
		v.Photos = append(v.Photos, photoView{ContentID: cid, Caption: caption})
		attachments = append(attachments, Attachment{
			Filename:    cid + photoExtension(p.ContentType),
			ContentType: p.ContentType,
			Data:        p.Data,
			ContentID:   cid,
		})
	}

	text := fmt.Sprintf(`Bonjour,

Une alerte a été signalée lors de la visite d'un monument protégé.

%s
Catégorie : %s
Nature : %s
Commentaires : %s
Signalée par : %s
`, v.reportText(), v.Category, v.Nature, v.Comments, v.Author)

	return d.send(ctx, KindAlert, "alert.html", v, Message{
		To:          n.Recipients,
		Subject:     v.Subject,
		TextBody:    text,
		Attachments: attachments,
	})
}

func (d *Dispatcher) send(ctx context.Context, kind, tmpl string, v view, msg Message) error {
	html, err := renderTemplate(tmpl, v)
	if err != nil {
		metrics.EmailSent(kind, err)
		return fmt.Errorf("failed to render %s email template: %w", kind, err)
	}
	msg.HTMLBody = html

	err = d.sender.Send(ctx, msg)
	metrics.EmailSent(kind, err)
	if err != nil {
		return fmt.Errorf("send %s email: %w", kind, err)
	}
	d.logger.Debug("notification sent", "kind", kind, "recipients", len(msg.To))
	return nil
}

// =============================================================================
// Template Data
// =============================================================================

type photoView struct {
	ContentID string
	Caption   string
}

type view struct {
	Subject    string
	Name       string
	Author     string
	Title      string
	Commune    string
	VisitDate  string
	URL        string
	Expiry     string
	Supervisor string
	Comment    string
	Filename   string
	Category   string
	Nature     string
	Comments   string
	Photos     []photoView
}

func newView(r *domain.StateReport) view {
	if r == nil {
		r = &domain.StateReport{}
	}
	return view{
		Title:     orNotSpecified(domain.StringValue(r.Title)),
		Commune:   orNotSpecified(domain.StringValue(r.Commune)),
		VisitDate: orNotSpecified(report.FormatDate(r.VisitDate)),
	}
}

// reportTitle is the raw title of r, or "" when r is nil.
func reportTitle(r *domain.StateReport) string {
	if r == nil {
		return ""
	}
	return domain.StringValue(r.Title)
}

func (v view) reportText() string {
	return fmt.Sprintf("Édifice : %s\nCommune : %s\nDate de visite : %s\n", v.Title, v.Commune, v.VisitDate)
}

func renderTemplate(name string, data view) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func orNotSpecified(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return NotSpecified
}

func authorName(u *domain.User) string {
	if u == nil {
		return NotSpecified
	}
	return orNotSpecified(u.DisplayName())
}

func authorEmail(u *domain.User) string {
	if u == nil {
		return ""
	}
	return u.Email
}

func expiryText(expiresAt time.Time) string {
	days := int(domain.ValidationLinkDuration / (24 * time.Hour))
	if expiresAt.IsZero() {
		return fmt.Sprintf("Ce lien est valable %d jours.", days)
	}
	return fmt.Sprintf("Ce lien est valable %d jours, jusqu'au %s.", days, report.FormatDate(&expiresAt))
}

func photoExtension(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// =============================================================================
// Compile-time interface check
// =============================================================================

var _ Notifier = (*Dispatcher)(nil)
