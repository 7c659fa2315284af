package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
	"time"
)

const BrandName = "SmartHub"

type Email struct {
	Subject string
	HTML    string
}

// Message addresses a rendered email.
func (e Email) Message(to, toName string) Message {
	return Message{To: to, ToName: toName, Subject: e.Subject, HTML: e.HTML}
}

type ContactData struct {
	Name       string
	Email      string
	Phone      string
	Subject    string
	Message    string
	ReceivedAt time.Time
}

type RequestData struct {
	Reference      string
	ClientName     string
	ClientEmail    string
	ClientPhone    string
	Company        string
	ServiceType    string
	ProjectDetails string
	Budget         string
	Timeline       string
	Attachments    int
	AdditionalData map[string]string
	SubmittedAt    time.Time
}

type StatusData struct {
	Reference   string
	ClientName  string
	ServiceType string
	Status      string
	Message     string
	UpdatedAt   time.Time
}

type statusCopy struct {
	Subject string
	Heading string
	Body    string
	Accent  string
}

var statusCopies = map[string]statusCopy{
	"pending": {
		Subject: "We received your request",
		Heading: "Request received",
		Body:    "Your request is in our queue and will be reviewed shortly.",
		Accent:  "#6b7280",
	},
	"reviewing": {
		Subject: "Your request is under review",
		Heading: "Under review",
		Body:    "Our team is reviewing the details of your project.",
		Accent:  "#2563eb",
	},
	"approved": {
		Subject: "Your request has been approved",
		Heading: "Approved",
		Body:    "Good news: your project has been approved. We will contact you to plan the next steps.",
		Accent:  "#16a34a",
	},
	"in-progress": {
		Subject: "Work on your project has started",
		Heading: "In progress",
		Body:    "We have started working on your project.",
		Accent:  "#d97706",
	},
	"completed": {
		Subject: "Your project is complete",
		Heading: "Completed",
		Body:    "Your project has been completed. Thank you for working with us.",
		Accent:  "#7c3aed",
	},
	"rejected": {
		Subject: "Update on your request",
		Heading: "Request declined",
		Body:    "Unfortunately we are unable to take on this request.",
		Accent:  "#dc2626",
	},
}

var serviceLabels = map[string]string{
	"web-development": "Web development",
	"mobile-app":      "Mobile app",
	"ui-ux-design":    "UI/UX design",
	"branding":        "Branding",
	"consulting":      "Consulting",
	"other":           "Other",
}

func ServiceLabel(serviceType string) string {
	if l, ok := serviceLabels[serviceType]; ok {
		return l
	}
	return serviceType
}

const layoutTemplate = `{{define "layout"}}<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background:#f4f4f5;font-family:Arial,Helvetica,sans-serif;color:#18181b;">
  <table width="100%" cellpadding="0" cellspacing="0" style="padding:24px 0;">
    <tr><td align="center">
      <table width="600" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;overflow:hidden;">
        <tr><td style="background:{{.Accent}};color:#ffffff;padding:20px 24px;font-size:20px;font-weight:bold;">{{.Title}}</td></tr>
        <tr><td style="padding:24px;line-height:1.5;">{{template "content" .Data}}</td></tr>
        <tr><td style="padding:16px 24px;font-size:12px;color:#71717a;border-top:1px solid #e4e4e7;">{{.Brand}}</td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>{{end}}`

var layoutTmpl = template.Must(template.New("layout").Funcs(template.FuncMap{
	"date":    formatDate,
	"service": ServiceLabel,
}).Parse(layoutTemplate))

func mustContent(name, content string) *template.Template {
	return template.Must(template.Must(layoutTmpl.Clone()).New(name).Parse(`{{define "content"}}` + content + `{{end}}`))
}

var contactConfirmationTmpl = mustContent("contact_confirmation", `
<p>Hello {{.Name}},</p>
<p>Thanks for reaching out. We received your message and will reply as soon as possible.</p>
{{if .Subject}}<p><strong>Subject:</strong> {{.Subject}}</p>{{end}}
<p style="white-space:pre-line;border-left:3px solid #e4e4e7;padding-left:12px;">{{.Message}}</p>`)

var contactAdminTmpl = mustContent("contact_admin", `
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
{{if .Phone}}<p><strong>Phone:</strong> {{.Phone}}</p>{{end}}
{{if .Subject}}<p><strong>Subject:</strong> {{.Subject}}</p>{{end}}
<p><strong>Received:</strong> {{date .ReceivedAt}}</p>
<p style="white-space:pre-line;">{{.Message}}</p>`)

var requestConfirmationTmpl = mustContent("request_confirmation", `
<p>Hello {{.ClientName}},</p>
<p>Your {{service .ServiceType}} request has been received.</p>
<p><strong>Reference: {{.Reference}}</strong></p>
<p>Keep this reference; we will use it in every update about your project.</p>
<ul>
  {{if .Budget}}<li>Budget: {{.Budget}}</li>{{end}}
  {{if .Timeline}}<li>Timeline: {{.Timeline}}</li>{{end}}
  {{if .Attachments}}<li>Attachments: {{.Attachments}}</li>{{end}}
</ul>
<p style="white-space:pre-line;">{{.ProjectDetails}}</p>`)

var requestAdminTmpl = mustContent("request_admin", `
<p><strong>Reference:</strong> {{.Reference}}</p>
<p><strong>Service:</strong> {{service .ServiceType}}</p>
<p><strong>Client:</strong> {{.ClientName}} &lt;{{.ClientEmail}}&gt;</p>
{{if .ClientPhone}}<p><strong>Phone:</strong> {{.ClientPhone}}</p>{{end}}
{{if .Company}}<p><strong>Company:</strong> {{.Company}}</p>{{end}}
{{if .Budget}}<p><strong>Budget:</strong> {{.Budget}}</p>{{end}}
{{if .Timeline}}<p><strong>Timeline:</strong> {{.Timeline}}</p>{{end}}
<p><strong>Submitted:</strong> {{date .SubmittedAt}}</p>
<p><strong>Attachments:</strong> {{.Attachments}}</p>
{{with .Extra}}<table cellpadding="4">{{range .}}<tr><td><strong>{{.Key}}</strong></td><td>{{.Value}}</td></tr>{{end}}</table>{{end}}
<p style="white-space:pre-line;">{{.ProjectDetails}}</p>`)

var statusUpdateTmpl = mustContent("status_update", `
<p>Hello {{.ClientName}},</p>
<p>{{.Copy.Body}}</p>
<p><strong>Reference:</strong> {{.Reference}}<br/><strong>Service:</strong> {{service .ServiceType}}<br/><strong>Updated:</strong> {{date .UpdatedAt}}</p>
{{if .Message}}<p style="white-space:pre-line;border-left:3px solid {{.Copy.Accent}};padding-left:12px;">{{.Message}}</p>{{end}}`)

var testMessageTmpl = mustContent("test_message", `
<p>This is a test message sent through the <strong>{{.Account}}</strong> mail account.</p>
<p>Sent at {{date .SentAt}}.</p>`)

type layoutData struct {
	Brand  string
	Title  string
	Accent string
	Data   any
}

func render(tmpl *template.Template, title, accent string, data any) (string, error) {
	var buf bytes.Buffer
	err := tmpl.ExecuteTemplate(&buf, "layout", layoutData{
		Brand:  BrandName,
		Title:  title,
		Accent: accent,
		Data:   data,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02 Jan 2006 15:04 MST")
}

const defaultAccent = "#0f172a"

func ContactConfirmation(d ContactData) (Email, error) {
	html, err := render(contactConfirmationTmpl, "Message received", defaultAccent, d)
	if err != nil {
		return Email{}, err
	}
	return Email{Subject: "We received your message", HTML: html}, nil
}

func ContactAdminNotice(d ContactData) (Email, error) {
	html, err := render(contactAdminTmpl, "New contact message", defaultAccent, d)
	if err != nil {
		return Email{}, err
	}
	subject := "New contact message from " + d.Name
	if d.Subject != "" {
		subject += ": " + d.Subject
	}
	return Email{Subject: subject, HTML: html}, nil
}

func RequestConfirmation(d RequestData) (Email, error) {
	html, err := render(requestConfirmationTmpl, "Request received", statusCopies["pending"].Accent, d)
	if err != nil {
		return Email{}, err
	}
	return Email{Subject: fmt.Sprintf("Request %s received", d.Reference), HTML: html}, nil
}

type kv struct {
	Key   string
	Value string
}

func RequestAdminNotice(d RequestData) (Email, error) {
	extra := make([]kv, 0, len(d.AdditionalData))
	for k, v := range d.AdditionalData {
		extra = append(extra, kv{Key: k, Value: v})
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Key < extra[j].Key })

	data := struct {
		RequestData
		Extra []kv
	}{RequestData: d, Extra: extra}

	html, err := render(requestAdminTmpl, "New service request", defaultAccent, data)
	if err != nil {
		return Email{}, err
	}
	return Email{
		Subject: fmt.Sprintf("New %s request %s from %s", ServiceLabel(d.ServiceType), d.Reference, d.ClientName),
		HTML:    html,
	}, nil
}

func StatusUpdate(d StatusData) (Email, error) {
	c, ok := statusCopies[d.Status]
	if !ok {
		return Email{}, fmt.Errorf("no email copy for status %q", d.Status)
	}
	data := struct {
		StatusData
		Copy statusCopy
	}{StatusData: d, Copy: c}

	html, err := render(statusUpdateTmpl, c.Heading, c.Accent, data)
	if err != nil {
		return Email{}, err
	}
	return Email{Subject: fmt.Sprintf("%s [%s]", c.Subject, d.Reference), HTML: html}, nil
}

func TestMessage(account Account, sentAt time.Time) (Email, error) {
	data := struct {
		Account Account
		SentAt  time.Time
	}{Account: account, SentAt: sentAt}

	html, err := render(testMessageTmpl, "Test message", defaultAccent, data)
	if err != nil {
		return Email{}, err
	}
	return Email{Subject: BrandName + " mail test (" + string(account) + ")", HTML: html}, nil
}
