package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

const DefaultClinicName = "SMAART HEALTHCARE"

// ConfirmationData is what the confirmation templates render.
type ConfirmationData struct {
	ClinicName   string
	ContactEmail string
	DoctorName   string
	Date         string
	Time         string
}

const confirmationSubject = "[{{.ClinicName}}] Appointment Confirmation — {{.DoctorName}} on {{.Date}} at {{.Time}}"

const confirmationText = `{{.ClinicName}}

Appointment Confirmation

Dear Patient,

We are pleased to confirm your appointment with {{.DoctorName}} on {{.Date}} at {{.Time}}.

Appointment Details:
• Doctor: {{.DoctorName}}
• Date: {{.Date}}
• Time: {{.Time}}

What to Expect:
• Please arrive 10 minutes early to complete any formalities.
• Bring any relevant medical records and a list of current medications.

Changes & Cancellations:
If you need to reschedule or cancel, please reply to this email at least 24 hours in advance.
{{if .ContactEmail}}
Contact Us:
{{.ClinicName}}
Email: {{.ContactEmail}}
{{end}}
We look forward to seeing you.

Warm regards,
{{.ClinicName}}`

const confirmationHTML = `<div style="font-family: Arial, sans-serif; line-height: 1.6; color: #1f2937;">
  <div style="text-align:center; padding: 12px 0; font-weight: 800; font-size: 18px; letter-spacing: 1px; color:#111827;">{{.ClinicName}}</div>
  <div style="background:#f9fafb; border:1px solid #e5e7eb; border-radius:8px; padding:16px;">
    <h2 style="margin:0 0 8px; font-size:18px; color:#111827;">Appointment Confirmation</h2>
    <p style="margin:0 0 12px;">Dear Patient,</p>
    <p style="margin:0 0 12px;">We are pleased to confirm your appointment with <strong>{{.DoctorName}}</strong> on <strong>{{.Date}}</strong> at <strong>{{.Time}}</strong>.</p>
    <div style="margin:12px 0; padding:12px; background:#ffffff; border:1px solid #e5e7eb; border-radius:6px;">
      <p style="margin:0 0 6px;"><strong>Appointment Details</strong></p>
      <ul style="margin:0; padding-left:18px;">
        <li>Doctor: {{.DoctorName}}</li>
        <li>Date: {{.Date}}</li>
        <li>Time: {{.Time}}</li>
      </ul>
    </div>
    <p style="margin:12px 0 6px;"><strong>What to Expect</strong></p>
    <ul style="margin:0 0 12px; padding-left:18px;">
      <li>Please arrive 10 minutes early to complete any formalities.</li>
      <li>Bring any relevant medical records and a list of current medications.</li>
    </ul>
    <p style="margin:12px 0 6px;"><strong>Changes &amp; Cancellations</strong></p>
    <p style="margin:0 0 12px;">If you need to reschedule or cancel, please reply to this email at least 24 hours in advance.</p>
    {{- if .ContactEmail}}
    <hr style="border:none; border-top:1px solid #e5e7eb; margin:16px 0;" />
    <p style="margin:0; font-size:12px; color:#6b7280;">
      {{.ClinicName}}<br/>
      Email: <a href="mailto:{{.ContactEmail}}">{{.ContactEmail}}</a>
    </p>
    {{- end}}
  </div>
</div>
`

var (
	subjectTmpl = texttemplate.Must(texttemplate.New("subject").Parse(confirmationSubject))
	textTmpl    = texttemplate.Must(texttemplate.New("text").Parse(confirmationText))
	htmlTmpl    = htmltemplate.Must(htmltemplate.New("html").Parse(confirmationHTML))
)

// RenderConfirmation builds the booking confirmation email for the given recipient.
func RenderConfirmation(to string, data ConfirmationData) (EmailMessage, error) {
	if data.ClinicName == "" {
		data.ClinicName = DefaultClinicName
	}

	var subject, text, html bytes.Buffer
	if err := subjectTmpl.Execute(&subject, data); err != nil {
		return EmailMessage{}, fmt.Errorf("render subject: %w", err)
	}
	if err := textTmpl.Execute(&text, data); err != nil {
		return EmailMessage{}, fmt.Errorf("render text body: %w", err)
	}
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return EmailMessage{}, fmt.Errorf("render html body: %w", err)
	}

	return EmailMessage{
		To:      to,
		Subject: subject.String(),
		Body:    text.String(),
		HTML:    html.String(),
	}, nil
}
