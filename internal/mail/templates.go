package mail

import (
	"bytes"
	"fmt"
	"html/template"
)

var (
	confirmationTmpl = template.Must(template.New("confirm").Parse(
		`<h3>Welcome, you are one step away from registering</h3>
<a href="{{.URL}}">Click to confirm your email</a>
<p>Please, confirm your email within {{.Hours}}h</p>`))

	recoveryTmpl = template.Must(template.New("recover").Parse(
		`<h3>Recover your password</h3>
<a href="{{.URL}}">Click to recover your password</a>
<p>This link will expire within {{.Hours}}h</p>`))
)

type linkData struct {
	URL   string
	Hours int
}

// ConfirmationEmail builds the message carrying an email confirmation link
func ConfirmationEmail(to, url string, hours int) (Message, error) {
	html, err := render(confirmationTmpl, linkData{URL: url, Hours: hours})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "Confirmation email",
		HTML:    html,
		Text:    fmt.Sprintf("Confirm your email within %dh: %s", hours, url),
	}, nil
}

// RecoveryEmail builds the message carrying a password recovery link
func RecoveryEmail(to, url string, hours int) (Message, error) {
	html, err := render(recoveryTmpl, linkData{URL: url, Hours: hours})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "Recover your password",
		HTML:    html,
		Text:    fmt.Sprintf("Recover your password within %dh: %s", hours, url),
	}, nil
}

func render(t *template.Template, data linkData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
