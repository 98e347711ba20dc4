package notification

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

const signature = "--\nStowarzyszenie ZATYRANI\nwww.zatyrani.pl"

var htmlLayout = htmltemplate.Must(htmltemplate.New("layout").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
<h2>{{.Title}}</h2>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{if .Highlight}}<div style="background-color: #f9f9f9; padding: 20px; margin: 20px 0; border-left: 4px solid #4CAF50;"><strong>{{.Highlight}}</strong></div>
{{end}}{{if .List}}<ul>{{range .List}}<li>{{.}}</li>{{end}}</ul>
{{end}}{{if .LinkURL}}<p style="text-align: center; margin: 30px 0;"><a href="{{.LinkURL}}" style="background-color: #4CAF50; color: white; padding: 15px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">{{.LinkText}}</a></p>
{{end}}<hr style="border: none; border-top: 1px solid #ccc; margin: 30px 0;">
<p style="color: #666; font-size: 14px;">Stowarzyszenie ZATYRANI<br><a href="https://zatyrani.pl">www.zatyrani.pl</a></p>
</div>`))

var textLayout = texttemplate.Must(texttemplate.New("layout").Parse(`{{range .Paragraphs}}{{.}}

{{end}}{{if .Highlight}}{{.Highlight}}

{{end}}{{range .List}}- {{.}}
{{end}}{{if .List}}
{{end}}{{if .LinkURL}}{{.LinkText}}: {{.LinkURL}}

{{end}}` + signature))

type emailContent struct {
	Title      string
	Paragraphs []string
	Highlight  string
	List       []string
	LinkURL    string
	LinkText   string
}

func render(kind, to, subject string, c emailContent) Message {
	var html, text bytes.Buffer
	// layouts are static, execution can only fail on writer errors
	_ = htmlLayout.Execute(&html, c)
	_ = textLayout.Execute(&text, c)
	return Message{
		Channel: ChannelEmail,
		Kind:    kind,
		To:      []string{to},
		Subject: subject,
		Text:    text.String(),
		HTML:    html.String(),
	}
}

// Participant is the summary of a participant used in e-mails.
type Participant struct {
	FullName     string
	RaceCategory string
}

// VerificationCodeEmail carries a NieboCross one-time code. purpose is
// "registration" or "login".
func VerificationCodeEmail(to, code, purpose string) Message {
	action := "zalogować"
	if purpose == "registration" {
		action = "zarejestrować"
	}
	return render("verification_code", to, "Kod weryfikacyjny - NieboCross", emailContent{
		Title:      "Kod weryfikacyjny - NieboCross 2026",
		Paragraphs: []string{"Twój kod weryfikacyjny:", "Kod jest ważny przez 10 minut.", fmt.Sprintf("Jeśli nie próbowałeś(łaś) się %s na NieboCross, zignoruj tę wiadomość.", action)},
		Highlight:  code,
	})
}

// RegistrationConfirmationEmail is sent after participants are added.
func RegistrationConfirmationEmail(to, contactPerson string, participants []Participant, totalAmount, charityAmount float64, paymentURL, panelURL string) Message {
	list := make([]string, 0, len(participants))
	for _, p := range participants {
		list = append(list, fmt.Sprintf("%s - %s", p.FullName, strings.ReplaceAll(p.RaceCategory, "_", " ")))
	}
	return render("registration_confirmation", to, "Potwierdzenie rejestracji - NieboCross 2026", emailContent{
		Title: "Potwierdzenie rejestracji - NieboCross 2026",
		Paragraphs: []string{
			fmt.Sprintf("Witaj %s,", contactPerson),
			"Dziękujemy za rejestrację na wydarzenie NieboCross 2026! Zarejestrowani uczestnicy:",
		},
		List:      list,
		Highlight: fmt.Sprintf("Do zapłaty: %s zł (w tym %.2f zł na cel charytatywny)", FormatAmount(totalAmount), charityAmount),
		LinkURL:   paymentURL,
		LinkText:  "Opłać rejestrację",
	}.withFooter("Status płatności i potwierdzenie znajdziesz w panelu: "+panelURL))
}

// PaymentConfirmationEmail is sent once the gateway confirms a payment.
func PaymentConfirmationEmail(to, contactPerson string, totalAmount, charityAmount float64, transactionID, panelURL string) Message {
	return render("payment_confirmation", to, "Potwierdzenie płatności - NieboCross 2026", emailContent{
		Title: "✓ Płatność potwierdzona!",
		Paragraphs: []string{
			fmt.Sprintf("Witaj %s,", contactPerson),
			"Twoja płatność została przyjęta!",
			fmt.Sprintf("Dziękujemy za wpłatę! %.2f zł zostanie przekazane na cel charytatywny.", charityAmount),
		},
		Highlight: fmt.Sprintf("Kwota: %s zł, ID transakcji: %s", FormatAmount(totalAmount), transactionID),
		LinkURL:   panelURL,
		LinkText:  "Pobierz potwierdzenie",
	})
}

// PaymentReminderEmail nudges registrations that still have a pending payment.
func PaymentReminderEmail(to, contactPerson string, totalAmount float64, paymentURL string) Message {
	return render("payment_reminder", to, "Przypomnienie o płatności - NieboCross 2026", emailContent{
		Title: "Przypomnienie o płatności - NieboCross 2026",
		Paragraphs: []string{
			fmt.Sprintf("Witaj %s,", contactPerson),
			"Twoja rejestracja na NieboCross 2026 nie została jeszcze opłacona. Miejsca są ograniczone, a nieopłacone zgłoszenia mogą zostać usunięte.",
		},
		Highlight: fmt.Sprintf("Do zapłaty: %s zł", FormatAmount(totalAmount)),
		LinkURL:   paymentURL,
		LinkText:  "Opłać rejestrację",
	})
}

// LoginCodeSMS carries a member's one-time login code.
func LoginCodeSMS(phone, code string) Message {
	return Message{
		Channel: ChannelSMS,
		Kind:    "member_login_code",
		To:      []string{phone},
		Text:    fmt.Sprintf("Twój kod do logowania do strony Zatyranych: %s", code),
	}
}

// FormatAmount prints whole złoty without decimals and everything else with two.
func FormatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

func (c emailContent) withFooter(p string) emailContent {
	c.Paragraphs = append(c.Paragraphs, p)
	return c
}
