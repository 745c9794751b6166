package engine

import (
	"fmt"

	"github.com/ledgerline/billrun/internal/model"
	"github.com/ledgerline/billrun/internal/service"
)

// emailText holds the localized fragments of outgoing bill emails, keyed by
// the bill's language.
type emailText struct {
	billSubject     string
	reminderSubject string
	greeting        string
	billIntro       string
	reminderIntro   string
	payUntil        string
	reference       string
	closing         string
}

var emailTexts = map[string]emailText{
	"en": {
		billSubject:     "Invoice: %s",
		reminderSubject: "Payment reminder: %s",
		greeting:        "Dear %s,",
		billIntro:       "please find attached your invoice over %s %s.",
		reminderIntro:   "the invoice over %s %s is still unpaid.",
		payUntil:        "Payable until %s.",
		reference:       "Payment reference: %s",
		closing:         "Kind regards,\n%s",
	},
	"de": {
		billSubject:     "Rechnung: %s",
		reminderSubject: "Zahlungserinnerung: %s",
		greeting:        "Guten Tag %s,",
		billIntro:       "im Anhang finden Sie Ihre Rechnung über %s %s.",
		reminderIntro:   "die Rechnung über %s %s ist noch offen.",
		payUntil:        "Zahlbar bis %s.",
		reference:       "Zahlungsreferenz: %s",
		closing:         "Freundliche Grüsse\n%s",
	},
	"fr": {
		billSubject:     "Facture : %s",
		reminderSubject: "Rappel de paiement : %s",
		greeting:        "Bonjour %s,",
		billIntro:       "veuillez trouver ci-joint votre facture de %s %s.",
		reminderIntro:   "la facture de %s %s est toujours impayée.",
		payUntil:        "Payable jusqu'au %s.",
		reference:       "Référence de paiement : %s",
		closing:         "Meilleures salutations\n%s",
	},
	"it": {
		billSubject:     "Fattura: %s",
		reminderSubject: "Promemoria di pagamento: %s",
		greeting:        "Buongiorno %s,",
		billIntro:       "in allegato trova la sua fattura di %s %s.",
		reminderIntro:   "la fattura di %s %s risulta ancora aperta.",
		payUntil:        "Pagabile entro il %s.",
		reference:       "Riferimento di pagamento: %s",
		closing:         "Cordiali saluti\n%s",
	},
}

func textsFor(language string) emailText {
	if text, ok := emailTexts[language]; ok {
		return text
	}
	return emailTexts["en"]
}

// composeBillEmail addresses the bill to the contact, from the creditor,
// with the creditor in copy so the payee keeps a record.
func composeBillEmail(fallbackFrom string, bill *model.Bill, creditor *model.Creditor, contact *model.Contact) service.Email {
	text := textsFor(bill.Language)
	body := fmt.Sprintf(text.greeting, contact.Name) + "\n\n" +
		fmt.Sprintf(text.billIntro, bill.Currency, bill.Amount.StringFixed(2)) + "\n" +
		fmt.Sprintf(text.payUntil, bill.DueDate.Format("02.01.2006")) + "\n" +
		fmt.Sprintf(text.reference, bill.ReferenceNumber) + "\n\n" +
		fmt.Sprintf(text.closing, creditor.Name)

	return service.Email{
		From:    senderAddress(creditor, fallbackFrom),
		To:      []string{contact.Email},
		CC:      []string{creditor.Email},
		Subject: fmt.Sprintf(text.billSubject, bill.Description),
		Body:    body,
	}
}

// composeReminderEmail goes to the creditor: it flags an unpaid bill to the
// payee, not the debtor.
func composeReminderEmail(fallbackFrom string, bill *model.Bill, creditor *model.Creditor, contact *model.Contact) service.Email {
	text := textsFor(bill.Language)
	body := fmt.Sprintf(text.greeting, creditor.Name) + "\n\n" +
		fmt.Sprintf(text.reminderIntro, bill.Currency, bill.Amount.StringFixed(2)) + "\n" +
		fmt.Sprintf(text.reference, bill.ReferenceNumber) + "\n\n" +
		contact.Name + " <" + contact.Email + ">"

	return service.Email{
		From:    senderAddress(creditor, fallbackFrom),
		To:      []string{creditor.Email},
		Subject: fmt.Sprintf(text.reminderSubject, bill.Description),
		Body:    body,
	}
}

func senderAddress(creditor *model.Creditor, fallback string) string {
	if creditor.Email != "" {
		return creditor.Email
	}
	return fallback
}
