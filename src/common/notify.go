package common

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"qrshop/src/lib"
	awslib "qrshop/src/lib/aws"
	"qrshop/src/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesTypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Dispatch performs the actual provider send for one outbox message. Missing
// provider credentials degrade to log-and-skip so an unconfigured channel
// never wedges the queue.
func Dispatch(msg *models.OutboxMessage) error {
	switch msg.Kind {
	case OUTBOX_KIND_SMS:
		return sendSMS(msg)
	case OUTBOX_KIND_OWNER_EMAIL:
		return sendOwnerEmail(msg)
	case OUTBOX_KIND_DIGITAL_EMAIL:
		return sendDigitalEmail(msg)
	case OUTBOX_KIND_BOOKING_EMAIL:
		return sendBookingEmail(msg)
	default:
		return fmt.Errorf("unknown outbox kind [%s]", msg.Kind)
	}
}

func sendSMS(msg *models.OutboxMessage) error {
	if os.Getenv("SMS_ENABLED") != "true" {
		log.Printf("[notify] SMS disabled, skipping message to [%s]\n", msg.Recipient)
		return nil
	}
	body, _ := msg.Payload["message"].(string)
	return awslib.SNSPublishSMS(msg.Recipient, body)
}

func sendOwnerEmail(msg *models.OutboxMessage) error {
	from := os.Getenv("NOTIFY_FROM_EMAIL")
	if from == "" {
		log.Printf("[notify] No sender address configured, skipping owner email to [%s]\n", msg.Recipient)
		return nil
	}
	amount := fmt.Sprint(msg.Payload["amount_cents"])
	body := fmt.Sprintf(
		"You have a new sale on %s.\n\nItem: %s\nMode: %s\nAmount (cents): %s\n",
		msg.Payload["handle"], msg.Payload["item_title"], msg.Payload["mode"], amount,
	)
	return awslib.SESSendMessage(
		aws.String(from),
		&sesTypes.Destination{ToAddresses: []string{msg.Recipient}},
		&sesTypes.Message{
			Subject: &sesTypes.Content{Data: aws.String(msg.Subject)},
			Body: &sesTypes.Body{
				Text: &sesTypes.Content{Data: aws.String(body)},
			},
		},
	)
}

func sendDigitalEmail(msg *models.OutboxMessage) error {
	from := os.Getenv("NOTIFY_FROM_EMAIL")
	if from == "" {
		log.Printf("[notify] No sender address configured, skipping digital delivery to [%s]\n", msg.Recipient)
		return nil
	}
	links := make([]string, 0)
	if raw, ok := msg.Payload["links"].([]any); ok {
		for _, l := range raw {
			if s, ok := l.(string); ok {
				links = append(links, s)
			}
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Thanks for your purchase of %s.\n\nYour downloads:\n", msg.Payload["title"])
	for _, l := range links {
		fmt.Fprintf(&b, "  %s\n", l)
	}
	return lib.SendMail(&lib.SendMailInput{
		From:     from,
		FromName: fmt.Sprint(msg.Payload["handle"]),
		To:       []string{msg.Recipient},
		Subject:  msg.Subject,
		Body:     b.String(),
	})
}

func sendBookingEmail(msg *models.OutboxMessage) error {
	from := os.Getenv("NOTIFY_FROM_EMAIL")
	if from == "" {
		log.Printf("[notify] No sender address configured, skipping booking email to [%s]\n", msg.Recipient)
		return nil
	}
	handle := fmt.Sprint(msg.Payload["handle"])
	body := fmt.Sprintf("Your booking with %s is confirmed.\n", handle)
	ics := ""
	start, serr := time.Parse(time.RFC3339, fmt.Sprint(msg.Payload["start_time"]))
	end, eerr := time.Parse(time.RFC3339, fmt.Sprint(msg.Payload["end_time"]))
	if serr == nil && eerr == nil {
		body = fmt.Sprintf("Your booking with %s is confirmed for %s.\n", handle, start.Format(time.RFC1123))
		ics = lib.BuildICS(
			fmt.Sprintf("Booking with %s", handle),
			fmt.Sprintf("Booking reference %s", msg.Payload["booking_id"]),
			start, end,
		)
	}
	return lib.SendMail(&lib.SendMailInput{
		From:     from,
		FromName: handle,
		To:       []string{msg.Recipient},
		Subject:  msg.Subject,
		Body:     body,
		ICS:      ics,
	})
}
