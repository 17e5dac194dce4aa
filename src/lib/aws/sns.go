package aws

import (
	"context"
	"errors"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

var ErrNoClient = errors.New("aws client unavailable")

func GetSNSClient() *sns.Client {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Printf("Error loading default config: %s\n", err.Error())
		return nil
	}
	client := sns.NewFromConfig(cfg)
	return client
}

// SNSPublishSMS sends a transactional text message directly to a phone number.
func SNSPublishSMS(phone string, message string) error {
	c := GetSNSClient()
	if c == nil {
		return ErrNoClient
	}
	out, err := c.Publish(context.TODO(), &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(message),
	})
	if err != nil {
		log.Printf("Error publishing SMS: %s\n", err.Error())
		return err
	}
	log.Printf("Sent SMS with id: %s\n", *out.MessageId)
	return nil
}
