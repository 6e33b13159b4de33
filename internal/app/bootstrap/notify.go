package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/medspa-sms-triage/internal/config"
	"github.com/wolfman30/medspa-sms-triage/internal/escalation"
	"github.com/wolfman30/medspa-sms-triage/internal/messaging"
	"github.com/wolfman30/medspa-sms-triage/internal/notify"
	"github.com/wolfman30/medspa-sms-triage/pkg/logging"
)

// BuildEmailSender prefers SendGrid, then SES, then a logging stub.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		logger.Info("staff email via sendgrid")
		return sg
	}
	if awsCfg != nil && cfg.SESFromEmail != "" {
		if ses := notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); ses != nil {
			logger.Info("staff email via ses")
			return ses
		}
	}
	logger.Warn("no email provider configured; staff email is logged only")
	return notify.NewStubEmailSender(logger)
}

// BuildAlerter fans alerts out to staff notifications, the alert queue and the clinical log,
// whichever are configured.
func BuildAlerter(cfg *appconfig.Config, svc *notify.Service, awsCfg *aws.Config, clinical *escalation.ClinicalLogAlerter, logger *logging.Logger) escalation.MultiAlerter {
	alerters := escalation.MultiAlerter{escalation.NewNotifyAlerter(svc)}
	if cfg.AlertQueueURL != "" && awsCfg != nil {
		logger.Info("publishing alerts to sqs", "queue_url", cfg.AlertQueueURL)
		alerters = append(alerters, escalation.NewQueueAlerter(sqs.NewFromConfig(*awsCfg), cfg.AlertQueueURL))
	}
	if clinical != nil {
		alerters = append(alerters, clinical)
	}
	return alerters
}

// BuildSender returns the Twilio sender when credentials exist and a logging sender otherwise.
// The concrete Twilio sender is returned too so the voice caller can share it.
func BuildSender(cfg *appconfig.Config, logger *logging.Logger) (messaging.Sender, *messaging.TwilioSender) {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFromNumber == "" {
		logger.Warn("twilio credentials missing; outbound sms is logged only")
		return messaging.NewLogSender(logger), nil
	}
	twilio := messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	return twilio, twilio
}
