// Package sms sends text messages for the notification SMS channel through
// Twilio (TwilioSender) or, in development, by logging them (DevSender).
//
//	sender, err := sms.New(cfg, log)
//	if err != nil {
//	    return err
//	}
//	err = sender.SendSMS(ctx, sms.SendSMSParams{To: "+15550100", Body: sms.Truncate(body)})
package sms
