// Package email sends transactional email for the notification email channel.
//
// EmailSender is implemented by a Postmark client (NewPostmarkClient) and by
// DevSender, which writes each message to a directory as HTML plus a JSON
// metadata file. New picks Postmark when both tokens are configured:
//
//	var cfg email.Config
//	config.MustLoad(&cfg)
//
//	sender, err := email.New(cfg)
//	if err != nil {
//	    return err
//	}
//
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   "user@example.com",
//	    Subject:  "New comment on your post",
//	    BodyText: "alice commented on your post",
//	    Tag:      "new_comment",
//	})
//
// Parameters are validated before any provider call; invalid input yields
// ErrInvalidParams and provider failures ErrFailedToSendEmail.
package email
