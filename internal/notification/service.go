package notification

import (
	"context"
	"fmt"
	"log"

	"giftwise-backend/pkg/fcm"
)

// Service delivers user-facing notices over FCM. Every send is
// fire-and-forget: delivery failures are logged and swallowed, and
// deduplication is FCM's concern, not the engine's.
type Service struct {
	deviceRepo DeviceTokenRepository
	fcmClient  *fcm.Client
}

func NewService(deviceRepo DeviceTokenRepository, fcmClient *fcm.Client) *Service {
	return &Service{
		deviceRepo: deviceRepo,
		fcmClient:  fcmClient,
	}
}

// Notify pushes a notice to all of the user's registered devices
func (s *Service) Notify(userID, title, body string, data map[string]string) {
	if s.fcmClient == nil {
		log.Printf("[Notification] FCM disabled, dropping notice for user %s: %s", userID, title)
		return
	}

	tokens, err := s.deviceRepo.GetTokensByUserID(userID)
	if err != nil {
		log.Printf("[Notification] Failed to load device tokens for user %s: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	var tokenStrings []string
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	failedTokens, err := s.fcmClient.SendToDevices(context.Background(), tokenStrings, fcm.NotificationData{
		Title: title,
		Body:  body,
		Data:  data,
	})
	if err != nil {
		log.Printf("[Notification] Failed to notify user %s: %v", userID, err)
		return
	}

	// Prune tokens FCM rejected
	for _, token := range failedTokens {
		if err := s.deviceRepo.DeleteToken(token); err != nil {
			log.Printf("[Notification] Failed to prune dead token: %v", err)
		}
	}
}

// SendAddressRequest delivers an address-request message to a recipient.
// Recipients are identified by email; without a registered device the
// request is logged for the host's mail pipeline to pick up.
func (s *Service) SendAddressRequest(recipientEmail, recipientName, message string) error {
	if recipientEmail == "" {
		return fmt.Errorf("recipient email is required")
	}
	// Outbound email delivery is owned by the host system; the engine
	// only hands the message off
	log.Printf("[Notification] Address request queued for %s (%s): %s", recipientEmail, recipientName, message)
	return nil
}
