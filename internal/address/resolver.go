package address

import (
	"fmt"
	"log"

	peoplerepo "giftwise-backend/internal/people/repository"
)

// Source tags where a resolved address came from
type Source string

const (
	SourceUserVerified  Source = "user_verified"
	SourceGiverProvided Source = "giver_provided"
	SourceMissing       Source = "missing"
)

// Address is a shipping address payload
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country,omitempty"`
}

// Valid reports structural validity: all four core fields present and
// non-empty. Deliverability checking is a separate external capability.
func (a Address) Valid() bool {
	return a.Street != "" && a.City != "" && a.State != "" && a.PostalCode != ""
}

// Resolved is the outcome of one resolution call. It is computed on
// demand and never persisted as its own entity; callers keep only the
// metadata subset on the execution record.
type Resolved struct {
	Address           Address `json:"address"`
	Source            Source  `json:"source"`
	Verified          bool    `json:"verified"`
	NeedsConfirmation bool    `json:"needs_confirmation"`
}

// RequestNotifier delivers an address-request message to a recipient.
// Fire-and-forget: failures are logged, never propagated, because the
// request record itself is the source of truth.
type RequestNotifier interface {
	SendAddressRequest(recipientEmail, recipientName, message string) error
}

// Resolver finds the best available shipping address for a recipient.
// Pure read-then-compute; safe for concurrent use across recipients.
type Resolver struct {
	profiles    peoplerepo.ProfileRepository
	connections peoplerepo.ConnectionRepository
	requests    RequestRepository
	notifier    RequestNotifier
}

func NewResolver(profiles peoplerepo.ProfileRepository, connections peoplerepo.ConnectionRepository, requests RequestRepository, notifier RequestNotifier) *Resolver {
	return &Resolver{
		profiles:    profiles,
		connections: connections,
		requests:    requests,
		notifier:    notifier,
	}
}

// Resolve walks the address hierarchy in strict order, first success wins:
//  1. accepted connection whose recipient profile carries a valid address
//  2. pending invitation with a giver-provided address
//  3. nothing — returns nil, signalling that an address request is needed
func (r *Resolver) Resolve(userID, recipientID string) (*Resolved, error) {
	conn, err := r.connections.FindAccepted(userID, recipientID)
	if err != nil {
		return nil, err
	}
	if conn != nil {
		profile, err := r.profiles.FindByID(recipientID)
		if err != nil {
			return nil, err
		}
		if profile != nil {
			addr := Address{
				Street:     profile.Street,
				City:       profile.City,
				State:      profile.State,
				PostalCode: profile.PostalCode,
				Country:    profile.Country,
			}
			if addr.Valid() {
				return &Resolved{
					Address:           addr,
					Source:            SourceUserVerified,
					Verified:          profile.AddressVerified,
					NeedsConfirmation: false,
				}, nil
			}
		}
	}

	pending, err := r.connections.FindPendingWithAddress(userID, recipientID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return &Resolved{
			Address: Address{
				Street:     pending.Street,
				City:       pending.City,
				State:      pending.State,
				PostalCode: pending.PostalCode,
				Country:    pending.Country,
			},
			Source:            SourceGiverProvided,
			Verified:          false,
			NeedsConfirmation: true,
		}, nil
	}

	return nil, nil
}

// HasRequested reports whether an address request was already recorded
// for this giver/recipient pair, so callers can avoid duplicates
func (r *Resolver) HasRequested(userID, recipientEmail string) (bool, error) {
	count, err := r.requests.CountByUser(userID, recipientEmail)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RequestAddress records an address request and hands the message off to
// the notifier. The record is written first; a failed send is logged and
// swallowed.
func (r *Resolver) RequestAddress(userID, recipientEmail, recipientName, message string) (*AddressRequest, error) {
	if recipientEmail == "" {
		return nil, fmt.Errorf("recipient email is required")
	}

	request := &AddressRequest{
		UserID:         userID,
		RecipientEmail: recipientEmail,
		RecipientName:  recipientName,
		Message:        message,
		Status:         RequestStatusSent,
	}
	if err := r.requests.Create(request); err != nil {
		return nil, err
	}

	if r.notifier != nil {
		if err := r.notifier.SendAddressRequest(recipientEmail, recipientName, message); err != nil {
			log.Printf("[AddressResolver] Failed to send address request to %s: %v", recipientEmail, err)
		}
	}

	return request, nil
}
