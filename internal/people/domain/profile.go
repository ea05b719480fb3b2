package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// StringList stores a []string as a JSON column
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	return string(b), err
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("unsupported type for StringList")
	}
}

// RecipientProfile holds what we know about a gift recipient: stated
// preferences, free-text bio and demographic signals, plus the shipping
// address they maintain on their own profile.
type RecipientProfile struct {
	ID              string     `json:"id" gorm:"primaryKey"`
	DisplayName     string     `json:"display_name"`
	Email           string     `json:"email" gorm:"index"`
	GiftPreferences StringList `json:"gift_preferences" gorm:"type:text"`
	Interests       StringList `json:"interests" gorm:"type:text"`
	Bio             string     `json:"bio,omitempty"`
	BirthYear       int        `json:"birth_year,omitempty"`

	// Shipping address maintained by the recipient themselves
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
	// Set when an external deliverability check has passed
	AddressVerified bool `json:"address_verified"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
