package address

import (
	"errors"
	"fmt"
	"testing"

	peopledomain "giftwise-backend/internal/people/domain"
	peoplerepo "giftwise-backend/internal/people/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type captureNotifier struct {
	sent []string
	fail bool
}

func (n *captureNotifier) SendAddressRequest(recipientEmail, recipientName, message string) error {
	if n.fail {
		return errors.New("delivery failed")
	}
	n.sent = append(n.sent, recipientEmail)
	return nil
}

func setupResolverTest(t *testing.T) (*Resolver, *gorm.DB, *captureNotifier) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&peopledomain.RecipientProfile{}, &peopledomain.Connection{}, &AddressRequest{})
	require.NoError(t, err)

	notifier := &captureNotifier{}
	resolver := NewResolver(
		peoplerepo.NewProfileRepository(db),
		peoplerepo.NewConnectionRepository(db),
		NewRequestRepository(db),
		notifier,
	)
	return resolver, db, notifier
}

func TestResolveUserVerifiedAddress(t *testing.T) {
	resolver, db, _ := setupResolverTest(t)

	require.NoError(t, db.Create(&peopledomain.Connection{
		ID: "conn-1", UserID: "giver-1", RecipientID: "rec-1",
		Status: peopledomain.ConnectionStatusAccepted,
	}).Error)
	require.NoError(t, db.Create(&peopledomain.RecipientProfile{
		ID: "rec-1", DisplayName: "Alice",
		Street: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701",
		AddressVerified: true,
	}).Error)

	resolved, err := resolver.Resolve("giver-1", "rec-1")
	require.NoError(t, err)
	require.NotNil(t, resolved)

	assert.Equal(t, SourceUserVerified, resolved.Source)
	assert.True(t, resolved.Verified)
	assert.False(t, resolved.NeedsConfirmation)
	assert.Equal(t, "1 Main St", resolved.Address.Street)
}

func TestResolveUserVerifiedBeatsGiverProvided(t *testing.T) {
	resolver, db, _ := setupResolverTest(t)

	require.NoError(t, db.Create(&peopledomain.Connection{
		ID: "conn-1", UserID: "giver-1", RecipientID: "rec-1",
		Status: peopledomain.ConnectionStatusAccepted,
	}).Error)
	require.NoError(t, db.Create(&peopledomain.RecipientProfile{
		ID: "rec-1", Street: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701",
	}).Error)
	require.NoError(t, db.Create(&peopledomain.Connection{
		ID: "conn-2", UserID: "giver-1", RecipientID: "rec-1",
		Status: peopledomain.ConnectionStatusPending,
		Street: "9 Other Rd", City: "Shelbyville", State: "IL", PostalCode: "62565",
	}).Error)

	resolved, err := resolver.Resolve("giver-1", "rec-1")
	require.NoError(t, err)
	require.NotNil(t, resolved)

	assert.Equal(t, SourceUserVerified, resolved.Source)
	assert.Equal(t, "1 Main St", resolved.Address.Street)
}

func TestResolveGiverProvidedFallback(t *testing.T) {
	resolver, db, _ := setupResolverTest(t)

	// Accepted connection exists but the profile has no usable address
	require.NoError(t, db.Create(&peopledomain.Connection{
		ID: "conn-1", UserID: "giver-1", RecipientID: "rec-1",
		Status: peopledomain.ConnectionStatusAccepted,
	}).Error)
	require.NoError(t, db.Create(&peopledomain.RecipientProfile{
		ID: "rec-1", Street: "1 Main St", City: "Springfield",
	}).Error)
	require.NoError(t, db.Create(&peopledomain.Connection{
		ID: "conn-2", UserID: "giver-1", RecipientID: "rec-1",
		Status: peopledomain.ConnectionStatusPending,
		Street: "9 Other Rd", City: "Shelbyville", State: "IL", PostalCode: "62565",
	}).Error)

	resolved, err := resolver.Resolve("giver-1", "rec-1")
	require.NoError(t, err)
	require.NotNil(t, resolved)

	assert.Equal(t, SourceGiverProvided, resolved.Source)
	assert.False(t, resolved.Verified)
	assert.True(t, resolved.NeedsConfirmation)
	assert.Equal(t, "9 Other Rd", resolved.Address.Street)
}

func TestResolveNothingFound(t *testing.T) {
	resolver, db, _ := setupResolverTest(t)

	// A pending invitation without an address does not count
	require.NoError(t, db.Create(&peopledomain.Connection{
		ID: "conn-1", UserID: "giver-1", RecipientID: "rec-1",
		Status: peopledomain.ConnectionStatusPending,
	}).Error)

	resolved, err := resolver.Resolve("giver-1", "rec-1")
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestResolveIgnoresOtherGiversConnections(t *testing.T) {
	resolver, db, _ := setupResolverTest(t)

	require.NoError(t, db.Create(&peopledomain.Connection{
		ID: "conn-1", UserID: "giver-2", RecipientID: "rec-1",
		Status: peopledomain.ConnectionStatusPending,
		Street: "9 Other Rd", City: "Shelbyville", State: "IL", PostalCode: "62565",
	}).Error)

	resolved, err := resolver.Resolve("giver-1", "rec-1")
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestRequestAddressRecordsBeforeSending(t *testing.T) {
	resolver, db, notifier := setupResolverTest(t)

	request, err := resolver.RequestAddress("giver-1", "bob@example.com", "Bob", "Please share your address")
	require.NoError(t, err)
	require.NotNil(t, request)
	assert.NotEmpty(t, request.ID)
	assert.Equal(t, RequestStatusSent, request.Status)
	assert.Equal(t, []string{"bob@example.com"}, notifier.sent)

	var count int64
	db.Model(&AddressRequest{}).Count(&count)
	assert.Equal(t, int64(1), count)

	requested, err := resolver.HasRequested("giver-1", "bob@example.com")
	require.NoError(t, err)
	assert.True(t, requested)

	requested, err = resolver.HasRequested("giver-1", "carol@example.com")
	require.NoError(t, err)
	assert.False(t, requested)
}

func TestRequestAddressSwallowsSendFailure(t *testing.T) {
	resolver, db, notifier := setupResolverTest(t)
	notifier.fail = true

	request, err := resolver.RequestAddress("giver-1", "bob@example.com", "Bob", "")
	require.NoError(t, err, "a failed send must not fail the request")
	require.NotNil(t, request)

	var count int64
	db.Model(&AddressRequest{}).Count(&count)
	assert.Equal(t, int64(1), count, "the record is the source of truth")
}

func TestRequestAddressRequiresEmail(t *testing.T) {
	resolver, _, _ := setupResolverTest(t)

	_, err := resolver.RequestAddress("giver-1", "", "Bob", "")
	assert.Error(t, err)
}
