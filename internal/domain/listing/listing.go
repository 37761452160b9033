package listing

import (
	"context"

	"github.com/google/uuid"
)

// Listing is a residence as seen by the reservation service. The listing service owns it;
// this service only reads owner and price.
type Listing struct {
	id          uuid.UUID
	ownerID     uuid.UUID
	title       string
	location    string
	nightlyRate int64
}

// Reconstruct rebuilds a Listing from persistence.
func Reconstruct(id, ownerID uuid.UUID, title, location string, nightlyRate int64) *Listing {
	return &Listing{
		id:          id,
		ownerID:     ownerID,
		title:       title,
		location:    location,
		nightlyRate: nightlyRate,
	}
}

func (l *Listing) ID() uuid.UUID      { return l.id }
func (l *Listing) OwnerID() uuid.UUID { return l.ownerID }
func (l *Listing) Title() string      { return l.title }
func (l *Listing) Location() string   { return l.location }
func (l *Listing) NightlyRate() int64 { return l.nightlyRate }

// IsOwnedBy reports whether userID owns the listing.
func (l *Listing) IsOwnedBy(userID uuid.UUID) bool {
	return l.ownerID == userID
}

// ListingDirectory resolves listings by id.
type ListingDirectory interface {
	// FindByID returns the listing or a NotFound error.
	FindByID(ctx context.Context, id uuid.UUID) (*Listing, error)
}
