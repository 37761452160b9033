package repository

import (
	"context"
	"errors"

	listingDomain "github.com/ema-residences/service-reservation/internal/domain/listing"
	userDomain "github.com/ema-residences/service-reservation/internal/domain/user"
	"github.com/ema-residences/service-reservation/internal/platform/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListingModel maps the residences table owned by the listing service. Read-only here.
type ListingModel struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID  uuid.UUID `gorm:"type:uuid;not null"`
	Title    string    `gorm:"type:varchar(200)"`
	Location string    `gorm:"type:varchar(200)"`
	Price    int64     `gorm:"column:price;not null"`
}

func (ListingModel) TableName() string { return "residences" }

// UserModel maps the users table owned by the identity service. Read-only here.
type UserModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Email     string    `gorm:"type:varchar(255)"`
	FirstName string    `gorm:"type:varchar(100)"`
	LastName  string    `gorm:"type:varchar(100)"`
}

func (UserModel) TableName() string { return "users" }

// GormListingDirectory resolves listings from the shared database.
type GormListingDirectory struct {
	db *gorm.DB
}

func NewGormListingDirectory(db *gorm.DB) *GormListingDirectory {
	return &GormListingDirectory{db: db}
}

func (r *GormListingDirectory) FindByID(ctx context.Context, id uuid.UUID) (*listingDomain.Listing, error) {
	var model ListingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Listing", id.String())
		}
		return nil, translateError("find listing", err)
	}
	return listingDomain.Reconstruct(model.ID, model.OwnerID, model.Title, model.Location, model.Price), nil
}

// GormUserDirectory resolves user contact cards from the shared database.
type GormUserDirectory struct {
	db *gorm.DB
}

func NewGormUserDirectory(db *gorm.DB) *GormUserDirectory {
	return &GormUserDirectory{db: db}
}

func (r *GormUserDirectory) FindByID(ctx context.Context, id uuid.UUID) (*userDomain.User, error) {
	var model UserModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("User", id.String())
		}
		return nil, translateError("find user", err)
	}
	return userDomain.Reconstruct(model.ID, model.Email, model.FirstName, model.LastName), nil
}
