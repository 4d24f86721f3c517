package database

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const clientIDPrefix = "signalduino-"

// ClientRepository stores the host client id
type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// NewClientID returns a fresh signalduino-<32 hex digit> id
func NewClientID() string {
	return clientIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// GetOrCreate returns the stored client id, generating and storing one on
// first use
func (r *ClientRepository) GetOrCreate() (string, error) {
	var id ClientIdentity
	err := r.db.Order("id ASC").First(&id).Error
	if err == nil {
		return id.ClientID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	id = ClientIdentity{ClientID: NewClientID()}
	if err := r.db.Create(&id).Error; err != nil {
		return "", err
	}
	return id.ClientID, nil
}
