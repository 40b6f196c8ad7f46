// Package directory resolves the users, projects and clients the agreement
// workflow references. Those records are owned by the CRUD surface; this
// package only reads them, always scoped to the calling owner.
package directory

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerly-backend/pkg/db/dbctx"
	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
)

// Repository reads owner-scoped directory records.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindUser loads an account owner. Returns gorm.ErrRecordNotFound when absent.
func (r *Repository) FindUser(dbc dbctx.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := dbc.DB(r.db).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ProjectOwnedBy reports whether projectID exists and belongs to ownerID.
func (r *Repository) ProjectOwnedBy(dbc dbctx.Context, ownerID, projectID uuid.UUID) (bool, error) {
	var project models.Project
	err := dbc.DB(r.db).
		Select("id").
		Where("id = ? AND user_id = ?", projectID, ownerID).
		First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FindClientsOwnedBy resolves ids to the owner's clients. Ids that do not
// resolve are omitted; the result keeps the order of ids.
func (r *Repository) FindClientsOwnedBy(dbc dbctx.Context, ownerID uuid.UUID, ids []uuid.UUID) ([]models.Client, error) {
	if len(ids) == 0 {
		return []models.Client{}, nil
	}
	var rows []models.Client
	if err := dbc.DB(r.db).
		Where("user_id = ? AND id IN ?", ownerID, ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Client, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	ordered := make([]models.Client, 0, len(rows))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if row, ok := byID[id]; ok {
			ordered = append(ordered, row)
		}
	}
	return ordered, nil
}

// FindClient loads a client without owner scoping. Only the token path uses
// it, where the link row already binds the client to the agreement.
func (r *Repository) FindClient(dbc dbctx.Context, clientID uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := dbc.DB(r.db).Where("id = ?", clientID).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}
