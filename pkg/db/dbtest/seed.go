package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/ledgerly-backend/pkg/db/models"
)

// SeedUser inserts an account owner.
func SeedUser(t testing.TB, conn *gorm.DB, fullName string) models.User {
	t.Helper()
	user := models.User{
		ID:       uuid.New(),
		Email:    fmt.Sprintf("%s@ledgerly.test", uuid.NewString()[:8]),
		FullName: fullName,
	}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedProject inserts a project owned by userID.
func SeedProject(t testing.TB, conn *gorm.DB, userID uuid.UUID, name string) models.Project {
	t.Helper()
	project := models.Project{ID: uuid.New(), UserID: userID, Name: name}
	if err := conn.Create(&project).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return project
}

// SeedClient inserts a client owned by userID.
func SeedClient(t testing.TB, conn *gorm.DB, userID uuid.UUID, name string, organization *string) models.Client {
	t.Helper()
	client := models.Client{
		ID:           uuid.New(),
		UserID:       userID,
		Name:         name,
		Organization: organization,
		Email:        fmt.Sprintf("%s@client.test", uuid.NewString()[:8]),
	}
	if err := conn.Create(&client).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return client
}
