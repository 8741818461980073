package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cserv-ai/cserv/internal/agents"
	"github.com/cserv-ai/cserv/internal/rbac"
	"github.com/cserv-ai/cserv/internal/shared"
	"github.com/cserv-ai/cserv/internal/users"
)

type seedAccount struct {
	username  string
	password  string
	name      string
	role      rbac.Role
	protected bool
}

var seedAccounts = []seedAccount{
	{username: "admin", password: "Admin@123", name: "Administrator", role: rbac.RoleSuperAdmin, protected: true},
	{username: "operator", password: "Op@123", name: "Team Operator", role: rbac.RoleOperator},
}

// SeedAgents is the initial customer-service directory.
var SeedAgents = []agents.Agent{
	{EmpCode: "EP0200", Name: "Shrikant Nayak", Level: 0},
	{EmpCode: "EP0269", Name: "Ritu Singh", Level: 0},
	{EmpCode: "EP0505", Name: "Rohit Kumar Agarwal", Level: 0},
	{EmpCode: "EP0563", Name: "Himanshi Khowal", Level: 2},
	{EmpCode: "EP0564", Name: "Chetan Goel", Level: 1},
	{EmpCode: "EP0523", Name: "Sushant Kumar Suman", Level: 2},
	{EmpCode: "EP0560", Name: "Mohit Singh", Level: 3},
	{EmpCode: "EP0678", Name: "Abhay Pratap", Level: 4},
	{EmpCode: "EP0726", Name: "Swagata Bhoumik", Level: 6},
	{EmpCode: "EP0848", Name: "Deepak Gupta", Level: 7},
	{EmpCode: "EP0442", Name: "Shivam Garg", Level: 1},
	{EmpCode: "EP0524", Name: "Anurag Tiwari", Level: 4},
	{EmpCode: "EP0567", Name: "Triloki Varshney", Level: 1},
	{EmpCode: "EP0557", Name: "Sujit Kumar", Level: 3},
	{EmpCode: "EP0741", Name: "Amarnath Vishwakarma", Level: 5},
	{EmpCode: "EP0673", Name: "Dhruv Mishra", Level: 5},
	{EmpCode: "EP0798", Name: "Naveen Kumar S", Level: 6},
}

func init() {
	for i := range SeedAgents {
		SeedAgents[i].Department = "Customer Service"
		SeedAgents[i].Location = "Gurgaon-US"
	}
}

// Seed creates the default accounts and agent directory when missing. It is
// safe to run repeatedly.
func Seed(ctx context.Context, stores Stores, hashCost int, logger *slog.Logger) error {
	if hashCost == 0 {
		hashCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now().UTC()
	for _, acc := range seedAccounts {
		_, err := stores.Users.FindByUsername(ctx, acc.username)
		if err == nil {
			continue
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(acc.password), hashCost)
		if err != nil {
			return fmt.Errorf("seed %s: %w", acc.username, err)
		}
		u := users.User{
			Username:     acc.username,
			Name:         acc.name,
			Role:         acc.role,
			Permissions:  rbac.DefaultPermissions(acc.role),
			PasswordHash: string(hash),
			Active:       true,
			Protected:    acc.protected,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err = stores.Users.WithTx(ctx, func(ctx context.Context, tx users.TxRepository) error {
			_, err := tx.Insert(ctx, u)
			return err
		})
		if err != nil && !errors.Is(err, shared.ErrConflict) {
			return fmt.Errorf("seed %s: %w", acc.username, err)
		}
		logger.Info("seeded account", slog.String("username", acc.username), slog.String("role", string(acc.role)))
	}

	existing, err := stores.Agents.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		if err := stores.Agents.Replace(ctx, SeedAgents); err != nil {
			return fmt.Errorf("seed agents: %w", err)
		}
		logger.Info("seeded agents", slog.Int("count", len(SeedAgents)))
	}
	return nil
}
