// Command create_admin adds an administrator account directly to the database,
// bypassing the registration and approval flow.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/raushankrgupta/gait-speed-service/config"
	"github.com/raushankrgupta/gait-speed-service/models"
	"github.com/raushankrgupta/gait-speed-service/store"
	"github.com/raushankrgupta/gait-speed-service/utils"
	"golang.org/x/crypto/bcrypt"
)

type adminOptions struct {
	Username     string
	Password     string
	Name         string
	Email        string
	Organization string
	Phone        string
	Role         string
}

func (o adminOptions) validate() error {
	var problems []string
	if utils.RuneLen(o.Username) < 3 {
		problems = append(problems, "username must be at least 3 characters")
	}
	if msg := utils.PasswordProblem(o.Password); msg != "" {
		problems = append(problems, msg)
	}
	if o.Name == "" {
		problems = append(problems, "name is required")
	}
	if !utils.IsValidEmail(o.Email) {
		problems = append(problems, "email is invalid")
	}
	if !utils.IsValidPhone(o.Phone) {
		problems = append(problems, "phone must look like 09xxxxxxxx")
	}
	if o.Role != models.RoleAdmin && o.Role != models.RoleSuperAdmin {
		problems = append(problems, "role must be admin or superadmin")
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// createAdmin stores an active, verified account. Existing usernames are never
// overwritten and only one superadmin may exist.
func createAdmin(ctx context.Context, admins store.AdminStore, opts adminOptions, cost int) (*models.Admin, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if _, err := admins.FindByUsername(ctx, opts.Username); err == nil {
		return nil, fmt.Errorf("username %q already exists", opts.Username)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if opts.Role == models.RoleSuperAdmin {
		existing, err := admins.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, a := range existing {
			if a.Role == models.RoleSuperAdmin {
				return nil, fmt.Errorf("a superadmin already exists (%s)", a.Username)
			}
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(opts.Password), cost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	admin := &models.Admin{
		Username:     opts.Username,
		Name:         opts.Name,
		Organization: opts.Organization,
		Phone:        opts.Phone,
		Email:        strings.ToLower(opts.Email),
		Password:     string(hashed),
		Role:         opts.Role,
		Status:       models.AdminStatusActive,
		IsVerified:   true,
		FirstLogin:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := admins.Create(ctx, admin); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("username %q already exists", opts.Username)
		}
		return nil, err
	}
	return admin, nil
}

func main() {
	var opts adminOptions
	flag.StringVar(&opts.Username, "username", "", "login name")
	flag.StringVar(&opts.Password, "password", "", "initial password")
	flag.StringVar(&opts.Name, "name", "", "display name")
	flag.StringVar(&opts.Email, "email", "", "contact email")
	flag.StringVar(&opts.Organization, "organization", "", "organization")
	flag.StringVar(&opts.Phone, "phone", "", "mobile number (09xxxxxxxx)")
	flag.StringVar(&opts.Role, "role", models.RoleAdmin, "admin or superadmin")
	flag.Parse()

	config.LoadConfig()

	client, err := utils.ConnectMongo(config.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := client.Database(config.DBName)
	if err := store.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}

	admin, err := createAdmin(ctx, store.NewMongoAdminStore(db), opts, bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}
	fmt.Printf("Created %s %s (id %s)\n", admin.Role, admin.Username, admin.ID.Hex())
}
