package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/smarttest/smarttest-backend/internal/config"
	"github.com/smarttest/smarttest-backend/internal/database"
	"github.com/smarttest/smarttest-backend/internal/logger"
	"github.com/smarttest/smarttest-backend/internal/model"
	"github.com/smarttest/smarttest-backend/internal/repository"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	adminRepo := repository.NewAdminRepository(pool)
	schoolRepo := repository.NewSchoolRepository(pool)

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Create New School Admin ===")

	fmt.Print("Enter Username: ")
	username, _ := reader.ReadString('\n')
	username = strings.TrimSpace(username)
	if len(username) < 3 {
		fmt.Println("Error: Username must be at least 3 characters")
		return
	}

	fmt.Print("Enter Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		fmt.Println("\nError reading password")
		return
	}
	password := string(bytePassword)
	fmt.Println()
	if len(password) < 6 {
		fmt.Println("Error: Password must be at least 6 characters")
		return
	}

	fmt.Print("Enter School ID (leave empty to create a new school): ")
	schoolIDStr, _ := reader.ReadString('\n')
	schoolIDStr = strings.TrimSpace(schoolIDStr)

	var school *model.School
	if schoolIDStr == "" {
		fmt.Print("Enter School Name: ")
		name, _ := reader.ReadString('\n')
		name = strings.TrimSpace(name)
		if name == "" {
			fmt.Println("Error: School name is required")
			return
		}
		school = &model.School{Name: name}
		if err := schoolRepo.Create(ctx, school); err != nil {
			log.Fatal().Err(err).Msg("Failed to create school")
		}
		fmt.Printf("Created school '%s' with ID: %d\n", school.Name, school.ID)
	} else {
		id, err := strconv.ParseInt(schoolIDStr, 10, 64)
		if err != nil || id < 1 {
			fmt.Println("Error: School ID must be a positive number")
			return
		}
		school, err = schoolRepo.GetByID(ctx, id)
		if errors.Is(err, pgx.ErrNoRows) {
			fmt.Printf("Error: School %d does not exist\n", id)
			return
		}
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to look up school")
		}
	}

	// ─── Logic ─────────────────────────────────────────────────────────
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash password")
	}

	admin := &model.Admin{
		Username:     username,
		PasswordHash: string(hashedPassword),
		SchoolID:     school.ID,
	}
	if err := adminRepo.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			fmt.Printf("Error: Username '%s' is already taken\n", username)
			return
		}
		log.Fatal().Err(err).Msg("Failed to create admin")
	}

	fmt.Printf("\nSuccess! Admin '%s' for school '%s' created with ID: %d\n", admin.Username, school.Name, admin.ID)
}
