package db

import (
	"database/sql"
	"fmt"
	"log"

	"Praetorius/config"
	"Praetorius/core/auth"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

var DB *sql.DB

// ConnectDB establishes a connection to the database.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Successfully connected to the database.")
	return nil
}

// InitDB initializes the database schema, creating tables if they don't
// exist, and seeds the admin account used by the editing endpoints.
func InitDB(cfg *config.Config) error {
	if err := createUsersTable(); err != nil {
		return err
	}
	if err := createWorksTable(); err != nil {
		return err
	}
	if err := seedAdminUser(cfg); err != nil {
		return err
	}

	log.Println("Database initialization completed.")
	return nil
}

func createUsersTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INT AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(100) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	log.Println("Users table initialized successfully (or already exists).")
	return nil
}

func createWorksTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS works (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		slug VARCHAR(191) NOT NULL UNIQUE,
		title VARCHAR(255) NOT NULL,
		audio_url VARCHAR(767),
		pdf_url VARCHAR(767),
		year VARCHAR(32),
		duration VARCHAR(32),
		medium VARCHAR(255),
		tags TEXT,
		open_note TEXT,
		oneliner TEXT,
		description TEXT,
		start_at DOUBLE,
		cues TEXT,
		state TINYINT DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	);
	`
	_, err := DB.Exec(query)
	if err != nil {
		return fmt.Errorf("failed to create works table: %w", err)
	}
	log.Println("Works table initialized successfully (or already exists).")
	return nil
}

// seedAdminUser creates the configured admin account when it does not
// exist yet. Without credentials configured the step is skipped.
func seedAdminUser(cfg *config.Config) error {
	if cfg.AdminUser == "" || cfg.AdminPassword == "" {
		log.Println("No admin credentials configured, skipping admin seed.")
		return nil
	}

	var existingID int64
	err := DB.QueryRow("SELECT id FROM users WHERE username = ?", cfg.AdminUser).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to check for existing admin user: %w", err)
	}
	if err == nil {
		log.Printf("Admin user %q already exists with ID: %d. Skipping creation.", cfg.AdminUser, existingID)
		return nil
	}

	hashedPassword, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	res, err := DB.Exec("INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)",
		cfg.AdminUser, cfg.AdminEmail, hashedPassword)
	if err != nil {
		return fmt.Errorf("failed to insert admin user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get ID of newly inserted admin user: %w", err)
	}
	log.Printf("Admin user %q created with ID: %d", cfg.AdminUser, id)
	return nil
}
