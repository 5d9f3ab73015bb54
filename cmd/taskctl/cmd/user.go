package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/good-yellow-bee/taskforge/internal/api/auth"
	"github.com/good-yellow-bee/taskforge/internal/api/users"
	"github.com/good-yellow-bee/taskforge/internal/models"
)

var (
	userDBPath    string
	userEmail     string
	userFirstName string
	userLastName  string
	userRole      string
)

// userCmd represents the user command group
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management commands",
	Long: `Commands for managing TaskForge users.

These commands operate directly on the database file and are intended
for system administrators to manage accounts outside of the API.

Examples:
  # List all users
  taskctl user list

  # Create an admin user
  taskctl user create --email admin@example.com --first-name Ada --role admin

  # Reset a user's password
  taskctl user passwd --email admin@example.com`,
}

// userListCmd lists all users
var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Long: `List all users in the database.

Displays email, name, role, status, and creation date for each user.
Passwords are never displayed.

Example:
  taskctl user list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(userDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		userList, total, err := store.Users().List(ctx, 1000, 0)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		if len(userList) == 0 {
			fmt.Println("No users found.")
			return nil
		}

		// Print header
		fmt.Printf("\n%-36s  %-30s  %-24s  %-8s  %-8s  %s\n",
			"ID", "EMAIL", "NAME", "ROLE", "ACTIVE", "CREATED")
		fmt.Println(strings.Repeat("-", 120))

		for _, u := range userList {
			fmt.Printf("%-36s  %-30s  %-24s  %-8s  %-8t  %s\n",
				u.ID,
				truncate(u.Email, 30),
				truncate(u.FullName(), 24),
				u.Role,
				u.IsActive,
				u.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		fmt.Printf("\nTotal: %d user(s)\n", total)

		return nil
	},
}

// userCreateCmd creates a new user
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	Long: `Create a new user in the database.

The password will be prompted interactively for security reasons
(to avoid exposing it in shell history).

Password requirements:
  - 8 to 72 bytes
  - At least 1 letter
  - At least 1 digit

Available roles:
  - admin: Full access, including user management
  - member: Can create projects and work on tasks
  - viewer: Read-only access to visible projects

Example:
  taskctl user create --email ada@example.com --first-name Ada --last-name Lovelace --role member`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.ToLower(strings.TrimSpace(userEmail))

		if err := users.ValidateEmail(email); err != nil {
			return fmt.Errorf("invalid email: %w", err)
		}
		if err := users.ValidateName("first_name", userFirstName); err != nil {
			return fmt.Errorf("invalid first name: %w", err)
		}
		if userLastName != "" {
			if err := users.ValidateName("last_name", userLastName); err != nil {
				return fmt.Errorf("invalid last name: %w", err)
			}
		}

		role, err := users.ValidateRole(userRole)
		if err != nil {
			return fmt.Errorf("invalid role: %w", err)
		}

		// Prompt for password securely
		password, err := promptPassword("Enter password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		if err := auth.ValidatePassword(password); err != nil {
			return fmt.Errorf("invalid password: %w", err)
		}

		confirmPassword, err := promptPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("read password confirmation: %w", err)
		}

		if password != confirmPassword {
			return fmt.Errorf("passwords do not match")
		}

		store, err := openDatabase(userDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		// Check if email already exists
		existing, err := store.Users().GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("email '%s' already exists", email)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		user := models.NewUser(email, strings.TrimSpace(userFirstName), strings.TrimSpace(userLastName), role)
		user.ID = uuid.New().String()
		user.PasswordHash = string(hash)

		if err := store.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		fmt.Printf("\nUser created successfully:\n")
		fmt.Printf("  ID:    %s\n", user.ID)
		fmt.Printf("  Email: %s\n", user.Email)
		fmt.Printf("  Name:  %s\n", user.FullName())
		fmt.Printf("  Role:  %s\n", user.Role)

		return nil
	},
}

// userPasswdCmd changes a user's password
var userPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change a user's password",
	Long: `Change the password for an existing user.

The new password will be prompted interactively for security reasons
(to avoid exposing it in shell history).

Example:
  taskctl user passwd --email admin@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.ToLower(strings.TrimSpace(userEmail))
		if email == "" {
			return fmt.Errorf("--email is required")
		}

		store, err := openDatabase(userDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		user, err := store.Users().GetByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("user '%s' not found", email)
		}

		password, err := promptPassword("Enter new password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		if err := auth.ValidatePassword(password); err != nil {
			return fmt.Errorf("invalid password: %w", err)
		}

		confirmPassword, err := promptPassword("Confirm new password: ")
		if err != nil {
			return fmt.Errorf("read password confirmation: %w", err)
		}

		if password != confirmPassword {
			return fmt.Errorf("passwords do not match")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		user.PasswordHash = string(hash)
		user.UpdatedAt = time.Now()

		if err := store.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		// Revoke all refresh tokens for this user (force re-login)
		if err := store.Tokens().RevokeAllForUser(ctx, user.ID); err != nil {
			// Log warning but don't fail - password was already changed
			PrintVerbose("Warning: could not revoke existing sessions: %v", err)
		}

		fmt.Printf("\nPassword changed successfully for '%s'.\n", user.Email)
		fmt.Println("All existing sessions have been revoked.")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userPasswdCmd)

	// Common flags (db has default value)
	for _, cmd := range []*cobra.Command{userListCmd, userCreateCmd, userPasswdCmd} {
		cmd.Flags().StringVar(&userDBPath, "db", defaultDBPath, "path to SQLite database file")
	}

	// Create-specific flags
	userCreateCmd.Flags().StringVar(&userEmail, "email", "", "email for the new user (required)")
	userCreateCmd.Flags().StringVar(&userFirstName, "first-name", "", "first name for the new user (required)")
	userCreateCmd.Flags().StringVar(&userLastName, "last-name", "", "last name for the new user")
	userCreateCmd.Flags().StringVar(&userRole, "role", "member", "role: admin, member, or viewer (default: member)")
	userCreateCmd.MarkFlagRequired("email")
	userCreateCmd.MarkFlagRequired("first-name")

	// Passwd-specific flags
	userPasswdCmd.Flags().StringVar(&userEmail, "email", "", "email of the user to update (required)")
	userPasswdCmd.MarkFlagRequired("email")
}

// promptPassword prompts for a password without echoing to the terminal.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	// Check if stdin is a terminal
	fd := syscall.Stdin
	if term.IsTerminal(fd) {
		// Read password without echo
		passwordBytes, err := term.ReadPassword(fd)
		fmt.Println() // Add newline after password input
		if err != nil {
			return "", err
		}
		return string(passwordBytes), nil
	}

	// Fallback for non-terminal input (e.g., piped input)
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(password), nil
}
