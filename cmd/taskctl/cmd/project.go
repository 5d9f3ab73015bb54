package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/taskforge/internal/models"
	"github.com/good-yellow-bee/taskforge/internal/storage"
)

var (
	projectDBPath     string
	projectName       string
	projectKey        string
	projectDesc       string
	projectOwnerEmail string
	projectUserEmail  string
	projectMemberRole string
)

// projectCmd represents the project command group
var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Project management commands",
	Long: `Commands for managing TaskForge projects.

These commands operate directly on the database file.

Examples:
  # List all projects
  taskctl project list

  # Create a new project
  taskctl project create --name "Website Redesign" --key WEB --owner admin@example.com

  # Show project details
  taskctl project show --key WEB

  # List project members
  taskctl project members --key WEB

  # Add a member to a project
  taskctl project add-member --key WEB --email alice@example.com --role member`,
}

// projectListCmd lists all projects
var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	Long: `List all projects in the database.

Displays project key, name, status, task counts, and creation date.

Example:
  taskctl project list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(projectDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		projects, total, err := store.Projects().ListAll(ctx, 1000, 0)
		if err != nil {
			return fmt.Errorf("list projects: %w", err)
		}

		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}

		// Print header
		fmt.Printf("\n%-10s  %-28s  %-10s  %-8s  %-6s  %-6s  %s\n",
			"KEY", "NAME", "STATUS", "VISIBLE", "TASKS", "DONE", "CREATED")
		fmt.Println(strings.Repeat("-", 100))

		for _, p := range projects {
			fmt.Printf("%-10s  %-28s  %-10s  %-8s  %-6d  %-6d  %s\n",
				p.Key,
				truncate(p.Name, 28),
				p.Status,
				p.Visibility,
				p.TaskCount,
				p.CompletedTaskCount,
				p.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		fmt.Printf("\nTotal: %d project(s)\n", total)

		return nil
	},
}

// projectCreateCmd creates a new project
var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new project",
	Long: `Create a new project in the database.

The project key prefixes every task number (WEB-1, WEB-2, ...) and must
be 2-10 uppercase letters or digits, starting with a letter.

Example:
  taskctl project create --name "Website Redesign" --key WEB --owner admin@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if projectName == "" {
			return fmt.Errorf("--name is required")
		}
		key := strings.ToUpper(strings.TrimSpace(projectKey))
		if err := models.ValidateProjectKey(key); err != nil {
			return fmt.Errorf("invalid key: %w", err)
		}

		store, err := openDatabase(projectDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		owner, err := store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(projectOwnerEmail)))
		if err != nil {
			return fmt.Errorf("find owner: %w", err)
		}
		if owner == nil {
			return fmt.Errorf("owner '%s' not found", projectOwnerEmail)
		}

		// Check key uniqueness
		existing, err := store.Projects().GetByKey(ctx, key)
		if err != nil {
			return fmt.Errorf("check existing project: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("project key already exists: %s", key)
		}

		project := models.NewProject(strings.TrimSpace(projectName), key, projectDesc, owner.ID)
		project.ID = uuid.New().String()

		if err := store.Projects().Create(ctx, project); err != nil {
			return fmt.Errorf("create project: %w", err)
		}

		fmt.Printf("\nProject created successfully:\n")
		fmt.Printf("  ID:    %s\n", project.ID)
		fmt.Printf("  Key:   %s\n", project.Key)
		fmt.Printf("  Name:  %s\n", project.Name)
		fmt.Printf("  Owner: %s\n", owner.Email)

		return nil
	},
}

// projectShowCmd shows project details
var projectShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show project details",
	Long: `Show detailed information about a project.

Example:
  taskctl project show --key WEB`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(projectDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		project, err := loadProjectByKey(ctx, store)
		if err != nil {
			return err
		}

		owner, err := store.Users().GetByID(ctx, project.OwnerID)
		if err != nil {
			return fmt.Errorf("find owner: %w", err)
		}
		ownerLabel := project.OwnerID
		if owner != nil {
			ownerLabel = owner.Email
		}

		fmt.Printf("\nProject %s\n", project.Key)
		fmt.Printf("  ID:          %s\n", project.ID)
		fmt.Printf("  Name:        %s\n", project.Name)
		if project.Description != "" {
			fmt.Printf("  Description: %s\n", project.Description)
		}
		fmt.Printf("  Owner:       %s\n", ownerLabel)
		fmt.Printf("  Status:      %s\n", project.Status)
		fmt.Printf("  Visibility:  %s\n", project.Visibility)
		fmt.Printf("  Tasks:       %d (%d completed)\n", project.TaskCount, project.CompletedTaskCount)
		fmt.Printf("  Created:     %s\n", project.CreatedAt.Format("2006-01-02 15:04:05"))

		return nil
	},
}

// projectMembersCmd lists project members
var projectMembersCmd = &cobra.Command{
	Use:   "members",
	Short: "List project members",
	Long: `List the members of a project with their roles.

The owner is implicit and does not appear in the member list.

Example:
  taskctl project members --key WEB`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(projectDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		project, err := loadProjectByKey(ctx, store)
		if err != nil {
			return err
		}

		members, err := store.Projects().GetMembers(ctx, project.ID)
		if err != nil {
			return fmt.Errorf("list members: %w", err)
		}

		if len(members) == 0 {
			fmt.Printf("Project %s has no members.\n", project.Key)
			return nil
		}

		fmt.Printf("\n%-30s  %-24s  %-8s  %s\n", "EMAIL", "NAME", "ROLE", "JOINED")
		fmt.Println(strings.Repeat("-", 80))

		for _, m := range members {
			name := strings.TrimSpace(m.FirstName + " " + m.LastName)
			fmt.Printf("%-30s  %-24s  %-8s  %s\n",
				truncate(m.Email, 30),
				truncate(name, 24),
				m.Role,
				m.JoinedAt.Format("2006-01-02 15:04"),
			)
		}
		fmt.Printf("\nTotal: %d member(s)\n", len(members))

		return nil
	},
}

// projectAddMemberCmd adds a member to a project
var projectAddMemberCmd = &cobra.Command{
	Use:   "add-member",
	Short: "Add a member to a project",
	Long: `Add a user to a project with the given role.

Available roles: admin, member, viewer. The owner role is implicit and
cannot be assigned.

Example:
  taskctl project add-member --key WEB --email alice@example.com --role member`,
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := models.ParseProjectRole(projectMemberRole)
		if err != nil {
			return fmt.Errorf("invalid role: %w", err)
		}

		store, err := openDatabase(projectDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		project, err := loadProjectByKey(ctx, store)
		if err != nil {
			return err
		}

		user, err := store.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(projectUserEmail)))
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("user '%s' not found", projectUserEmail)
		}
		if user.ID == project.OwnerID {
			return fmt.Errorf("'%s' owns this project", user.Email)
		}
		if _, isMember := project.Members[user.ID]; isMember {
			return fmt.Errorf("'%s' is already a member", user.Email)
		}

		if err := store.Projects().AddMember(ctx, project.ID, user.ID, role); err != nil {
			return fmt.Errorf("add member: %w", err)
		}

		fmt.Printf("Added %s to %s as %s.\n", user.Email, project.Key, role)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectShowCmd)
	projectCmd.AddCommand(projectMembersCmd)
	projectCmd.AddCommand(projectAddMemberCmd)

	// Common flags (db has default value)
	for _, cmd := range []*cobra.Command{projectListCmd, projectCreateCmd, projectShowCmd, projectMembersCmd, projectAddMemberCmd} {
		cmd.Flags().StringVar(&projectDBPath, "db", defaultDBPath, "path to SQLite database file")
	}

	// Create-specific flags
	projectCreateCmd.Flags().StringVar(&projectName, "name", "", "project name (required)")
	projectCreateCmd.Flags().StringVar(&projectKey, "key", "", "project key, e.g. WEB (required)")
	projectCreateCmd.Flags().StringVar(&projectDesc, "description", "", "project description")
	projectCreateCmd.Flags().StringVar(&projectOwnerEmail, "owner", "", "owner's email (required)")
	projectCreateCmd.MarkFlagRequired("name")
	projectCreateCmd.MarkFlagRequired("key")
	projectCreateCmd.MarkFlagRequired("owner")

	// Key selector for the remaining commands
	for _, cmd := range []*cobra.Command{projectShowCmd, projectMembersCmd, projectAddMemberCmd} {
		cmd.Flags().StringVar(&projectKey, "key", "", "project key (required)")
		cmd.MarkFlagRequired("key")
	}

	// Add-member-specific flags
	projectAddMemberCmd.Flags().StringVar(&projectUserEmail, "email", "", "email of the user to add (required)")
	projectAddMemberCmd.Flags().StringVar(&projectMemberRole, "role", "member", "role: admin, member, or viewer (default: member)")
	projectAddMemberCmd.MarkFlagRequired("email")
}

// loadProjectByKey resolves the --key flag to a project.
func loadProjectByKey(ctx context.Context, store *storage.SQLiteStorage) (*models.Project, error) {
	key := strings.ToUpper(strings.TrimSpace(projectKey))
	project, err := store.Projects().GetByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	if project == nil {
		return nil, fmt.Errorf("project '%s' not found", key)
	}
	return project, nil
}
