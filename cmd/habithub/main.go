package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"habithub/internal/app"
	"habithub/internal/config"
	"habithub/internal/hub"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a HabitApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "follow", "backup").
func newApp(operation string) (*app.HabitApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewHabitApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// newSession creates a HabitApp and logs in the user named by --user or
// HABITHUB_USER. The caller must defer app.Close().
func newSession(cmd *cobra.Command, operation string) (*app.HabitApp, error) {
	username, _ := cmd.Flags().GetString("user")
	if username == "" {
		username = os.Getenv("HABITHUB_USER")
	}
	if username == "" {
		return nil, fmt.Errorf("no user given: pass --user or set HABITHUB_USER")
	}

	password, err := readSecret("HABITHUB_PASSWORD", "Password for "+username+": ")
	if err != nil {
		return nil, err
	}

	a, err := newApp(operation)
	if err != nil {
		return nil, err
	}
	if err := a.Login(username, password); err != nil {
		a.Close()
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return a, nil
}

// readSecret returns the value of env when set. Otherwise it prompts on a
// terminal without echo, or reads one line from piped stdin.
func readSecret(env, prompt string) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// notice prints a non-fatal result and swallows it. Other errors pass through.
func notice(err error) error {
	if hub.IsNotice(err) {
		fmt.Printf("Nothing to do: %v\n", err)
		return nil
	}
	return err
}

func printPosts(items []hub.FeedItem) {
	if len(items) == 0 {
		fmt.Println("No posts yet.")
		return
	}
	for _, it := range items {
		printPost(it.Author, it.Post)
	}
}

func printPost(author string, p *hub.Post) {
	fmt.Printf("@%s  %s  [%s]\n", author, p.Timestamp, p.ID)
	if p.Content != "" {
		fmt.Printf("  %s\n", p.Content)
	}
	if p.HasImage() {
		fmt.Printf("  (image: %d bytes, %s)\n", len(p.Image), p.ImageExt)
	}
	fmt.Printf("  %d like(s)\n\n", len(p.Likes))
}

func printBio(bio string) {
	if bio == "" {
		bio = "No bio yet"
	}
	fmt.Printf("  %s\n", bio)
}

var rootCmd = &cobra.Command{
	Use:          "habithub",
	Short:        "Share daily habits with friends",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		instanceID := uuid.New().String()
		cfg := config.NewConfig(instanceID, defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Instance ID: %s\n", instanceID)
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Instance ID: %s\n", cfg.InstanceID)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Store:       %s\n", cfg.Store.Type)
		for _, v := range cfg.Vaults {
			fmt.Printf("Vault:       %s (%s)\n", v.Name, v.Type)
		}
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the archive encryption keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readSecret("HABITHUB_PASSPHRASE", "New passphrase: ")
		if err != nil {
			return err
		}

		a, err := newApp("keys")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.SetupKeys(passphrase); err != nil {
			return err
		}
		fmt.Println("Encryption keys created.")
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup USERNAME",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bio, _ := cmd.Flags().GetString("bio")

		password, err := readSecret("HABITHUB_PASSWORD", "Choose a password: ")
		if err != nil {
			return err
		}

		a, err := newApp("signup")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Signup(args[0], password, bio); err != nil {
			return fmt.Errorf("signup failed: %w", err)
		}
		fmt.Printf("Account @%s created. You can now log in.\n", strings.TrimSpace(args[0]))
		return nil
	},
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Show posts from you and the people you follow",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newSession(cmd, "feed")
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.HomeFeed()
		if err != nil {
			return err
		}
		printPosts(items)
		return nil
	},
}

var postCmd = &cobra.Command{
	Use:   "post [TEXT...]",
	Short: "Share a post",
	RunE: func(cmd *cobra.Command, args []string) error {
		image, _ := cmd.Flags().GetString("image")

		a, err := newSession(cmd, "post")
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Post(strings.Join(args, " "), image)
		var perr *hub.PersistenceError
		if errors.As(err, &perr) {
			fmt.Fprintf(os.Stderr, "warning: post %s was not saved: %v\n", p.ID, perr.Err)
			return err
		}
		if err != nil {
			return err
		}
		fmt.Printf("Posted %s\n", p.ID)
		return nil
	},
}

var likeCmd = &cobra.Command{
	Use:   "like AUTHOR POST_ID",
	Short: "Like a post",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newSession(cmd, "like")
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.Like(args[0], args[1])
		if err == nil {
			fmt.Printf("Liked @%s's post %s\n", args[0], args[1])
		}
		return notice(err)
	},
}

var followCmd = &cobra.Command{
	Use:   "follow USER",
	Short: "Follow a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newSession(cmd, "follow")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Follow(args[0]); err != nil {
			return err
		}
		fmt.Printf("Following @%s\n", args[0])
		return nil
	},
}

var unfollowCmd = &cobra.Command{
	Use:   "unfollow USER",
	Short: "Stop following a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newSession(cmd, "unfollow")
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.Unfollow(args[0])
		if err == nil {
			fmt.Printf("Unfollowed @%s\n", args[0])
		}
		return notice(err)
	},
}

var friendsCmd = &cobra.Command{
	Use:   "friends",
	Short: "List the people you follow",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newSession(cmd, "friends")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Friends()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("You are not following anyone yet.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("@%s  %d post(s)  %d follower(s)\n", e.Username, e.PostCount, e.FollowerCount)
			printBio(e.Bio)
		}
		return nil
	},
}

var rankingsCmd = &cobra.Command{
	Use:   "rankings",
	Short: "Show the post-count leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newSession(cmd, "rankings")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Ranking()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No posts yet.")
			return nil
		}

		medals := map[int]string{1: "🥇 ", 2: "🥈 ", 3: "🥉 "}
		for _, e := range entries {
			line := fmt.Sprintf("#%d %s@%s  %d post(s)", e.Rank, medals[e.Rank], e.Username, e.PostCount)
			switch {
			case e.IsSelf:
				line += " (YOU)"
			case e.IsFollowed:
				line += " (following)"
			}
			fmt.Println(line)
		}
		return nil
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find people to follow",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newSession(cmd, "discover")
		if err != nil {
			return err
		}
		defer a.Close()

		entries, err := a.Discover()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No other users yet.")
			return nil
		}
		for _, e := range entries {
			state := "not following"
			if e.Following {
				state = "following"
			}
			fmt.Printf("@%s  %d post(s)  %d follower(s)  [%s]\n", e.Username, e.PostCount, e.FollowerCount, state)
			printBio(e.Bio)
		}
		return nil
	},
}

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Browse every post, optionally by tag",
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, _ := cmd.Flags().GetString("tag")

		a, err := newSession(cmd, "explore")
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.Explore(tag)
		if err != nil {
			if errors.Is(err, hub.ErrInvalidInput) {
				return fmt.Errorf("%w (known tags: %s)", err, strings.Join(hub.KnownTags, " "))
			}
			return err
		}
		printPosts(items)
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile [USER]",
	Short: "Show a profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newSession(cmd, "profile")
		if err != nil {
			return err
		}
		defer a.Close()

		target := ""
		if len(args) > 0 {
			target = args[0]
		}
		view, err := a.Profile(target)
		if err != nil {
			return err
		}

		fmt.Printf("@%s\n", view.Username)
		printBio(view.Bio)
		fmt.Printf("  %d follower(s): %s\n", len(view.Followers), strings.Join(view.Followers, ", "))
		fmt.Printf("  %d following: %s\n\n", len(view.Following), strings.Join(view.Following, ", "))
		if len(view.Posts) == 0 {
			fmt.Println("No posts yet.")
			return nil
		}
		for _, p := range view.Posts {
			printPost(view.Username, p)
		}
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload an encrypted snapshot to the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("backup")
		if err != nil {
			return err
		}
		defer a.Close()

		version, err := a.Backup()
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Backup uploaded (version %d)\n", version)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace all data with the latest snapshot in the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase, err := readSecret("HABITHUB_PASSPHRASE", "Passphrase: ")
		if err != nil {
			return err
		}

		a, err := newApp("restore")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Restore(passphrase)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Restored %d account(s)\n", n)
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)

	// commands that need a logged-in user
	for _, c := range []*cobra.Command{feedCmd, postCmd, likeCmd, followCmd, unfollowCmd,
		friendsCmd, rankingsCmd, discoverCmd, exploreCmd, profileCmd} {
		c.Flags().StringP("user", "u", "", "Username to log in as (default $HABITHUB_USER)")
		rootCmd.AddCommand(c)
	}
	postCmd.Flags().StringP("image", "i", "", "Image file to attach")
	exploreCmd.Flags().StringP("tag", "t", "", "Only show posts with this tag")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(signupCmd)
	signupCmd.Flags().StringP("bio", "b", "", "Short profile bio")
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}
