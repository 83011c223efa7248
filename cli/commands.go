// Package cli implements the quill subcommands on top of the session store
// and the feed controller.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"quill/app/config"
	"quill/app/models"
	"quill/app/services"
)

// HandleCommand loads the configuration and runs a subcommand. It returns
// the process exit code.
func HandleCommand(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfgPath := os.Getenv("QUILL_CONFIG")
	if cfgPath == "" {
		cfgPath = "quill.yaml"
	}
	cfg, err := config.Load(cfgPath, ".env")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return Run(ctx, cfg, args, stdin, stdout, stderr)
}

// Run executes one subcommand with cfg.
func Run(ctx context.Context, cfg config.Config, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		PrintHelp(stdout)
		return 2
	}

	cmd := args[0]
	handler, ok := commands[cmd]
	if !ok {
		if cmd == "help" {
			PrintHelp(stdout)
			return 0
		}
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		PrintHelp(stderr)
		return 2
	}

	a, err := newApp(cfg, stdin, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	if err := handler(ctx, a, args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		var usage usageError
		if errors.As(err, &usage) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		a.logger.Printf("%s failed: %v", cmd, err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

type commandFunc func(ctx context.Context, a *app, args []string) error

var commands map[string]commandFunc

func init() {
	commands = map[string]commandFunc{
		"signin":  signIn,
		"signup":  signUp,
		"signout": signOut,
		"whoami":  whoAmI,
		"feed":    showFeed,
		"show":    showPost,
		"post":    createPost,
		"delete":  deletePost,
		"like":    toggleLike,
		"comment": addComment,
		"backup":  backup,
		"restore": restore,
		"reset":   reset,
	}
}

// PrintHelp prints the list of subcommands.
func PrintHelp(w io.Writer) {
	helpText := `Usage: quill <command> [options]

Commands:
  signin  [--email <email>] [--password <password>]   Sign in (prompts for missing values)
  signup  --username <name> --email <email> [--password <password>]
                                                    Create an account and sign in
  signout                                           Forget the saved session
  whoami                                            Verify and show the signed-in user
  feed    [--page <n>] [--per-page <n>]             List posts, newest first
  show    <id>                                      Show a post with its likes and comments
  post    --title <title> --body <body>             Publish a post
  delete  <id>                                      Delete one of your posts
  like    <id>                                      Like a post, or unlike it if you already do
  comment <id> <text>                               Comment on a post
  backup  [file]                                    Back up local data (badger driver)
  restore <file>                                    Restore local data from a backup
  reset                                             Delete all local data
  help                                              Display this help message
  version                                           Show version information
`
	fmt.Fprint(w, helpText)
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

// postID parses the single positional post id of show, delete and like.
func postID(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 || strings.TrimSpace(fs.Arg(0)) == "" {
		return "", usageError{fmt.Sprintf("usage: quill %s <id>", fs.Name())}
	}
	return fs.Arg(0), nil
}

func signIn(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "signin")
	email := fs.String("email", "", "Account email (prompts if omitted)")
	password := fs.String("password", "", "Password (prompts if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var err error
	if *email == "" {
		if *email, err = a.prompt("Email: "); err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
	}
	if *password == "" {
		if *password, err = a.promptPassword("Password: "); err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}

	session, err := a.session.Authenticate(ctx, models.Credentials{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Signed in as %s\n", session.Username)
	return nil
}

func signUp(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "signup")
	username := fs.String("username", "", "Username")
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Password (prompts if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *email == "" {
		return usageError{"usage: quill signup --username <name> --email <email> [--password <password>]"}
	}
	if *password == "" {
		var err error
		if *password, err = a.promptPassword("Password: "); err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
	}

	session, err := a.session.Register(ctx, models.Registration{Username: *username, Email: *email, Password: *password})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Welcome, %s! You are signed in.\n", session.Username)
	return nil
}

func signOut(ctx context.Context, a *app, args []string) error {
	if err := newFlagSet(a, "signout").Parse(args); err != nil {
		return err
	}
	if !a.session.Current().SignedIn() {
		fmt.Fprintln(a.stdout, "Not signed in")
		return nil
	}
	if err := a.session.SignOut(); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Signed out")
	return nil
}

func whoAmI(ctx context.Context, a *app, args []string) error {
	if err := newFlagSet(a, "whoami").Parse(args); err != nil {
		return err
	}
	if err := a.session.VerifyCurrent(ctx); err != nil {
		return err
	}
	session := a.session.Current()
	fmt.Fprintf(a.stdout, "%s <%s>\n", session.Username, session.Email)
	return nil
}

func showFeed(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "feed")
	page := fs.Int("page", 1, "Page number, starting at 1")
	perPage := fs.Int("per-page", 10, "Posts per page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := a.feed.LoadFeed(ctx); err != nil && len(a.feed.Posts()) == 0 {
		return err
	}
	for _, post := range a.feed.Page(*page, *perPage) {
		printSummary(a.stdout, post, a.feed.IsLiked(post.ID))
	}
	return nil
}

func showPost(ctx context.Context, a *app, args []string) error {
	id, err := postID(newFlagSet(a, "show"), args)
	if err != nil {
		return err
	}
	a.loadFeedQuietly(ctx)
	if err := a.feed.OpenDetail(ctx, id); err != nil {
		return err
	}
	post, state := a.feed.Detail()
	printDetail(a.stdout, post, state, a.feed.IsLiked(id))
	return nil
}

func createPost(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "post")
	title := fs.String("title", "", "Post title")
	body := fs.String("body", "", "Post body")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.session.VerifyCurrent(ctx); err != nil {
		return err
	}
	post, err := a.feed.CreatePost(ctx, *title, *body)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Published post %s\n", post.ID)
	return nil
}

func deletePost(ctx context.Context, a *app, args []string) error {
	id, err := postID(newFlagSet(a, "delete"), args)
	if err != nil {
		return err
	}
	if err := a.session.VerifyCurrent(ctx); err != nil {
		return err
	}
	if err := a.feed.LoadFeed(ctx); err != nil {
		return err
	}
	if err := a.feed.DeletePost(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Deleted post %s\n", id)
	return nil
}

func toggleLike(ctx context.Context, a *app, args []string) error {
	id, err := postID(newFlagSet(a, "like"), args)
	if err != nil {
		return err
	}
	if err := a.session.VerifyCurrent(ctx); err != nil {
		return err
	}
	a.loadFeedQuietly(ctx)
	if err := a.feed.ToggleLike(ctx, id); err != nil {
		return err
	}

	verb := "Unliked"
	if a.feed.IsLiked(id) {
		verb = "Liked"
	}
	for _, post := range a.feed.Posts() {
		if post.ID == id {
			fmt.Fprintf(a.stdout, "%s post %s (%d likes)\n", verb, id, post.LikeCount)
			return nil
		}
	}
	fmt.Fprintf(a.stdout, "%s post %s\n", verb, id)
	return nil
}

func addComment(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "comment")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return usageError{"usage: quill comment <id> <text>"}
	}
	id := fs.Arg(0)
	text := strings.Join(fs.Args()[1:], " ")

	if err := a.session.VerifyCurrent(ctx); err != nil {
		return err
	}
	a.loadFeedQuietly(ctx)
	if err := a.feed.OpenDetail(ctx, id); err != nil {
		return err
	}
	comment, err := a.feed.AddComment(ctx, id, text)
	if err != nil {
		return err
	}
	post, _ := a.feed.Detail()
	fmt.Fprintf(a.stdout, "Commented on post %s (%d comments)\n", comment.PostID, post.CommentCount)
	return nil
}

func backup(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "backup")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if a.badger == nil {
		return errBackupUnsupported
	}

	backupFile := fs.Arg(0)
	if backupFile == "" {
		backupDir := filepath.Join(a.cfg.Storage.DataDir, "backups")
		if err := os.MkdirAll(backupDir, 0700); err != nil {
			return fmt.Errorf("failed to create backup directory: %w", err)
		}
		backupFile = filepath.Join(backupDir, fmt.Sprintf("backup_%d.db", time.Now().Unix()))
	}
	f, err := os.Create(backupFile)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer f.Close()

	if err := a.badger.Backup(f); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "Local data backed up to %s\n", backupFile)
	return nil
}

func restore(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "restore")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError{"usage: quill restore <file>"}
	}
	if a.badger == nil {
		return errBackupUnsupported
	}

	backupFile := fs.Arg(0)
	f, err := os.Open(backupFile)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat backup file: %w", err)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("backup file is empty: %s", backupFile)
	}

	if !a.confirm("Existing local data will be replaced. Continue?") {
		fmt.Fprintln(a.stdout, "Operation cancelled")
		return nil
	}
	if err := a.badger.Restore(f); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, "Local data restored successfully")
	return nil
}

// reset forgets the session and the saved feed.
func reset(ctx context.Context, a *app, args []string) error {
	if err := newFlagSet(a, "reset").Parse(args); err != nil {
		return err
	}
	if !a.confirm("Delete the saved session and feed? This cannot be undone.") {
		fmt.Fprintln(a.stdout, "Operation cancelled")
		return nil
	}
	if err := a.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	if err := a.store.Replace(nil); err != nil {
		return fmt.Errorf("failed to clear saved feed: %w", err)
	}
	fmt.Fprintln(a.stdout, "Local data cleared")
	return nil
}

// loadFeedQuietly loads the feed for commands that only need it as context.
func (a *app) loadFeedQuietly(ctx context.Context) {
	if err := a.feed.LoadFeed(ctx); err != nil {
		a.logger.Printf("Feed not loaded: %v", err)
	}
}

func printSummary(w io.Writer, post *models.Post, liked bool) {
	heart := " "
	if liked {
		heart = "*"
	}
	fmt.Fprintf(w, "%s [%s] %s by %s on %s (%d likes, %d comments)\n",
		heart, post.ID, post.Title, post.AuthorUsername, post.CreatedAt.Format("2006-01-02"),
		post.LikeCount, post.CommentCount)
}

func printDetail(w io.Writer, post *models.Post, state services.DetailState, liked bool) {
	fmt.Fprintf(w, "[%s] %s\n", post.ID, post.Title)
	fmt.Fprintf(w, "by %s on %s\n\n", post.AuthorUsername, post.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Fprintln(w, post.Body)
	fmt.Fprintln(w)

	likes := fmt.Sprintf("%d likes", post.LikeCount)
	if liked {
		likes += " (including you)"
	}
	fmt.Fprintf(w, "%s, %d comments\n", likes, post.CommentCount)
	if state == services.DetailOpenFallback {
		fmt.Fprintln(w, "(comments unavailable)")
		return
	}
	for _, c := range post.Comments {
		fmt.Fprintf(w, "  %s: %s\n", c.AuthorUsername, c.Text)
	}
}
