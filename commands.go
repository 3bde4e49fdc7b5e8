package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/debemdeboas/postboard/internal/config"
	"github.com/debemdeboas/postboard/internal/db"
	"github.com/debemdeboas/postboard/internal/logger"
	"github.com/debemdeboas/postboard/internal/metrics"
	"github.com/debemdeboas/postboard/internal/model"
	"github.com/debemdeboas/postboard/internal/render"
	"github.com/debemdeboas/postboard/internal/repository"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath string
	appLogger  zerolog.Logger

	idStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "postboard",
		Short:         "A small blog of posts kept in a single JSON document",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup()
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")

	root.AddCommand(
		newServeCommand(),
		newInitCommand(),
		newListCommand(),
		newAddCommand(),
		newUpdateCommand(),
		newLikeCommand(),
		newDeleteCommand(),
		newMigrateCommand(),
		newGenerateConfigCommand(),
		newVersionCommand(),
	)

	return root
}

// setup loads .env, the config file and the logger, in that order.
func setup() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error loading .env file: "+err.Error()))
	}

	setLoggers(logger.New(config.AppConfig.Logging.Level, config.AppConfig.Logging.Format))

	if err := config.LoadConfig(configPath); err != nil {
		appLogger.Error().Err(err).Str("path", configPath).Msg("Error loading config")
		return err
	}

	setLoggers(logger.New(config.AppConfig.Logging.Level, config.AppConfig.Logging.Format))
	return nil
}

func setLoggers(l zerolog.Logger) {
	appLogger = l
	config.SetLogger(l.With().Str("component", "config").Logger())
	db.SetLogger(l.With().Str("component", "db").Logger())
	repository.SetLogger(l.With().Str("component", "repository").Logger())
	render.SetLogger(l.With().Str("component", "render").Logger())
}

// withRepository opens the configured store and hands a repository over it to fn.
func withRepository(ctx context.Context, fn func(repository.PostRepository) error, opts ...repository.Option) error {
	store, closeStore, err := openStore(ctx, config.AppConfig.Storage)
	if err != nil {
		return fmt.Errorf(config.ErrOpenStoreFmt, err)
	}
	defer closeStore()

	return fn(repository.NewJSONPostRepository(store, opts...))
}

func resultError[T any](res repository.Result[T]) error {
	if res.Success {
		return nil
	}
	return errors.New(res.Message)
}

func parseIDArg(arg string) (model.PostID, error) {
	id, ok := model.ParsePostID(arg)
	if !ok {
		return 0, fmt.Errorf("invalid post id %q", arg)
	}
	return id, nil
}

func printPost(w io.Writer, p model.Post) {
	fmt.Fprintf(w, "%s %s %s\n",
		idStyle.Render("#"+p.ID.String()),
		titleStyle.Render(p.Title),
		mutedStyle.Render(fmt.Sprintf("by %s, %d likes", p.Author, p.Like)),
	)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx)
		},
	}
}

func runServer(ctx context.Context) error {
	var (
		m    *metrics.Metrics
		opts []repository.Option
	)
	if config.AppConfig.Features.Metrics.Enabled {
		m = metrics.New()
		opts = append(opts, repository.WithObserver(m))
	}

	return withRepository(ctx, func(repo repository.PostRepository) error {
		a, err := newApp(repo, m, appLogger)
		if err != nil {
			return err
		}

		hangup := make(chan os.Signal, 1)
		signal.Notify(hangup, syscall.SIGHUP)
		defer signal.Stop(hangup)
		go reloadOnSignal(ctx, hangup, repo)

		// Warm the cache so a broken document shows up in the logs at startup.
		if res := repo.FetchAll(ctx); !res.Success {
			appLogger.Error().Err(res.Err()).Msg(config.ErrLoadPosts)
		}

		addr := config.AppConfig.Server.Host + ":" + config.AppConfig.Server.Port
		srv := &http.Server{
			Addr:              addr,
			Handler:           a.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			appLogger.Info().Str("addr", addr).Str("storage", config.AppConfig.Storage.Backend).Msg("Starting server")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				appLogger.Error().Err(err).Msg("Server failed")
				return err
			}
			return nil
		case <-ctx.Done():
		}

		appLogger.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}, opts...)
}

// reloadOnSignal drops the post cache each time sig fires, until ctx is done.
func reloadOnSignal(ctx context.Context, sig <-chan os.Signal, repo repository.PostRepository) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			repo.Reload()
			if res := repo.FetchAll(ctx); !res.Success {
				appLogger.Error().Err(res.Err()).Msg(config.ErrLoadPosts)
			}
		}
	}
}

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty posts document if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeStore, err := openStore(ctx, config.AppConfig.Storage)
			if err != nil {
				return fmt.Errorf(config.ErrOpenStoreFmt, err)
			}
			defer closeStore()

			_, err = store.Load(ctx)
			switch {
			case err == nil && !force:
				fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render(store.Name()+" already exists, use --force to reset it"))
				return nil
			case err != nil && !errors.Is(err, repository.ErrStoreNotFound) && !force:
				return err
			}

			if err := store.Save(ctx, []byte("[]")); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Initialized "+store.Name()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing document")
	return cmd
}

func newListCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd.Context(), func(repo repository.PostRepository) error {
				res := repo.FetchAll(cmd.Context())
				if err := resultError(res); err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(res.Payload)
				}

				fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d posts", len(res.Payload))))
				for _, p := range res.Payload {
					printPost(out, p)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw collection as JSON")
	return cmd
}

// postFlags are the author, title and content flags shared by add and update.
type postFlags struct {
	author, title, content, contentFile string
}

func (f *postFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.author, "author", "", "post author")
	cmd.Flags().StringVar(&f.title, "title", "", "post title")
	cmd.Flags().StringVar(&f.content, "content", "", "post content (markdown)")
	cmd.Flags().StringVar(&f.contentFile, "content-file", "", "read the content from a file, - for stdin")
	cmd.MarkFlagsMutuallyExclusive("content", "content-file")
}

func (f *postFlags) readContent(cmd *cobra.Command) (string, error) {
	switch f.contentFile {
	case "":
		return f.content, nil
	case "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	default:
		data, err := os.ReadFile(f.contentFile)
		return string(data), err
	}
}

func newAddCommand() *cobra.Command {
	var flags postFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a post",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := flags.readContent(cmd)
			if err != nil {
				return err
			}

			return withRepository(cmd.Context(), func(repo repository.PostRepository) error {
				res := repo.Add(cmd.Context(), flags.author, flags.title, body)
				if err := resultError(res); err != nil {
					return err
				}
				printPost(cmd.OutOrStdout(), res.Payload)
				return nil
			})
		},
	}

	flags.register(cmd)
	return cmd
}

func newUpdateCommand() *cobra.Command {
	var (
		flags postFlags
		likes int
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update the fields of a post, keeping the ones not given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}

			return withRepository(cmd.Context(), func(repo repository.PostRepository) error {
				post, ok := repo.FetchByID(cmd.Context(), id)
				if !ok {
					return fmt.Errorf("post %d not found", id)
				}

				changed := cmd.Flags().Changed
				if changed("author") {
					post.Author = flags.author
				}
				if changed("title") {
					post.Title = flags.title
				}
				if changed("content") || changed("content-file") {
					if post.Content, err = flags.readContent(cmd); err != nil {
						return err
					}
				}
				if changed("likes") {
					post.Like = likes
				}

				res := repo.Update(cmd.Context(), id, post.Author, post.Title, post.Content, post.Like)
				if err := resultError(res); err != nil {
					return err
				}
				printPost(cmd.OutOrStdout(), res.Payload)
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&likes, "likes", 0, "set the like count")
	return cmd
}

func newLikeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "like ID",
		Short: "Like a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}

			return withRepository(cmd.Context(), func(repo repository.PostRepository) error {
				res := repo.Like(cmd.Context(), id)
				if err := resultError(res); err != nil {
					return err
				}
				printPost(cmd.OutOrStdout(), res.Payload)
				return nil
			})
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseIDArg(args[0])
			if err != nil {
				return err
			}

			return withRepository(cmd.Context(), func(repo repository.PostRepository) error {
				res := repo.Delete(cmd.Context(), id)
				if err := resultError(res); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Deleted post "+id.String()))
				return nil
			})
		},
	}
}

func newMigrateCommand() *cobra.Command {
	var toConfig string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy the posts document to the storage described by another config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			dst, err := config.Load(toConfig)
			if err != nil {
				return err
			}
			return migrate(cmd.Context(), config.AppConfig.Storage, dst.Storage, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&toConfig, "to-config", "", "config file describing the destination storage")
	cmd.MarkFlagRequired("to-config")
	return cmd
}

// migrate decodes the source document before writing it, so a corrupt source is
// never copied.
func migrate(ctx context.Context, from, to config.StorageConfig, out io.Writer) error {
	src, closeSrc, err := openStore(ctx, from)
	if err != nil {
		return fmt.Errorf(config.ErrOpenStoreFmt, err)
	}
	defer closeSrc()

	dst, closeDst, err := openStore(ctx, to)
	if err != nil {
		return fmt.Errorf(config.ErrOpenStoreFmt, err)
	}
	defer closeDst()

	res := repository.NewJSONPostRepository(src).FetchAll(ctx)
	if err := resultError(res); err != nil {
		return err
	}

	data, err := json.Marshal(res.Payload)
	if err != nil {
		return err
	}
	if err := dst.Save(ctx, data); err != nil {
		return err
	}

	appLogger.Info().Str("from", src.Name()).Str("to", dst.Name()).Int("posts", len(res.Payload)).Msg("Migrated posts")
	fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("Copied %d posts from %s to %s", len(res.Payload), src.Name(), dst.Name())))
	return nil
}

func newGenerateConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-config [FILE]",
		Short: "Write an example config with every default, - for stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, err := config.ExampleYAML()
			if err != nil {
				return err
			}

			outputFile := "config.example.yaml"
			if len(args) > 0 {
				outputFile = args[0]
			}
			if outputFile == "-" {
				_, err := cmd.OutOrStdout().Write(output)
				return err
			}

			if err := os.WriteFile(outputFile, output, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Generated example config: "+outputFile))
			return nil
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build revision",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "postboard "+logger.Revision())
			return nil
		},
	}
}
