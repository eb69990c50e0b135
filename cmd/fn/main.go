package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"freshnest/internal/app"
	"freshnest/internal/config"
	"freshnest/internal/db"
	"freshnest/internal/domain"
	"freshnest/internal/engine"
	"freshnest/internal/log"
	"freshnest/internal/server"
	"freshnest/internal/stats"
)

var rootCmd = &cobra.Command{
	Use:   "fn",
	Short: "Freshnest CLI",
	Long: `Freshnest connects hosts who need a property cleaned with cleaners who do
the work. A host posts a request, cleaners apply, the host confirms one,
the cleaner runs the job, and the host rates it afterwards. Messages and
notifications ride along with the lifecycle.

The --role and --actor-id flags pick which side of the marketplace you act
as; they default to the demo identities from freshnest.yml.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.Configure(log.Config{Level: viper.GetString("log-level")})
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("FRESHNEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "actor identifier (defaults to the demo identity for --role)")
	rootCmd.PersistentFlags().String("role", "host", "act as host or cleaner")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("role", rootCmd.PersistentFlags().Lookup("role"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(requestCmd())
	rootCmd.AddCommand(messageCmd())
	rootCmd.AddCommand(notificationCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(serveCmd())
}

// actor resolves the caller identity from flags, falling back to the demo
// identity configured for the chosen role.
func actor(a *app.App) (domain.Actor, error) {
	role := domain.Role(viper.GetString("role"))
	if !role.Valid() {
		return domain.Actor{}, fmt.Errorf("--role must be host or cleaner")
	}
	id := viper.GetString("actor-id")
	if id == "" {
		if role == domain.RoleHost {
			id = a.Config.Identities.Host.ID
		} else {
			id = a.Config.Identities.Cleaner.ID
		}
	}
	return domain.Actor{ID: id, Role: role}, nil
}

func requestCmd() *cobra.Command {
	req := &cobra.Command{Use: "request", Short: "Manage cleaning requests"}
	req.AddCommand(requestListCmd())
	req.AddCommand(requestShowCmd())
	req.AddCommand(requestCreateCmd())
	req.AddCommand(requestRateCmd())
	for _, t := range []struct {
		use, short string
		run        func(ctx context.Context, a *app.App, who domain.Actor, id string) (domain.ServiceRequest, error)
	}{
		{"apply <request-id>", "Apply to a request as a cleaner", func(ctx context.Context, a *app.App, who domain.Actor, id string) (domain.ServiceRequest, error) {
			cleaner := a.Config.Identities.Cleaner
			return a.Engine.Apply(ctx, id, engine.CleanerRef{ID: who.ID, Name: cleaner.Name, Avatar: cleaner.Avatar})
		}},
		{"withdraw <request-id>", "Withdraw an application", func(ctx context.Context, a *app.App, _ domain.Actor, id string) (domain.ServiceRequest, error) {
			return a.Engine.Withdraw(ctx, id)
		}},
		{"reject <request-id>", "Reject the current application", func(ctx context.Context, a *app.App, _ domain.Actor, id string) (domain.ServiceRequest, error) {
			return a.Engine.Reject(ctx, id)
		}},
		{"confirm <request-id>", "Confirm the current application", func(ctx context.Context, a *app.App, who domain.Actor, id string) (domain.ServiceRequest, error) {
			return a.Engine.Confirm(ctx, id, who.ID)
		}},
		{"start <request-id>", "Start the job", func(ctx context.Context, a *app.App, who domain.Actor, id string) (domain.ServiceRequest, error) {
			return a.Engine.Start(ctx, id, who.ID)
		}},
		{"complete <request-id>", "Complete the job", func(ctx context.Context, a *app.App, _ domain.Actor, id string) (domain.ServiceRequest, error) {
			return a.Engine.Complete(ctx, id)
		}},
		{"cancel <request-id>", "Cancel the request", func(ctx context.Context, a *app.App, _ domain.Actor, id string) (domain.ServiceRequest, error) {
			return a.Engine.Cancel(ctx, id)
		}},
	} {
		t := t
		req.AddCommand(&cobra.Command{
			Use:   t.use,
			Short: t.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
					who, err := actor(a)
					if err != nil {
						return err
					}
					r, err := t.run(ctx, a, who, args[0])
					if err != nil {
						return err
					}
					return printJSONOrStatus(r)
				})
			},
		})
	}
	return req
}

func requestListCmd() *cobra.Command {
	var view, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				who, err := actor(a)
				if err != nil {
					return err
				}
				var items []domain.ServiceRequest
				switch {
				case status != "":
					items = a.Engine.ByStatus(domain.Status(status), who.Role, who.ID)
				case view == "available":
					items = a.Engine.Available()
				case view == "applications":
					items = a.Engine.MyApplications(who.ID)
				case view == "active":
					items = a.Engine.ActiveFor(who.ID)
				case view == "past":
					items = a.Engine.PastFor(who.Role, who.ID)
				default:
					items = a.Engine.All()
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Asset", "Date", "Price", "Status", "Cleaner"})
				for _, r := range items {
					cleaner := ""
					if r.CleanerName != nil {
						cleaner = *r.CleanerName
					}
					tw.AppendRow(table.Row{r.ID, r.Asset.Name, r.Schedule.Date, r.Price, r.Status, cleaner})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&view, "view", "all", "available, applications, active, past or all")
	cmd.Flags().StringVar(&status, "status", "", "status filter (scoped to your requests)")
	return cmd
}

func requestShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <request-id>",
		Short: "Show a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				r, err := a.Engine.ByID(args[0])
				if err != nil {
					return err
				}
				return printJSON(r)
			})
		},
	}
}

func requestCreateCmd() *cobra.Command {
	var asset domain.AssetSnapshot
	var schedule domain.Schedule
	var price int
	var instructions string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post a cleaning request",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				who, err := actor(a)
				if err != nil {
					return err
				}
				host := a.Config.Identities.Host
				r, err := a.Engine.Create(ctx, engine.CreateInput{
					HostID:       who.ID,
					HostName:     host.Name,
					HostAvatar:   host.Avatar,
					Asset:        asset,
					Schedule:     schedule,
					Price:        price,
					Instructions: instructions,
				})
				if err != nil {
					return err
				}
				return printJSON(r)
			})
		},
	}
	cmd.Flags().StringVar(&asset.Name, "asset-name", "", "asset display name")
	cmd.Flags().StringVar(&asset.Address, "address", "", "asset address")
	cmd.Flags().IntVar(&asset.Surface, "surface", 0, "surface in square meters")
	cmd.Flags().StringVar(&asset.Type, "type", "", "asset type")
	cmd.Flags().StringVar(&asset.Image, "image", "", "asset image URL")
	cmd.Flags().StringVar(&schedule.Date, "date", "", "date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&schedule.Time, "time", "", "time of day (HH:MM)")
	cmd.Flags().StringVar(&schedule.Duration, "duration", "", "expected duration, e.g. 2h")
	cmd.Flags().IntVar(&price, "price", 0, "price offered")
	cmd.Flags().StringVar(&instructions, "instructions", "", "free-text instructions")
	return cmd
}

func requestRateCmd() *cobra.Command {
	var rating int
	var review string
	cmd := &cobra.Command{
		Use:   "rate <request-id>",
		Short: "Rate a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				r, err := a.Engine.Rate(ctx, args[0], rating, review)
				if err != nil {
					return err
				}
				return printJSON(r)
			})
		},
	}
	cmd.Flags().IntVar(&rating, "rating", 0, "rating from 1 to 5")
	cmd.Flags().StringVar(&review, "review", "", "review text")
	return cmd
}

func messageCmd() *cobra.Command {
	msg := &cobra.Command{Use: "message", Short: "Conversations and messages"}
	msg.AddCommand(&cobra.Command{
		Use:   "conversations",
		Short: "List conversations with last message and unread count",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				who, err := actor(a)
				if err != nil {
					return err
				}
				items := a.Messages.ConversationsWithPreview(who.Role)
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Asset", "With", "Last message", "Unread"})
				for _, c := range items {
					with := c.CleanerName
					if who.Role == domain.RoleCleaner {
						with = c.HostName
					}
					last := ""
					if c.LastMessage != nil {
						last = c.LastMessage.Text
					}
					tw.AppendRow(table.Row{c.ID, c.AssetName, with, last, c.UnreadCount})
				}
				tw.Render()
				return nil
			})
		},
	})
	msg.AddCommand(&cobra.Command{
		Use:   "list <conversation-id>",
		Short: "List a conversation's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Messages.ConversationMessages(args[0])
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	})
	var text string
	send := &cobra.Command{
		Use:   "send <conversation-id>",
		Short: "Send a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				who, err := actor(a)
				if err != nil {
					return err
				}
				m, err := a.Messages.Send(ctx, args[0], who.Role, text)
				if err != nil {
					return err
				}
				return printJSON(m)
			})
		},
	}
	send.Flags().StringVar(&text, "text", "", "message text")
	msg.AddCommand(send)
	msg.AddCommand(&cobra.Command{
		Use:   "read <conversation-id>",
		Short: "Mark a conversation read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				who, err := actor(a)
				if err != nil {
					return err
				}
				return a.Messages.MarkConversationRead(ctx, args[0], who.Role)
			})
		},
	})
	msg.AddCommand(&cobra.Command{
		Use:   "read-all",
		Short: "Mark every message read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				who, err := actor(a)
				if err != nil {
					return err
				}
				return a.Messages.MarkAllRead(ctx, who.Role)
			})
		},
	})
	msg.AddCommand(&cobra.Command{
		Use:   "unread",
		Short: "Unread message count",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				who, err := actor(a)
				if err != nil {
					return err
				}
				fmt.Println(a.Messages.UnreadCount(who.Role))
				return nil
			})
		},
	})
	return msg
}

func notificationCmd() *cobra.Command {
	ntf := &cobra.Command{Use: "notification", Short: "Notification feed"}
	ntf.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				who, err := actor(a)
				if err != nil {
					return err
				}
				items := a.Notify.ListFor(who.Role)
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Type", "Title", "Read"})
				for _, n := range items {
					tw.AppendRow(table.Row{n.ID, n.Type, n.Title, n.Read})
				}
				tw.Render()
				return nil
			})
		},
	})
	ntf.AddCommand(&cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark a notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Notify.MarkRead(ctx, args[0])
			})
		},
	})
	ntf.AddCommand(&cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				who, err := actor(a)
				if err != nil {
					return err
				}
				return a.Notify.MarkAllRead(ctx, who.Role)
			})
		},
	})
	ntf.AddCommand(&cobra.Command{
		Use:   "remove <notification-id>",
		Short: "Delete a notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return a.Notify.Remove(ctx, args[0])
			})
		},
	})
	ntf.AddCommand(&cobra.Command{
		Use:   "unread",
		Short: "Unread notification count",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				who, err := actor(a)
				if err != nil {
					return err
				}
				fmt.Println(a.Notify.UnreadCount(who.Role))
				return nil
			})
		},
	})
	return ntf
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Request counts for your side of the marketplace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				who, err := actor(a)
				if err != nil {
					return err
				}
				all := a.Engine.All()
				if who.Role == domain.RoleHost {
					return printJSON(stats.ForHost(all, who.ID))
				}
				return printJSON(stats.ForCleaner(all, who.ID))
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage freshnest.yml"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default config to the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(c)
		},
	})
	return cfg
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore every collection to the demo seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Reset(ctx); err != nil {
					return err
				}
				fmt.Println("collections reset to seed data")
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacy bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				secret := os.Getenv("FRESHNEST_JWT_SECRET")
				if secret == "" {
					secret = a.Config.Auth.JWTSecret
				}
				if secret == "" {
					return fmt.Errorf("FRESHNEST_JWT_SECRET or auth.jwt_secret is required for bearer auth")
				}
				handler, err := server.New(server.Config{
					App:      a,
					BasePath: basePath,
					Auth: server.AuthConfig{
						JWTSecret:              secret,
						TokenTTL:               a.Config.TokenTTL(),
						AllowLegacyActorHeader: allowLegacy,
					},
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Freshnest API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowLegacy, "allow-legacy-actor-header", false, "accept X-Actor-Id/X-Actor-Role without a token")
	return cmd
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	a, err := app.Open(ctx, viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSONOrStatus(r domain.ServiceRequest) error {
	if viper.GetBool("json") {
		return printJSON(r)
	}
	fmt.Printf("%s: %s\n", r.ID, r.Status)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
