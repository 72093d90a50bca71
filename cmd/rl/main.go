package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rampline/internal/app"
	"rampline/internal/config"
	"rampline/internal/db"
	"rampline/internal/domain"
	"rampline/internal/engine"
	"rampline/internal/migrate"
	"rampline/internal/server"
	"rampline/internal/store"
	ramplinesdk "rampline/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "rl",
	Short: "Rampline CLI",
	Long: `Rampline manages developer onboarding: reusable template parts,
composed templates, and per-user onboarding runs with progress tracking.
Core concepts:
- Workspace: the .rampline directory holding the database; config lives in the DB.
- Company: the tenant that owns parts, templates, users, and repositories.
- Parts: reusable setup blocks (fields to fill, validators to pass).
- Templates: ordered part lists per role; drafts are edited, published versions are snapshotted.
- Onboardings: a user's run through a published template; steps go not_started -> in_progress -> passed/failed/skipped.
- Repos: tracked repositories; scans suggest parts from the detected stack.
- Event log: diary of changes, view with 'rl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
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
	viper.SetEnvPrefix("RAMPLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("company", "", "company id (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("company", rootCmd.PersistentFlags().Lookup("company"))
}

func registerCommands() {
	rootCmd.AddCommand(companyCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(partCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(onboardingCmd())
	rootCmd.AddCommand(questionnaireCmd())
	rootCmd.AddCommand(toolsetCmd())
	rootCmd.AddCommand(repoCmd())
	rootCmd.AddCommand(analyticsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(seedCmd())
}

func companyCmd() *cobra.Command {
	co := &cobra.Command{Use: "company", Short: "Manage the company"}
	co.AddCommand(companyInitCmd())
	co.AddCommand(companyShowCmd())
	co.AddCommand(companyUpdateCmd())
	co.AddCommand(companyConfigCmd())
	return co
}

func companyInitCmd() *cobra.Command {
	var id, name, roleKey string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a company",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			e := engine.New(conn, config.Default(id))
			c, err := e.InitCompany(cmd.Context(), id, name, roleKey, viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			return printJSONOrTable(c)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "company id")
	cmd.Flags().StringVar(&name, "name", "", "company name")
	cmd.Flags().StringVar(&roleKey, "default-role-key", "dev", "default role key")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func companyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the company",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Store.GetCompany(ctx, e.Config.Company.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
}

func companyUpdateCmd() *cobra.Command {
	var name, roleKey string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the company",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.CompanyUpdateOptions{ActorID: viper.GetString("actor-id")}
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("default-role-key") {
					opts.DefaultRoleKey = &roleKey
				}
				c, err := e.UpdateCompany(ctx, e.Config.Company.ID, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "company name")
	cmd.Flags().StringVar(&roleKey, "default-role-key", "", "default role key")
	return cmd
}

func companyConfigCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage company config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	})
	var file string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import config from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.FromFile(file)
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), func(ctx context.Context, s store.Store) error {
				if err := s.UpsertCompanyConfig(ctx, loaded.Company.ID, loaded); err != nil {
					return err
				}
				fmt.Printf("Imported config for company %s\n", loaded.Company.ID)
				return nil
			})
		},
	}
	importCmd.Flags().StringVar(&file, "file", "", "path to YAML config")
	_ = importCmd.MarkFlagRequired("file")
	cfg.AddCommand(importCmd)
	var companyID string
	genCmd := &cobra.Command{
		Use:   "init",
		Short: "Print default config YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(config.GenerateDefault(companyID))
			return nil
		},
	}
	genCmd.Flags().StringVar(&companyID, "id", "my-company", "company id")
	cfg.AddCommand(genCmd)
	return cfg
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show company status",
		Long:  "See the scoreboard: template counts by status, onboarding counts, and queued scans.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				companyID := e.Config.Company.ID
				c, err := e.Store.GetCompany(ctx, companyID)
				if err != nil {
					return err
				}
				templates, err := e.Store.ListTemplates(ctx, store.TemplateFilters{CompanyID: companyID})
				if err != nil {
					return err
				}
				onboardings, err := e.Store.ListOnboardings(ctx, store.OnboardingFilters{CompanyID: companyID})
				if err != nil {
					return err
				}
				scans, err := e.Store.RecentScans(ctx, companyID, 100)
				if err != nil {
					return err
				}
				tplCounts := map[string]int{}
				for _, t := range templates {
					tplCounts[t.Status]++
				}
				obCounts := map[string]int{}
				for _, o := range onboardings {
					obCounts[o.Status]++
				}
				queued := 0
				for _, sc := range scans {
					if sc.Status == "queued" || sc.Status == "running" {
						queued++
					}
				}
				out := map[string]any{
					"company":           c,
					"template_counts":   tplCounts,
					"onboarding_counts": obCounts,
					"pending_scans":     queued,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Company: %s (%s)\n", c.Name, c.ID)
				fmt.Println("Templates:")
				for status, n := range tplCounts {
					fmt.Printf("  %s: %d\n", status, n)
				}
				fmt.Println("Onboardings:")
				for status, n := range obCounts {
					fmt.Printf("  %s: %d\n", status, n)
				}
				fmt.Printf("Pending scans: %d\n", queued)
				return nil
			})
		},
	}
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userCreateCmd())
	user.AddCommand(userListCmd())
	return user
}

func userCreateCmd() *cobra.Command {
	var email, name, password, role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, e.Config.Company.ID, engine.UserCreateOptions{
					Email:    email,
					Name:     name,
					Password: password,
					Role:     role,
					ActorID:  viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&password, "password", "", "password (min 8 chars)")
	cmd.Flags().StringVar(&role, "role", "dev", "role: admin or dev")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				users, err := e.Store.ListUsers(ctx, e.Config.Company.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(users)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Email", "Name", "Role"})
				for _, u := range users {
					tw.AppendRow(table.Row{u.ID, u.Email, u.Name, u.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func partCmd() *cobra.Command {
	part := &cobra.Command{
		Use:   "part",
		Short: "Manage template parts",
		Long:  "Parts are reusable setup blocks. Each carries fields the new hire fills in and validators that check the machine.",
	}
	part.AddCommand(partCreateCmd())
	part.AddCommand(partListCmd())
	part.AddCommand(partShowCmd())
	part.AddCommand(partDeleteCmd())
	return part
}

func partCreateCmd() *cobra.Command {
	var title, description, roleKey string
	var tags, fields []string
	var fieldsJSON, validatorsJSON string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a part",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.PartOptions{
				Title:       title,
				Description: description,
				RoleKey:     roleKey,
				Tags:        tags,
				ActorID:     viper.GetString("actor-id"),
			}
			for _, spec := range fields {
				f, err := parseFieldSpec(spec)
				if err != nil {
					return err
				}
				opts.Fields = append(opts.Fields, f)
			}
			if fieldsJSON != "" {
				if err := json.Unmarshal([]byte(fieldsJSON), &opts.Fields); err != nil {
					return fmt.Errorf("parse --fields-json: %w", err)
				}
			}
			if validatorsJSON != "" {
				if err := json.Unmarshal([]byte(validatorsJSON), &opts.Validators); err != nil {
					return fmt.Errorf("parse --validators-json: %w", err)
				}
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreatePart(ctx, e.Config.Company.ID, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "part title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&roleKey, "role", "dev", "role key")
	cmd.Flags().StringArrayVar(&tags, "tag", []string{}, "tag (repeatable)")
	cmd.Flags().StringArrayVar(&fields, "field", []string{}, "field as key:label:type (repeatable)")
	cmd.Flags().StringVar(&fieldsJSON, "fields-json", "", "fields as a JSON array (overrides --field)")
	cmd.Flags().StringVar(&validatorsJSON, "validators-json", "", "validators as a JSON array")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func parseFieldSpec(spec string) (domain.Field, error) {
	parts := strings.SplitN(spec, ":", 3)
	if len(parts) != 3 {
		return domain.Field{}, fmt.Errorf("field %q must be key:label:type", spec)
	}
	return domain.Field{Key: parts[0], Label: parts[1], Type: parts[2]}, nil
}

func partListCmd() *cobra.Command {
	var roleKey, tag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List parts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Store.ListParts(ctx, store.PartFilters{
					CompanyID: e.Config.Company.ID,
					RoleKey:   roleKey,
					Tag:       tag,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Role", "Tags", "Fields", "Validators"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Title, p.RoleKey, strings.Join(p.Tags, ","), len(p.Fields), len(p.Validators)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&roleKey, "role", "", "filter by role key")
	cmd.Flags().StringVar(&tag, "tag", "", "filter by tag")
	return cmd
}

func partShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <part-id>",
		Short: "Show a part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Store.GetPart(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func partDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <part-id>",
		Short: "Delete a part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeletePart(ctx, args[0], viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Printf("Deleted part %s\n", args[0])
				return nil
			})
		},
	}
	return cmd
}

func templateCmd() *cobra.Command {
	tpl := &cobra.Command{
		Use:   "template",
		Short: "Manage templates",
		Long:  "Templates compose parts in order. Drafts are edited freely; publishing bumps the version and replaces same-name drafts.",
	}
	tpl.AddCommand(templateCreateCmd())
	tpl.AddCommand(templateListCmd())
	tpl.AddCommand(templateShowCmd())
	tpl.AddCommand(templateUpdateCmd())
	tpl.AddCommand(templatePublishCmd())
	tpl.AddCommand(templatePreviewCmd())
	tpl.AddCommand(templateAddPartCmd())
	tpl.AddCommand(templateRemovePartCmd())
	tpl.AddCommand(templateReorderCmd())
	tpl.AddCommand(templateDeleteCmd())
	return tpl
}

func templateCreateCmd() *cobra.Command {
	var name, roleKey string
	var partIDs []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft template",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.SaveDraftTemplate(ctx, e.Config.Company.ID, engine.TemplateOptions{
					Name:    &name,
					RoleKey: &roleKey,
					PartIDs: partIDs,
					ActorID: viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "template name")
	cmd.Flags().StringVar(&roleKey, "role", "dev", "role key")
	cmd.Flags().StringArrayVar(&partIDs, "part", []string{}, "part id (repeatable, ordered)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func templateListCmd() *cobra.Command {
	var roleKey, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Store.ListTemplates(ctx, store.TemplateFilters{
					CompanyID: e.Config.Company.ID,
					RoleKey:   roleKey,
					Status:    status,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Role", "Status", "Version", "Parts"})
				for _, t := range items {
					tw.AppendRow(table.Row{t.ID, t.Name, t.RoleKey, t.Status, t.Version, len(t.PartIDs)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&roleKey, "role", "", "filter by role key")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (draft|published)")
	return cmd
}

func templateShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <template-id>",
		Short: "Show a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Store.GetTemplate(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func templateUpdateCmd() *cobra.Command {
	var name, roleKey string
	var partIDs []string
	cmd := &cobra.Command{
		Use:   "update <template-id>",
		Short: "Update a template (reverts published templates to draft)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts := engine.TemplateOptions{ActorID: viper.GetString("actor-id")}
				if cmd.Flags().Changed("name") {
					opts.Name = &name
				}
				if cmd.Flags().Changed("role") {
					opts.RoleKey = &roleKey
				}
				if cmd.Flags().Changed("part") {
					opts.PartIDs = partIDs
				}
				t, err := e.UpdateTemplate(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "template name")
	cmd.Flags().StringVar(&roleKey, "role", "", "role key")
	cmd.Flags().StringArrayVar(&partIDs, "part", []string{}, "part id (repeatable, replaces the list)")
	return cmd
}

func templatePublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <template-id>",
		Short: "Publish a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.PublishTemplate(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func templatePreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview <template-id>",
		Short: "Preview a template with resolved parts and time estimate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				pv, err := e.PreviewTemplate(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(pv)
				}
				fmt.Printf("Template: %s (v%d, %s)\n", pv.Template.Name, pv.Template.Version, pv.Template.Status)
				fmt.Printf("Steps: %d  Fields: %d  Estimated: %d min\n", pv.TotalSteps, pv.TotalFields, pv.EstimatedMinutes)
				for i, p := range pv.Parts {
					fmt.Printf("  %d. %s (%d fields)\n", i+1, p.Title, len(p.Fields))
				}
				return nil
			})
		},
	}
}

func templateAddPartCmd() *cobra.Command {
	var partID string
	cmd := &cobra.Command{
		Use:   "add-part <template-id>",
		Short: "Append a part to a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.AddTemplatePart(ctx, args[0], partID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&partID, "part", "", "part id")
	_ = cmd.MarkFlagRequired("part")
	return cmd
}

func templateRemovePartCmd() *cobra.Command {
	var partID string
	cmd := &cobra.Command{
		Use:   "remove-part <template-id>",
		Short: "Remove a part from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.RemoveTemplatePart(ctx, args[0], partID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&partID, "part", "", "part id")
	_ = cmd.MarkFlagRequired("part")
	return cmd
}

func templateReorderCmd() *cobra.Command {
	var from, to int
	cmd := &cobra.Command{
		Use:   "reorder <template-id>",
		Short: "Move a part from one index to another",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.ReorderTemplateParts(ctx, args[0], from, to, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "source index")
	cmd.Flags().IntVar(&to, "to", 0, "target index")
	return cmd
}

func templateDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <template-id>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteTemplate(ctx, args[0], viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Printf("Deleted template %s\n", args[0])
				return nil
			})
		},
	}
}

func onboardingCmd() *cobra.Command {
	ob := &cobra.Command{
		Use:   "onboarding",
		Short: "Manage onboarding runs",
		Long:  "An onboarding snapshots a published template's parts as steps for one user and tracks progress until completed.",
	}
	ob.AddCommand(onboardingStartCmd())
	ob.AddCommand(onboardingListCmd())
	ob.AddCommand(onboardingShowCmd())
	ob.AddCommand(onboardingStepCmd())
	ob.AddCommand(onboardingRerunCmd())
	ob.AddCommand(onboardingPauseCmd())
	ob.AddCommand(onboardingResumeCmd())
	return ob
}

func onboardingStartCmd() *cobra.Command {
	var userID, templateID string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start an onboarding",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.StartOnboarding(ctx, engine.OnboardingStartOptions{
					CompanyID:  e.Config.Company.ID,
					UserID:     userID,
					TemplateID: templateID,
					ActorID:    viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&templateID, "template", "", "published template id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func onboardingListCmd() *cobra.Command {
	var userID, status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List onboardings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListEnrichedOnboardings(ctx, store.OnboardingFilters{
					CompanyID: e.Config.Company.ID,
					UserID:    userID,
					Status:    status,
					Limit:     limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "User", "Template", "Status", "Progress"})
				for _, o := range items {
					tw.AppendRow(table.Row{o.ID, o.UserName, o.TemplateName, o.Status, fmt.Sprintf("%d%%", o.Progress)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "filter by user id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 50, "max results")
	return cmd
}

func onboardingShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <onboarding-id>",
		Short: "Show an onboarding with its steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.Store.GetOnboarding(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(o)
				}
				fmt.Printf("Onboarding %s: %s (%d%%)\n", o.ID, o.Status, o.Progress)
				for i, s := range o.Steps {
					marker := " "
					if action := engine.StepAction(s.Status); action != "" {
						marker = "!"
					}
					fmt.Printf("  %d. [%s]%s %s (%s)\n", i+1, s.Status, marker, s.Title, s.ID)
				}
				return nil
			})
		},
	}
}

func onboardingStepCmd() *cobra.Command {
	var stepID, status string
	cmd := &cobra.Command{
		Use:   "step <onboarding-id>",
		Short: "Set a step status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.SetStepStatus(ctx, args[0], stepID, status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&stepID, "step", "", "step id")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	_ = cmd.MarkFlagRequired("step")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func onboardingRerunCmd() *cobra.Command {
	var stepID string
	cmd := &cobra.Command{
		Use:   "rerun <onboarding-id>",
		Short: "Rerun validation for a failed step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.RerunStepValidation(ctx, args[0], stepID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&stepID, "step", "", "step id")
	_ = cmd.MarkFlagRequired("step")
	return cmd
}

func onboardingPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <onboarding-id>",
		Short: "Pause an onboarding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.PauseOnboarding(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
}

func onboardingResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <onboarding-id>",
		Short: "Resume a paused onboarding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.ResumeOnboarding(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
}

func questionnaireCmd() *cobra.Command {
	qn := &cobra.Command{
		Use:   "questionnaire",
		Short: "Manage questionnaires",
		Long:  "A questionnaire gathers answers for the fields of a template's parts before the onboarding starts.",
	}
	qn.AddCommand(questionnaireCreateCmd())
	qn.AddCommand(questionnaireAnswerCmd())
	qn.AddCommand(questionnaireShowCmd())
	return qn
}

func questionnaireCreateCmd() *cobra.Command {
	var templateID string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a questionnaire from a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, err := e.CreateQuestionnaire(ctx, e.Config.Company.ID, templateID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(q)
			})
		},
	}
	cmd.Flags().StringVar(&templateID, "template", "", "template id")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func questionnaireAnswerCmd() *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "answer <questionnaire-id>",
		Short: "Record answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			answers := map[string]any{}
			for _, kv := range sets {
				k, v, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("answer %q must be key=value", kv)
				}
				answers[k] = v
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, err := e.AnswerQuestionnaire(ctx, args[0], answers, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(q)
			})
		},
	}
	cmd.Flags().StringArrayVar(&sets, "set", []string{}, "answer as key=value (repeatable)")
	return cmd
}

func questionnaireShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <questionnaire-id>",
		Short: "Show a questionnaire",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				q, err := e.Store.GetQuestionnaire(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(q)
			})
		},
	}
}

func toolsetCmd() *cobra.Command {
	ts := &cobra.Command{
		Use:   "toolset",
		Short: "Resolve questionnaires into setup steps",
	}
	var questionnaireID string
	create := &cobra.Command{
		Use:   "create",
		Short: "Generate a toolset from a questionnaire",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.GenerateToolSet(ctx, questionnaireID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Toolset %s (%d steps)\n", out.ID, len(out.ResolvedSteps))
				for i, s := range out.ResolvedSteps {
					fmt.Printf("  %d. %s: %s\n", i+1, s.Title, s.Instructions)
				}
				return nil
			})
		},
	}
	create.Flags().StringVar(&questionnaireID, "questionnaire", "", "questionnaire id")
	_ = create.MarkFlagRequired("questionnaire")
	ts.AddCommand(create)
	ts.AddCommand(&cobra.Command{
		Use:   "show <toolset-id>",
		Short: "Show a toolset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.Store.GetToolSet(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	})
	return ts
}

func repoCmd() *cobra.Command {
	rp := &cobra.Command{
		Use:   "repo",
		Short: "Manage tracked repositories and scans",
		Long:  "Scans inspect a repository's stack and suggest template parts (clone, install dependencies).",
	}
	rp.AddCommand(repoAddCmd())
	rp.AddCommand(repoListCmd())
	rp.AddCommand(repoScanCmd())
	rp.AddCommand(repoScansCmd())
	rp.AddCommand(repoRunNextCmd())
	return rp
}

func repoAddCmd() *cobra.Command {
	var provider, org, name, branch string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Track a repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.CreateRepository(ctx, e.Config.Company.ID, engine.RepositoryOptions{
					Provider:      provider,
					Org:           org,
					Name:          name,
					DefaultBranch: branch,
					ActorID:       viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "github", "provider: github or gitlab")
	cmd.Flags().StringVar(&org, "org", "", "organization")
	cmd.Flags().StringVar(&name, "name", "", "repository name")
	cmd.Flags().StringVar(&branch, "branch", "", "default branch (defaults to main)")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func repoListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List repositories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Store.ListRepositories(ctx, e.Config.Company.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Provider", "Org", "Name", "Branch"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.ID, r.Provider, r.Org, r.Name, r.DefaultBranch})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func repoScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <repo-id>",
		Short: "Queue a repository scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sc, err := e.StartScan(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(sc)
			})
		},
	}
}

func repoScansCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "scans",
		Short: "List recent scans",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Store.RecentScans(ctx, e.Config.Company.ID, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Repo", "Status", "Updated"})
				for _, sc := range items {
					tw.AppendRow(table.Row{sc.ID, sc.RepoID, sc.Status, sc.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max results")
	return cmd
}

func repoRunNextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-next",
		Short: "Process queued scans once (instead of the background worker)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				n := 0
				for {
					ran, err := e.RunNextScan(ctx)
					if err != nil {
						return err
					}
					if !ran {
						break
					}
					n++
				}
				fmt.Printf("Processed %d scan(s)\n", n)
				return nil
			})
		},
	}
}

func analyticsCmd() *cobra.Command {
	an := &cobra.Command{Use: "analytics", Short: "Onboarding analytics"}
	an.AddCommand(&cobra.Command{
		Use:   "onboarding-time",
		Short: "Average completion time by role, in hours",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.OnboardingTimeByRole(ctx, e.Config.Company.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				for role, hours := range out {
					fmt.Printf("%s: %.1fh\n", role, hours)
				}
				return nil
			})
		},
	})
	return an
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var entity, entityID, action string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Store.LatestEvents(ctx, store.EventFilters{
					CompanyID: e.Config.Company.ID,
					Entity:    entity,
					EntityID:  entityID,
					Action:    action,
					Limit:     n,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&entity, "entity", "", "entity filter")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	cmd.Flags().StringVar(&action, "action", "", "action filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			s := store.Store{DB: conn}
			_, cfg, err := app.ResolveCompanyAndConfig(cmd.Context(), viper.GetString("company"), s)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret: os.Getenv("RAMPLINE_JWT_SECRET"),
				TokenTTL:  cfg.TokenTTL(),
			}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("RAMPLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			server.StartScanWorker(cmd.Context(), e)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Rampline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/api/v1", "API base path")
	return cmd
}

func loginCmd() *cobra.Command {
	var serverURL, email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to a Rampline server and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			session, err := ramplinesdk.OpenSession(sessionPath(workspace))
			if err != nil {
				return err
			}
			client := ramplinesdk.New(serverURL, session)
			u, err := client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Printf("Logged in as %s (%s)\n", u.Email, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://127.0.0.1:8080", "server base URL")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func seedCmd() *cobra.Command {
	var companyID, adminPassword string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo company with users, parts, and a published template",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			ctx := cmd.Context()
			actor := viper.GetString("actor-id")
			e := engine.New(conn, config.Default(companyID))
			if _, err := e.InitCompany(ctx, companyID, "Demo Co", "dev", actor); err != nil {
				return err
			}
			admin, err := e.CreateUser(ctx, companyID, engine.UserCreateOptions{
				Email: "admin@demo.test", Name: "Demo Admin", Password: adminPassword, Role: "admin", ActorID: actor,
			})
			if err != nil {
				return err
			}
			dev, err := e.CreateUser(ctx, companyID, engine.UserCreateOptions{
				Email: "dev@demo.test", Name: "Demo Dev", Password: adminPassword, Role: "dev", ActorID: actor,
			})
			if err != nil {
				return err
			}
			laptop, err := e.CreatePart(ctx, companyID, engine.PartOptions{
				Title:   "Laptop setup",
				RoleKey: "dev",
				Tags:    []string{"hardware"},
				Fields: []domain.Field{
					{Key: "hostname", Label: "Hostname", Type: "text", Required: true},
				},
				ActorID: actor,
			})
			if err != nil {
				return err
			}
			gitAccess, err := e.CreatePart(ctx, companyID, engine.PartOptions{
				Title:   "Git access",
				RoleKey: "dev",
				Tags:    []string{"access"},
				Fields: []domain.Field{
					{Key: "ssh_key", Label: "SSH public key", Type: "textarea", Required: true},
				},
				Validators: []domain.Validator{
					{Key: "git_clone", Label: "Clone works", Type: "command", OS: []string{"mac", "linux"}, Params: map[string]string{"cmd": "git ls-remote"}},
				},
				ActorID: actor,
			})
			if err != nil {
				return err
			}
			name := "Developer onboarding"
			role := "dev"
			tpl, err := e.SaveDraftTemplate(ctx, companyID, engine.TemplateOptions{
				Name: &name, RoleKey: &role, PartIDs: []string{laptop.ID, gitAccess.ID}, ActorID: actor,
			})
			if err != nil {
				return err
			}
			tpl, err = e.PublishTemplate(ctx, tpl.ID, actor)
			if err != nil {
				return err
			}
			ob, err := e.StartOnboarding(ctx, engine.OnboardingStartOptions{
				CompanyID: companyID, UserID: dev.ID, TemplateID: tpl.ID, ActorID: actor,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Seeded company %s: admin %s, dev %s, template %s (v%d), onboarding %s\n",
				companyID, admin.Email, dev.Email, tpl.ID, tpl.Version, ob.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&companyID, "id", "demo-co", "company id")
	cmd.Flags().StringVar(&adminPassword, "password", "demo-password", "password for the seeded users")
	return cmd
}

func sessionPath(workspace string) string {
	return filepath.Join(workspace, ".rampline", "session.json")
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	s := store.Store{DB: conn}
	_, cfg, err := app.ResolveCompanyAndConfig(ctx, viper.GetString("company"), s)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withStore(ctx context.Context, fn func(context.Context, store.Store) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, store.Store{DB: conn})
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
