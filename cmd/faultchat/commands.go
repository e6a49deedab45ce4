package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/faultchat/internal/config"
	"github.com/kalambet/faultchat/internal/conversation"
	"github.com/kalambet/faultchat/internal/storage"
)

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show diagnosis service health and local configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		stderr.fail("config error: %v", err)
		return nil
	}

	gw := newGateway(cfg, newLogger(cfg, io.Discard))
	stderr.health(gw.BaseURL(), gw.Health(context.Background()))

	engine := cfg.Gateway.Engine
	if engine == "" {
		engine = "server default"
	}
	stderr.field("Engine", "%s", engine)
	stderr.field("Gateway token", "%s", setLabel(cfg.Gateway.Token))
	stderr.field("Server token", "%s", setLabel(cfg.Server.Token))

	if cfg.Storage.Archive {
		store, err := storage.Open(cfg.Storage.DataDir)
		if err == nil {
			dialogues, err := store.ListDialogues(context.Background(), 100)
			if err == nil {
				stderr.field("Archived dialogues", "%s", countLabel(len(dialogues), 100))
			}
			store.Close()
		}
	} else {
		stderr.field("Archive", "disabled")
	}

	stderr.field("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func setLabel(secret string) string {
	if secret == "" {
		return "unset"
	}
	return "set"
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse or purge archived dialogues",
}

// openArchive opens the local archive read-write.
var openArchive = func() (*storage.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return storage.Open(cfg.Storage.DataDir)
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent dialogues",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()

		dialogues, err := store.ListDialogues(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("listing dialogues: %w", err)
		}
		writeDialogues(os.Stdout, dialogues)
		return nil
	},
}

func writeDialogues(w io.Writer, dialogues []storage.Dialogue) {
	if len(dialogues) == 0 {
		fmt.Fprintln(w, "No dialogues found.")
		return
	}
	for _, d := range dialogues {
		query := d.FirstQuery
		if len(query) > 80 {
			query = query[:80] + "..."
		}
		fmt.Fprintf(w, "%s  %s  %2d turns  %s\n",
			shortID(d.ID),
			d.UpdatedAt.Local().Format("2006-01-02 15:04"),
			d.Turns,
			query,
		)
	}
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one dialogue (a unique id prefix is enough)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()

		d, turns, err := store.GetDialogue(cmd.Context(), args[0])
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no dialogue matches %q", args[0])
		}
		if err != nil {
			return err
		}
		if asJSON {
			return writeDialogueJSON(os.Stdout, d, turns)
		}
		writeDialogue(os.Stdout, d, turns)
		return nil
	},
}

func writeDialogue(w io.Writer, d storage.Dialogue, turns []storage.Turn) {
	fmt.Fprintf(w, "%s %s\n", paint(toneLabel, "Dialogue"), d.ID)
	fmt.Fprintf(w, "Started %s\n", d.StartedAt.Local().Format(time.RFC1123))
	for _, t := range turns {
		label := "You"
		if t.Role == string(conversation.RoleAssistant) {
			label = "Diagnosis"
			if t.Kind == conversation.OutcomeClarification.String() {
				label = "Question"
			}
		}
		fmt.Fprintf(w, "\n%s\n%s\n", paint(toneLabel, label+":"), strings.TrimRight(t.Text, "\n"))
	}
}

func writeDialogueJSON(w io.Writer, d storage.Dialogue, turns []storage.Turn) error {
	type turnJSON struct {
		Seq     int             `json:"seq"`
		Role    string          `json:"role"`
		Kind    string          `json:"kind,omitempty"`
		At      time.Time       `json:"at"`
		Content json.RawMessage `json:"content"`
	}
	out := struct {
		ID        string     `json:"id"`
		StartedAt time.Time  `json:"started_at"`
		Turns     []turnJSON `json:"turns"`
	}{ID: d.ID, StartedAt: d.StartedAt, Turns: make([]turnJSON, 0, len(turns))}

	for _, t := range turns {
		content := json.RawMessage(t.PayloadJSON)
		if !json.Valid(content) {
			b, err := json.Marshal(map[string]string{"text": t.Text})
			if err != nil {
				return err
			}
			content = b
		}
		out.Turns = append(out.Turns, turnJSON{Seq: t.Seq, Role: t.Role, Kind: t.Kind, At: t.CreatedAt, Content: content})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

var historyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all archived dialogues",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			stderr.warn("This will delete ALL archived dialogues. Use --confirm to proceed.")
			return nil
		}

		store, err := openArchive()
		if err != nil {
			return err
		}
		defer store.Close()

		stderr.step("Deleting archived dialogues...")
		n, err := store.Purge(cmd.Context())
		if err != nil {
			return fmt.Errorf("purging archive: %w", err)
		}
		stderr.success("Purged %d dialogues", n)
		return nil
	},
}

func init() {
	historyListCmd.Flags().Int("limit", 20, "maximum number of dialogues to list")
	historyShowCmd.Flags().Bool("json", false, "print the dialogue as JSON")
	historyPurgeCmd.Flags().Bool("confirm", false, "confirm archive purge")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPurgeCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", paint(toneLabel, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		stderr.success("Set %s = %s", key, value)
		return nil
	},
}

var configSetTokenCmd = &cobra.Command{
	Use:   "set-token [gateway.token|server.token] [token]",
	Short: "Store a bearer token in the platform secret store",
	Long: `Store a bearer token in the platform secret store.

gateway.token (the default) authenticates faultchat to the diagnosis service;
server.token protects the /v1 routes of faultchat serve. The token is read
from stdin when not given as an argument.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, token := "gateway.token", ""
		switch len(args) {
		case 2:
			key, token = args[0], args[1]
		case 1:
			if strings.HasSuffix(args[0], ".token") {
				key = args[0]
			} else {
				token = args[0]
			}
		}
		if token == "" {
			fmt.Fprintf(os.Stderr, "%s: ", key)
			sc := bufio.NewScanner(os.Stdin)
			if sc.Scan() {
				token = sc.Text()
			}
		}

		if err := config.StoreSecret(key, strings.TrimSpace(token)); err != nil {
			return fmt.Errorf("storing %s: %w", key, err)
		}
		stderr.success("%s stored", key)
		stderr.step("It can also be provided via %s", config.SecretHint(key))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configSetTokenCmd)
}
