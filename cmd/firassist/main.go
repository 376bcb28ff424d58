package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"firassist/internal/domain"
	"firassist/internal/httpapi"
	"firassist/internal/tui"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "firassist",
		Short:         "Draft First Information Reports with ranked IPC sections",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/firassist/config.yaml if not provided)")

	root.AddCommand(
		newServeCmd(&cfgPath),
		newTUICmd(&cfgPath),
		newRankCmd(&cfgPath),
		newDraftCmd(&cfgPath),
	)
	return root
}

func newServeCmd(cfgPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the drafting API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, *cfgPath, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			gin.SetMode(gin.ReleaseMode)
			srv := &http.Server{
				Addr:              addr,
				Handler:           httpapi.NewRouter(httpapi.NewHandler(a.svc, a.logger), a.logger),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("listening", zap.String("addr", addr))
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}
			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func newTUICmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Fill in an FIR form in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context(), *cfgPath, true)
			if err != nil {
				return err
			}
			defer a.Close()
			_, err = tea.NewProgram(tui.New(a.svc, a.svc.SectionCount()), tea.WithAltScreen()).Run()
			return err
		},
	}
}

func newRankCmd(cfgPath *string) *cobra.Command {
	var k int
	cmd := &cobra.Command{
		Use:   "rank <case description>",
		Short: "Rank corpus sections against a description without calling the model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			m, err := buildMatcher(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("corpus: %w", err)
			}
			if k == 0 {
				k = min(cfg.Matcher.TopK, m.Len())
			}
			res, err := m.Rank(strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, r := range res {
				fmt.Fprintf(out, "%2d. %-14s %.4f  %s\n", i+1, r.Label, r.Score, r.Description)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top", "k", 0, "number of sections (default matcher.top_k)")
	return cmd
}

func newDraftCmd(cfgPath *string) *cobra.Command {
	var (
		descFile string
		asJSON   bool
		incident domain.IncidentDetails
	)
	cmd := &cobra.Command{
		Use:   "draft [case description]",
		Short: "Run ranking, analysis and FIR structuring for one case",
		RunE: func(cmd *cobra.Command, args []string) error {
			description, err := readDescription(cmd.InOrStdin(), descFile, args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := buildApp(ctx, *cfgPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			d, err := a.svc.Draft(ctx, description, incident)
			if err != nil {
				return err
			}
			return writeDraft(cmd.OutOrStdout(), d, asJSON)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&descFile, "file", "f", "", `read the description from a file ("-" for stdin)`)
	f.BoolVar(&asJSON, "json", false, "print the draft as JSON")
	f.StringVar(&incident.DateOfIncident, "date", "", "date of incident")
	f.StringVar(&incident.TimeOfIncident, "time", "", "time of incident")
	f.StringVar(&incident.PlaceOfOccurrence, "place", "", "place of occurrence")
	f.StringVar(&incident.NatureOfOffense, "offense", "", "nature of offense")
	f.StringVar(&incident.ComplainantName, "complainant", "", "complainant name")
	f.StringVar(&incident.ComplainantContact, "contact", "", "complainant contact")
	f.StringVar(&incident.AccusedName, "accused", "", "accused name")
	f.StringVar(&incident.AccusedDescription, "accused-description", "", "accused description")
	return cmd
}

func readDescription(stdin io.Reader, file string, args []string) (string, error) {
	var text string
	switch {
	case file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		text = string(b)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		text = string(b)
	default:
		text = strings.Join(args, " ")
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrEmptyDescription
	}
	return text, nil
}

func writeDraft(w io.Writer, d *domain.Draft, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}
	fmt.Fprintf(w, "Draft %s\n\nRelevant sections:\n", d.ID)
	for _, s := range d.Sections {
		fmt.Fprintf(w, "  - %s (score %.3f): %s\n", s.Label, s.Score, s.Description)
	}
	fmt.Fprintf(w, "\n== Analysis ==\n%s\n\n== FIR ==\n%s\n", d.Analysis, d.FIR)
	return nil
}
