package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/pena"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd(agora func() time.Time) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "pena",
		Short:         "Sentence timeline calculator",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "error", "log level (debug, info, warn, error)")

	logger := func() *zap.Logger { return observability.NewLogger(logLevel) }

	root.AddCommand(newCalcularCmd(agora, logger))
	root.AddCommand(newUnificarCmd(logger))
	return root
}

// ============================================================
// pena calcular --arquivo caso.json [--data-base YYYY-MM-DD]
// ============================================================

func newCalcularCmd(agora func() time.Time, logger func() *zap.Logger) *cobra.Command {
	var arquivo, dataBase string

	cmd := &cobra.Command{
		Use:   "calcular",
		Short: "Compute progression, parole and termination dates for a case file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger()
			defer log.Sync()

			var req domain.CalculoRequest
			if err := lerJSON(cmd.InOrStdin(), arquivo, &req); err != nil {
				return err
			}

			asOf := domain.HojeNoTribunal(agora())
			switch {
			case dataBase != "":
				d, err := domain.ParseData(dataBase)
				if err != nil {
					return fmt.Errorf("--data-base: %w", err)
				}
				asOf = d
			case req.DataBase != nil && !req.DataBase.IsZero():
				asOf = *req.DataBase
			}

			start := time.Now()
			res, err := pena.Calcular(req.Sentenca, req.Episodios, req.Remicoes, asOf)
			if err != nil {
				return err
			}
			log.Debug("calculo finished",
				zap.String("arquivo", arquivo),
				zap.String("data_base", asOf.String()),
				zap.Duration("duration", time.Since(start)),
			)
			return escreverJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&arquivo, "arquivo", "a", "", "case file (JSON); use - for stdin")
	cmd.Flags().StringVar(&dataBase, "data-base", "", "reference date YYYY-MM-DD (default: today in America/Sao_Paulo)")
	_ = cmd.MarkFlagRequired("arquivo")
	return cmd
}

// ============================================================
// pena unificar --arquivo crimes.json
// ============================================================

func newUnificarCmd(logger func() *zap.Logger) *cobra.Command {
	var arquivo string

	cmd := &cobra.Command{
		Use:   "unificar",
		Short: "Suggest a total length and progression fraction for a list of crimes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logger()
			defer log.Sync()

			var req domain.UnificacaoRequest
			if err := lerJSON(cmd.InOrStdin(), arquivo, &req); err != nil {
				return err
			}

			res, err := pena.Unificar(req.Crimes)
			if err != nil {
				return err
			}
			log.Debug("unificacao finished", zap.Int("crimes", len(req.Crimes)), zap.Int("total_dias", res.TotalDias))
			return escreverJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&arquivo, "arquivo", "a", "", "crimes file (JSON); use - for stdin")
	_ = cmd.MarkFlagRequired("arquivo")
	return cmd
}

func lerJSON(stdin io.Reader, arquivo string, v any) error {
	var (
		b   []byte
		err error
	)
	if arquivo == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(arquivo)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", arquivo, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", arquivo, err)
	}
	return nil
}

func escreverJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
