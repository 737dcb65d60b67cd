package handler

import (
	"net/http"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/infra/observability"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Calculations
// POST /v1/calculos
// POST /v1/penas/unificar
// GET  /v1/processos/{processoId}/calculo
// POST /v1/admin/recalculos
// ============================================================

func calcularHandler(svc *service.CalculoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/calculos")
		defer span.End()

		var req domain.CalculoRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if req.DataBase == nil {
			d, err := parseDataBase(r)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			req.DataBase = d
		}

		res, err := svc.Calcular(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func unificarHandler(svc *service.CalculoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/penas/unificar")
		defer span.End()

		var req domain.UnificacaoRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		res, err := svc.Unificar(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func calcularProcessoHandler(svc *service.CalculoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/processos/{processoId}/calculo")
		defer span.End()

		processoID := chi.URLParam(r, "processoId")
		span.SetAttributes(attribute.String("processo.id", processoID))

		owner, ok := ownerFromRequest(w, r, logger)
		if !ok {
			return
		}
		dataBase, err := parseDataBase(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		stored, err := svc.CalcularProcesso(ctx, owner, processoID, dataBase)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, stored)
	}
}

func recalcularHandler(svc *service.CalculoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/recalculos")
		defer span.End()

		dataBase, err := parseDataBase(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		rel, err := svc.RecalcularAtivos(ctx, dataBase)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, rel)
	}
}

func calculoMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetCalculoSnapshot())
	}
}
