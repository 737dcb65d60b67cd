package handler

import (
	"net/http"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Processos
// POST /v1/processos
// GET  /v1/processos
// GET  /v1/processos/{processoId}
// ============================================================

func criarProcessoHandler(svc *service.ProcessoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/processos")
		defer span.End()

		id := IdentidadeFromContext(ctx)
		if id == nil {
			handleServiceError(w, &domain.ErrUnauthorized{}, logger)
			return
		}

		var req domain.CriarProcessoRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		out, err := svc.CriarProcesso(ctx, id.UserID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

func listarProcessosHandler(svc *service.ProcessoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/processos")
		defer span.End()

		owner, ok := ownerFromRequest(w, r, logger)
		if !ok {
			return
		}

		ps, err := svc.ListarProcessos(ctx, owner)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"processos": ps,
			"total":     len(ps),
		})
	}
}

func obterProcessoHandler(svc *service.ProcessoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/processos/{processoId}")
		defer span.End()

		processoID := chi.URLParam(r, "processoId")
		span.SetAttributes(attribute.String("processo.id", processoID))

		owner, ok := ownerFromRequest(w, r, logger)
		if !ok {
			return
		}

		out, err := svc.ObterProcesso(ctx, owner, processoID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ============================================================
// History
// POST /v1/processos/{processoId}/episodios
// POST /v1/processos/{processoId}/remicoes
// POST /v1/processos/{processoId}/eventos
// ============================================================

func registrarEpisodioHandler(svc *service.ProcessoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/processos/{processoId}/episodios")
		defer span.End()

		owner, ok := ownerFromRequest(w, r, logger)
		if !ok {
			return
		}

		var e domain.EpisodioCustodia
		if err := decodeJSON(w, r, &e); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		saved, err := svc.RegistrarEpisodio(ctx, owner, chi.URLParam(r, "processoId"), &e)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

func registrarRemicaoHandler(svc *service.ProcessoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/processos/{processoId}/remicoes")
		defer span.End()

		owner, ok := ownerFromRequest(w, r, logger)
		if !ok {
			return
		}

		var rem domain.Remissao
		if err := decodeJSON(w, r, &rem); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		saved, err := svc.RegistrarRemicao(ctx, owner, chi.URLParam(r, "processoId"), &rem)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

func registrarEventoHandler(svc *service.ProcessoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/processos/{processoId}/eventos")
		defer span.End()

		owner, ok := ownerFromRequest(w, r, logger)
		if !ok {
			return
		}

		var ev domain.EventoProcessual
		if err := decodeJSON(w, r, &ev); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		saved, err := svc.RegistrarEvento(ctx, owner, chi.URLParam(r, "processoId"), &ev)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}
