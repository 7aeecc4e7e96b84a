// internal/websocket/process.go

package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"olmeda-realtime/internal/logging"
	"olmeda-realtime/internal/models"
)

// Resultado do processamento de um frame, usado em métricas
const (
	resultApplied     = "applied"
	resultMalformed   = "malformed"
	resultUnknownKind = "unknown_kind"
	resultNoHandler   = "no_handler"
	resultFailed      = "failed"
)

// processFrame decodifica o corpo de um MESSAGE e entrega ao handler do tipo.
// Nenhum erro ou pânico sai daqui: um frame ruim não derruba a assinatura.
func (c *SyncClient) processFrame(body []byte) {
	ctx, span := c.tracer.Start(context.Background(), "realtime.frame")
	defer span.End()

	c.incrementMessagesReceived()

	ev, err := models.ParseInboundEvent(body, c.now())
	if err != nil {
		result := resultMalformed
		if errors.Is(err, models.ErrUnknownKind) {
			result = resultUnknownKind
		}
		var pe *models.ParseError
		kind := ""
		if errors.As(err, &pe) {
			kind = string(pe.Kind)
		}

		c.logger.Warn("frame descartado", slog.String("result", result), logging.Err(err))
		c.cfg.Metrics.ObserveFrame(kind, result)
		c.incrementDropped()
		span.SetStatus(codes.Error, result)
		return
	}
	span.SetAttributes(attribute.String("event.kind", string(ev.Kind)))

	handler := c.handlerFor(ev.Kind)
	if handler == nil {
		c.logger.Warn("nenhum handler registrado", slog.String("kind", string(ev.Kind)))
		c.cfg.Metrics.ObserveFrame(string(ev.Kind), resultNoHandler)
		c.incrementDropped()
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.HandlerTimeout)
	defer cancel()

	start := time.Now()
	err = runHandler(ctx, handler, ev)
	c.cfg.Metrics.ObserveHandlerLatency(string(ev.Kind), time.Since(start).Seconds())

	if err != nil {
		c.logger.Error("erro ao processar evento", slog.String("kind", string(ev.Kind)), logging.Err(err))
		c.cfg.Metrics.ObserveFrame(string(ev.Kind), resultFailed)
		c.incrementDropped()
		span.RecordError(err)
		span.SetStatus(codes.Error, resultFailed)
		return
	}
	c.cfg.Metrics.ObserveFrame(string(ev.Kind), resultApplied)
}

// runHandler executa o handler contendo pânicos
func runHandler(ctx context.Context, h EventHandler, ev models.InboundEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pânico no handler de %s: %v", ev.Kind, r)
		}
	}()

	return h.HandleEvent(ctx, ev)
}
