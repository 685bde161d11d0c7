package main

import (
	"fmt"
	"log/slog"

	"github.com/essoktani-yazid/stm-ai-gateway/internal/config"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/confirm"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/gateway"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/insight"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/intent"
	"github.com/essoktani-yazid/stm-ai-gateway/internal/voice"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/audio/transcode"
	"github.com/essoktani-yazid/stm-ai-gateway/pkg/plugin"
)

// buildServices creates the providers named in cfg and the components
// sessions share. Speech providers that fail to start are logged and left
// out; the language model is required.
func buildServices(cfg *config.Config, db confirm.Executor, logger *slog.Logger) (*gateway.Services, error) {
	completer, err := plugin.NewLLM(cfg.LLM.Provider, cfg.LLMOptions(logger))
	if err != nil {
		return nil, fmt.Errorf("language model: %w", err)
	}

	mode, err := confirm.ParseMode(string(cfg.Confirm.Mode))
	if err != nil {
		return nil, err
	}
	workflow := confirm.NewWorkflow(completer, db, mode, logger)

	svc := &gateway.Services{
		Router:        intent.NewRouter(completer, db, workflow, logger),
		Workflow:      workflow,
		Insight:       insight.NewAnalyzer(completer, logger),
		DefaultUserID: cfg.Server.DefaultUserID,
		ConfirmTTL:    cfg.Confirm.TTL,
	}

	if cfg.STTEnabled() {
		provider, err := plugin.NewSTT(cfg.STT.Provider, cfg.STTOptions(logger))
		if err != nil {
			logger.Error("speech recognition disabled", slog.String("provider", cfg.STT.Provider), slog.Any("error", err))
		} else {
			svc.STT = provider
		}
	}

	if cfg.TTSEnabled() {
		synth, err := plugin.NewTTS(cfg.TTS.Provider, cfg.TTSOptions(logger))
		if err != nil {
			logger.Error("speech synthesis disabled", slog.String("provider", cfg.TTS.Provider), slog.Any("error", err))
		} else {
			pool := transcode.NewPool(cfg.Server.TranscodeWorkers, audio.PCM24kMono)
			svc.Voice = voice.NewPipeline(synth, pool, cfg.TTS.Voice, logger)
		}
	}

	logger.Info("services ready",
		slog.String("llm", cfg.LLM.Provider),
		slog.String("model", cfg.LLM.Model),
		slog.Bool("stt", svc.STT != nil),
		slog.Bool("tts", svc.Voice != nil),
		slog.String("confirm_mode", string(mode)))
	return svc, nil
}
