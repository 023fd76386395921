package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/atinyakov/feynmind/internal/client/api"
	"github.com/atinyakov/feynmind/internal/client/auth"
	"github.com/atinyakov/feynmind/internal/client/config"
	"github.com/atinyakov/feynmind/internal/client/credentials"
	"github.com/atinyakov/feynmind/internal/client/session"
	"github.com/atinyakov/feynmind/internal/client/voice"
	"github.com/atinyakov/feynmind/internal/logger"
)

// app is the wired client: credentials, HTTP client, speech engines and the
// two controllers.
type app struct {
	log     *zap.Logger
	session *session.Controller
	auth    *auth.Controller
}

func newApp(opts *config.Options, onChange func(session.State)) (*app, error) {
	lg := logger.New()
	if err := lg.InitFile(opts.LogLevel, opts.LogFile); err != nil {
		return nil, err
	}
	log := lg.Log

	kv, err := credentials.OpenFileKV(opts.StatePath)
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}
	store := credentials.NewStore(kv)

	httpClient, err := api.NewHTTPClient(opts.CAFile, opts.Timeout)
	if err != nil {
		return nil, err
	}
	client := api.NewClient(opts.BaseURL, httpClient, store, log.Named("api"))

	var rec voice.Recognizer
	if r, err := voice.NewCommandRecognizer(opts.STTCommand); err == nil {
		rec = r
	} else {
		log.Info("voice input disabled", zap.Error(err))
	}
	var syn voice.Synthesizer
	if s, err := voice.NewCommandSynthesizer(opts.TTSCommand); err == nil {
		syn = s
	} else {
		log.Info("voice output disabled", zap.Error(err))
	}

	sess := session.New(session.Config{
		Backend:     client,
		Credentials: store,
		Recognizer:  rec,
		Synthesizer: syn,
		Logger:      log.Named("session"),
		OnChange:    onChange,
	})
	return &app{
		log:     log,
		session: sess,
		auth:    auth.NewController(client, store, sess, log.Named("auth")),
	}, nil
}

func (a *app) Close() {
	a.session.Close()
	_ = a.log.Sync()
}
