package cli

import (
	"context"
	"errors"
	"fmt"
	"hacker-kid/internal/config"
	"hacker-kid/internal/logger"
	"hacker-kid/internal/service/chat"
	"hacker-kid/internal/service/conversation"
	"hacker-kid/internal/service/llm"
	"hacker-kid/internal/storage/local"
	"hacker-kid/internal/storage/remote"
	"hacker-kid/internal/syncer"

	"github.com/sirupsen/logrus"
)

var errNoCurrentUser = errors.New("no user logged in, run `hackerkid login <username>` first")

// runtime is the wiring of one CLI invocation
type runtime struct {
	cfg        *config.ClientConfig
	kv         *local.SQLiteKV
	store      *local.Adapter
	remote     *remote.Client
	controller *syncer.Controller
}

func openRuntime(configPath string) (*runtime, error) {
	cfg, err := config.LoadClientConfig(configPath)
	if err != nil {
		return nil, err
	}

	kv, err := local.NewSQLiteKV(cfg.DataPath, cfg.Local.QuotaBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	store := local.NewAdapter(kv, local.Policy{
		Window:    cfg.Local.Window,
		MediaKeep: cfg.Local.MediaKeep,
	})
	client := remote.NewClient(cfg.RemoteURL, remote.WithTimeout(cfg.Sync.Timeout))
	controller := syncer.New(store, client,
		syncer.WithDebounce(cfg.Sync.Debounce),
		syncer.WithTimeout(cfg.Sync.Timeout),
	)

	return &runtime{
		cfg:        cfg,
		kv:         kv,
		store:      store,
		remote:     client,
		controller: controller,
	}, nil
}

// bind logs the device's current user into the controller
func (rt *runtime) bind(ctx context.Context) error {
	username, ok := rt.store.CurrentUser(ctx)
	if !ok {
		return errNoCurrentUser
	}
	return rt.login(ctx, username)
}

func (rt *runtime) login(ctx context.Context, username string) error {
	if token, ok := rt.store.Token(ctx, username); ok {
		rt.remote.SetToken(token)
	}
	if err := rt.controller.Login(ctx, username); err != nil {
		return err
	}

	snap := rt.controller.Snapshot()
	if snap.Status == syncer.StatusError {
		logger.Log.WithFields(logrus.Fields{
			"username": username,
			"error":    snap.Error,
		}).Warn("Cloud sync unavailable, working from the local copy")
	}
	return nil
}

// close pushes pending changes and releases the local store
func (rt *runtime) close(ctx context.Context) error {
	var errs []error
	switch err := rt.controller.Flush(ctx); {
	case err == nil, errors.Is(err, syncer.ErrNotLoggedIn):
	case errors.Is(err, syncer.ErrRemoteSave):
		logger.Log.WithError(err).Warn("Changes kept locally, they are pushed on the next sync")
	default:
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}
	if err := rt.kv.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (rt *runtime) conversations() *conversation.ConversationService {
	return conversation.NewConversationService(rt.controller)
}

// chat builds the tutor-backed chat service
func (rt *runtime) chat() (*chat.ChatService, error) {
	models, err := config.LoadModelsConfig(rt.cfg.Tutor.ModelsPath, rt.cfg.Tutor.Model)
	if err != nil {
		return nil, err
	}
	provider, err := llm.NewOpenAIProvider(&rt.cfg.Tutor, models)
	if err != nil {
		return nil, err
	}
	return chat.NewChatService(rt.controller, provider, provider, provider, models), nil
}
